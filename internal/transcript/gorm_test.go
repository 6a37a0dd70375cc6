package transcript

import (
	"context"
	"testing"
	"time"
)

func TestGormSinkSQLite(t *testing.T) {
	s, err := OpenGorm("sqlite", "file::memory:?cache=shared&_test="+t.Name(), nil)
	if err != nil {
		t.Fatalf("OpenGorm: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: ts, SessionID: "s1", Role: "student", Content: "I know arrays", Phase: "elicitation"},
		{Timestamp: ts.Add(time.Second), SessionID: "s1", Role: "mentor", Content: "What is an index?", Phase: "hint"},
		{Timestamp: ts.Add(2 * time.Second), SessionID: "s2", Role: "student", Content: "hello"},
	}
	if err := s.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "What is an index?" || recent[1].Content != "hello" {
		t.Fatalf("recent=%+v", recent)
	}

	rows, err := s.BySession(ctx, nil, "s1")
	if err != nil {
		t.Fatalf("BySession: %v", err)
	}
	if len(rows) != 2 || rows[0].Role != "student" || len(rows[0].Payload) == 0 {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestOpenGormRejectsUnknownDialect(t *testing.T) {
	if _, err := OpenGorm("oracle", "x", nil); err == nil {
		t.Fatalf("expected error")
	}
}
