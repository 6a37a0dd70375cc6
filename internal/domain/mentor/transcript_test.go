package mentor

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func buildTranscript(n int) (*Transcript, []Turn) {
	tr := NewTranscript()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []Turn
	for i := 0; i < n; i++ {
		role := RoleStudent
		if i%2 == 1 {
			role = RoleMentor
		}
		turn := NewTurn(role, fmt.Sprintf("turn-%d", i), PhaseHint, "", base.Add(time.Duration(i)*time.Second))
		tr.Append(turn)
		all = append(all, turn)
	}
	return tr, all
}

func TestRecentWindowShorterThanK(t *testing.T) {
	tr, all := buildTranscript(3)
	got := tr.RecentWindow(10)
	if diff := cmp.Diff(all, got); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentWindowKeepsLastK(t *testing.T) {
	tr, all := buildTranscript(15)
	got := tr.RecentWindow(10)
	if len(got) != 10 {
		t.Fatalf("len=%d", len(got))
	}
	if diff := cmp.Diff(all[5:], got); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentWindowIsACopy(t *testing.T) {
	tr, _ := buildTranscript(4)
	w := tr.RecentWindow(2)
	w[0].Content = "mutated"
	if tr.Turns()[2].Content != "turn-2" {
		t.Fatalf("window aliased the transcript")
	}
	if got := tr.RecentWindow(0); len(got) != 0 {
		t.Fatalf("k=0 should be empty, got %d", len(got))
	}
}

func TestTranscriptJSONRoundTripPreservesOrder(t *testing.T) {
	tr, all := buildTranscript(5)
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Transcript
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(all, back.Turns()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeStudentContent(t *testing.T) {
	if got := ComposeStudentContent(" hi ", ""); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := ComposeStudentContent("", "/uploads/a.png"); got != "\n[attached: /uploads/a.png]" {
		t.Fatalf("got %q", got)
	}
}
