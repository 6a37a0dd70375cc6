package ctxutil

import (
	"context"
	"testing"
)

func TestTraceDataRoundTrip(t *testing.T) {
	if GetTraceData(context.Background()) != nil {
		t.Fatalf("expected nil trace data")
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected empty request id")
	}
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t", RequestID: "r"})
	td := GetTraceData(ctx)
	if td == nil || td.TraceID != "t" {
		t.Fatalf("td=%+v", td)
	}
	td.SessionID = "s"
	if GetTraceData(ctx).SessionID != "s" {
		t.Fatalf("session id not shared")
	}
	if RequestID(ctx) != "r" {
		t.Fatalf("request id=%q", RequestID(ctx))
	}
}
