package messages

import (
	"context"
	"testing"
)

func TestContextSink(t *testing.T) {
	ctx, rec := WithRecorder(context.Background())
	Error(ctx, ContextSink{}, "first")
	ContextSink{}.Add(ctx, LevelInfo, "second")

	got := rec.Messages()
	if len(got) != 2 || got[0].Level != LevelError || got[1].Text != "second" {
		t.Fatalf("messages=%+v", got)
	}
	if FromContext(ctx) != rec {
		t.Fatal("FromContext must return the same recorder")
	}
}

func TestContextSink_NoRecorder(t *testing.T) {
	// no debe panic
	Error(context.Background(), nil, "dropped")
	var rec *Recorder
	if rec.Messages() != nil {
		t.Fatal("nil recorder must return nil")
	}
}
