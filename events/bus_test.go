package events

import (
	"context"
	"fmt"
	"testing"
)

func TestBus_PublishToSubscribedName(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	var got []*Event
	unsub := bus.Subscribe(StageChanged, func(_ context.Context, ev *Event) error {
		got = append(got, ev)
		return nil
	})
	defer unsub()

	if err := EmitStageChanged(ctx, bus, StageChangedPayload{CaseID: "case-1", ToStage: "Filed"}); err != nil {
		t.Fatalf("EmitStageChanged: %v", err)
	}
	if err := EmitCaseCreated(ctx, bus, CaseCreatedPayload{CaseID: "case-2"}); err != nil {
		t.Fatalf("EmitCaseCreated: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("handler received %d events, want 1 (only subscribed name)", len(got))
	}
	p, ok := got[0].Payload.(StageChangedPayload)
	if !ok {
		t.Fatalf("payload type %T", got[0].Payload)
	}
	if p.ToStage != "Filed" {
		t.Errorf("ToStage = %q", p.ToStage)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("event missing id or timestamp")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	count := 0
	unsub := bus.Subscribe(TaskCreated, func(context.Context, *Event) error {
		count++
		return nil
	})

	if err := EmitTaskCreated(ctx, bus, TaskPayload{TaskID: "t-1"}); err != nil {
		t.Fatalf("EmitTaskCreated: %v", err)
	}
	unsub()
	if err := EmitTaskCreated(ctx, bus, TaskPayload{TaskID: "t-2"}); err != nil {
		t.Fatalf("EmitTaskCreated: %v", err)
	}

	if count != 1 {
		t.Errorf("handler invoked %d times, want 1", count)
	}
}

func TestBus_HandlerErrorsSurfaceButDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	second := false
	bus.Subscribe(DocumentUploaded, func(context.Context, *Event) error {
		return fmt.Errorf("boom")
	})
	bus.Subscribe(DocumentUploaded, func(context.Context, *Event) error {
		second = true
		return nil
	})

	err := EmitDocumentUploaded(ctx, bus, DocumentUploadedPayload{CaseID: "c", DocumentID: "d"})
	if err == nil {
		t.Fatal("expected handler error to surface")
	}
	if !second {
		t.Error("second handler not invoked after first failed")
	}
}

func TestBus_History(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := EmitTaskCompleted(ctx, bus, TaskPayload{TaskID: fmt.Sprintf("t-%d", i)}); err != nil {
			t.Fatalf("EmitTaskCompleted: %v", err)
		}
	}
	if err := EmitCaseCreated(ctx, bus, CaseCreatedPayload{CaseID: "c-1"}); err != nil {
		t.Fatalf("EmitCaseCreated: %v", err)
	}

	hist := bus.History(TaskCompleted, 2)
	if len(hist) != 2 {
		t.Fatalf("History returned %d events, want 2", len(hist))
	}
	// Oldest first within the limit window.
	if hist[0].Payload.(TaskPayload).TaskID != "t-1" || hist[1].Payload.(TaskPayload).TaskID != "t-2" {
		t.Errorf("History order: %v, %v", hist[0].Payload, hist[1].Payload)
	}
}

func TestEmitters_ValidatePayloadShape(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	tests := []struct {
		name string
		emit func() error
	}{
		{"stage changed without case", func() error {
			return EmitStageChanged(ctx, bus, StageChangedPayload{ToStage: "Filed"})
		}},
		{"stage changed without target", func() error {
			return EmitStageChanged(ctx, bus, StageChangedPayload{CaseID: "c"})
		}},
		{"hearing without id", func() error {
			return EmitHearingScheduled(ctx, bus, HearingPayload{CaseID: "c"})
		}},
		{"hearing updated without case", func() error {
			return EmitHearingUpdated(ctx, bus, HearingPayload{HearingID: "h"})
		}},
		{"document without id", func() error {
			return EmitDocumentUploaded(ctx, bus, DocumentUploadedPayload{CaseID: "c"})
		}},
		{"case without id", func() error {
			return EmitCaseCreated(ctx, bus, CaseCreatedPayload{})
		}},
		{"task created without id", func() error {
			return EmitTaskCreated(ctx, bus, TaskPayload{})
		}},
		{"task completed without id", func() error {
			return EmitTaskCompleted(ctx, bus, TaskPayload{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.emit(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if len(bus.History(StageChanged, 0)) != 0 {
		t.Error("invalid payload was published")
	}
}
