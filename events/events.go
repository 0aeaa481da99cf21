// Package events provides the typed domain-event entry points by which
// external services announce lifecycle changes, and the in-process bus
// that fans them out to subscribers.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Name identifies the kind of domain event.
type Name string

const (
	StageChanged     Name = "stage_changed"
	HearingScheduled Name = "hearing_scheduled"
	HearingUpdated   Name = "hearing_updated"
	DocumentUploaded Name = "document_uploaded"
	CaseCreated      Name = "case_created"
	TaskCreated      Name = "task_created"
	TaskCompleted    Name = "task_completed"
)

// Event is one domain occurrence published on the bus.
type Event struct {
	ID        string    `json:"id"`
	Name      Name      `json:"name"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler processes events of a subscribed name.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans events out to subscribers. Delivery ordering and retry
// semantics are owned by the bus implementation, not the emitters.
type Bus interface {
	// Publish delivers ev to every handler subscribed to its name.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for events with the given name.
	// Returns an unsubscribe function.
	Subscribe(name Name, handler Handler) (unsubscribe func())

	// History returns the most recent limit events with the given name,
	// oldest first. A zero limit means no cap.
	History(name Name, limit int) []*Event
}

// StageChangedPayload announces a case lifecycle stage transition.
type StageChangedPayload struct {
	CaseID     string `json:"case_id"`
	ClientID   string `json:"client_id,omitempty"`
	CaseNumber string `json:"case_number,omitempty"`
	FromStage  string `json:"from_stage,omitempty"`
	ToStage    string `json:"to_stage"`
}

// HearingPayload announces a hearing being scheduled or updated.
type HearingPayload struct {
	CaseID    string    `json:"case_id"`
	HearingID string    `json:"hearing_id"`
	Date      time.Time `json:"date"`
	Forum     string    `json:"forum,omitempty"`
}

// DocumentUploadedPayload announces a document added to a case.
type DocumentUploadedPayload struct {
	CaseID     string `json:"case_id"`
	DocumentID string `json:"document_id"`
	Name       string `json:"name,omitempty"`
}

// CaseCreatedPayload announces a newly opened case.
type CaseCreatedPayload struct {
	CaseID     string `json:"case_id"`
	ClientID   string `json:"client_id,omitempty"`
	CaseNumber string `json:"case_number,omitempty"`
	Stage      string `json:"stage,omitempty"`
}

// TaskPayload announces a task being created or completed.
type TaskPayload struct {
	CaseID string `json:"case_id,omitempty"`
	TaskID string `json:"task_id"`
	Title  string `json:"title,omitempty"`
}

// EmitStageChanged publishes a stage-change event after validating the
// payload shape. Emitters carry no business logic beyond this.
func EmitStageChanged(ctx context.Context, bus Bus, p StageChangedPayload) error {
	if p.CaseID == "" {
		return fmt.Errorf("stage changed: case id is required")
	}
	if p.ToStage == "" {
		return fmt.Errorf("stage changed: target stage is required")
	}
	return publish(ctx, bus, StageChanged, p)
}

// EmitHearingScheduled publishes a hearing-scheduled event.
func EmitHearingScheduled(ctx context.Context, bus Bus, p HearingPayload) error {
	if err := validateHearing(p); err != nil {
		return fmt.Errorf("hearing scheduled: %w", err)
	}
	return publish(ctx, bus, HearingScheduled, p)
}

// EmitHearingUpdated publishes a hearing-updated event.
func EmitHearingUpdated(ctx context.Context, bus Bus, p HearingPayload) error {
	if err := validateHearing(p); err != nil {
		return fmt.Errorf("hearing updated: %w", err)
	}
	return publish(ctx, bus, HearingUpdated, p)
}

// EmitDocumentUploaded publishes a document-uploaded event.
func EmitDocumentUploaded(ctx context.Context, bus Bus, p DocumentUploadedPayload) error {
	if p.CaseID == "" {
		return fmt.Errorf("document uploaded: case id is required")
	}
	if p.DocumentID == "" {
		return fmt.Errorf("document uploaded: document id is required")
	}
	return publish(ctx, bus, DocumentUploaded, p)
}

// EmitCaseCreated publishes a case-created event.
func EmitCaseCreated(ctx context.Context, bus Bus, p CaseCreatedPayload) error {
	if p.CaseID == "" {
		return fmt.Errorf("case created: case id is required")
	}
	return publish(ctx, bus, CaseCreated, p)
}

// EmitTaskCreated publishes a task-created event.
func EmitTaskCreated(ctx context.Context, bus Bus, p TaskPayload) error {
	if p.TaskID == "" {
		return fmt.Errorf("task created: task id is required")
	}
	return publish(ctx, bus, TaskCreated, p)
}

// EmitTaskCompleted publishes a task-completed event.
func EmitTaskCompleted(ctx context.Context, bus Bus, p TaskPayload) error {
	if p.TaskID == "" {
		return fmt.Errorf("task completed: task id is required")
	}
	return publish(ctx, bus, TaskCompleted, p)
}

func validateHearing(p HearingPayload) error {
	if p.CaseID == "" {
		return fmt.Errorf("case id is required")
	}
	if p.HearingID == "" {
		return fmt.Errorf("hearing id is required")
	}
	return nil
}

func publish(ctx context.Context, bus Bus, name Name, payload any) error {
	return bus.Publish(ctx, &Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}
