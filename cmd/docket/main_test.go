package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/GoCodeAlone/docket/automation"
	"github.com/GoCodeAlone/docket/events"
	"github.com/GoCodeAlone/docket/task"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &app{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		bus:    events.NewInMemoryBus(),
		out:    &buf,
	}, &buf
}

func TestReportFormatsAllOutcomes(t *testing.T) {
	a, buf := newTestApp(t)

	res := &automation.BundleResult{
		CreatedTasks: []*task.Task{
			{ID: "task-1", Title: "Acknowledge notice", CaseID: "case-1"},
		},
		SkippedItems: []automation.SkippedItem{
			{ItemID: "item-2", Title: "Brief counsel", Reason: "unmet condition"},
		},
		FailedItems: []automation.FailedItem{
			{ItemID: "item-3", Title: "Compile paperbook", Err: "disk full"},
		},
		TotalCreated: 1,
	}
	a.report(context.Background(), "Notice Response", res)

	out := buf.String()
	for _, want := range []string{
		"created:   Acknowledge notice (task-1)",
		"skipped:   Brief counsel: unmet condition",
		"failed:    Compile paperbook: disk full",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestReportAnnouncesCreatedTasks(t *testing.T) {
	a, _ := newTestApp(t)

	res := &automation.BundleResult{
		CreatedTasks: []*task.Task{
			{ID: "task-1", Title: "Acknowledge notice", CaseID: "case-1"},
			{ID: "task-2", Title: "Prepare deadline memo", CaseID: "case-1"},
		},
		TotalCreated: 2,
	}
	a.report(context.Background(), "Notice Response", res)

	hist := a.bus.History(events.TaskCreated, 0)
	if len(hist) != 2 {
		t.Fatalf("got %d task-created events, want 2", len(hist))
	}
	p, ok := hist[0].Payload.(events.TaskPayload)
	if !ok {
		t.Fatalf("unexpected payload %T", hist[0].Payload)
	}
	if p.TaskID != "task-1" || p.CaseID != "case-1" {
		t.Errorf("payload = %+v", p)
	}
}
