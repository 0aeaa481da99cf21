package automation

import (
	"context"
	"log/slog"

	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/task"
	"github.com/GoCodeAlone/docket/template"
)

// NoopEngine is the null-object Orchestrator. Deployments that have
// disabled automation select it by configuration so call sites need no
// changes; every pass reports zero created tasks.
type NoopEngine struct {
	logger *slog.Logger
}

// NewNoopEngine creates a NoopEngine. logger may be nil.
func NewNoopEngine(logger *slog.Logger) *NoopEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopEngine{logger: logger}
}

// CreateTasksFromBundle returns an empty result without consulting any
// store.
func (n *NoopEngine) CreateTasksFromBundle(ctx context.Context, bundleID string, tc condition.TriggerContext) (*BundleResult, error) {
	n.logger.Debug("automation disabled, skipping bundle pass", "bundle", bundleID, "stage", tc.Stage)
	return &BundleResult{}, nil
}

// CreateTaskFromTemplate returns nil without evaluating conditions.
func (n *NoopEngine) CreateTaskFromTemplate(ctx context.Context, tpl *template.Template, tc condition.TriggerContext) (*task.Task, error) {
	n.logger.Debug("automation disabled, skipping template pass", "template", tpl.ID, "stage", tc.Stage)
	return nil, nil
}
