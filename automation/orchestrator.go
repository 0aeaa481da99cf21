// Package automation turns task definitions into materialized tasks.
// The orchestrator evaluates eligibility conditions against a trigger
// context, honors each bundle's execution discipline, and records
// usage against definitions that actually produced tasks.
package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/docket/assign"
	"github.com/GoCodeAlone/docket/bundle"
	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/task"
	"github.com/GoCodeAlone/docket/template"
)

// Orchestrator is the engine-facing interface callers invoke for one
// automation pass.
type Orchestrator interface {
	// CreateTasksFromBundle materializes tasks from the bundle with the
	// given id. Unknown bundle ids fail; everything else is reported in
	// the structured result.
	CreateTasksFromBundle(ctx context.Context, bundleID string, tc condition.TriggerContext) (*BundleResult, error)

	// CreateTaskFromTemplate derives one task from tpl when its
	// conditions hold for tc, or returns nil when ineligible.
	CreateTaskFromTemplate(ctx context.Context, tpl *template.Template, tc condition.TriggerContext) (*task.Task, error)
}

// SkippedItem records a bundle item that did not produce a task,
// with the reason processing passed it over.
type SkippedItem struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// FailedItem records a bundle item whose task creation failed. A
// failure never aborts processing of the remaining items.
type FailedItem struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Err    string `json:"error"`
}

// BundleResult is the structured outcome of one bundle invocation.
type BundleResult struct {
	CreatedTasks []*task.Task  `json:"created_tasks"`
	SkippedItems []SkippedItem `json:"skipped_items"`
	FailedItems  []FailedItem  `json:"failed_items,omitempty"`
	TotalCreated int           `json:"total_tasks_created"`
}

// BundleSource is the bundle-store surface the engine depends on.
type BundleSource interface {
	GetWithItems(ctx context.Context, id string) (*bundle.Bundle, error)
	IncrementUsage(ctx context.Context, id string) error
}

// UsageRecorder is the template-store surface the engine depends on.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, id string) error
}

// TaskSink receives materialized tasks. The task-management subsystem
// owns tasks from this point on.
type TaskSink interface {
	Create(t *task.Task) (string, error)
}

// Options tune engine behavior.
type Options struct {
	// Logger receives warnings for malformed due offsets and per-item
	// failures. Nil means slog.Default().
	Logger *slog.Logger

	// StrictDependencies makes an item whose declared dependency was
	// skipped or failed in the same pass be skipped too. Off by
	// default: dependency ids are linkage metadata and only the order
	// index governs processing.
	StrictDependencies bool
}

// Engine is the standard Orchestrator implementation.
type Engine struct {
	bundles   BundleSource
	templates UsageRecorder
	resolver  assign.Resolver
	sink      TaskSink
	logger    *slog.Logger
	clock     func() time.Time
	newID     func() string
	strict    bool
}

// NewEngine creates the standard engine. sink may be nil, in which
// case tasks are only returned, not persisted.
func NewEngine(bundles BundleSource, templates UsageRecorder, resolver assign.Resolver, sink TaskSink, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		bundles:   bundles,
		templates: templates,
		resolver:  resolver,
		sink:      sink,
		logger:    logger,
		clock:     time.Now,
		newID:     uuid.NewString,
		strict:    opts.StrictDependencies,
	}
}

// itemOutcome classifies how one bundle item settled during a pass.
type itemOutcome int

const (
	outcomeCreated itemOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// CreateTasksFromBundle loads the bundle and processes its items
// according to the bundle's execution mode. Ineligible items are
// skipped with a reason and processing always continues; the bundle's
// usage counter is incremented exactly once when the pass produced at
// least one task.
func (e *Engine) CreateTasksFromBundle(ctx context.Context, bundleID string, tc condition.TriggerContext) (*BundleResult, error) {
	b, err := e.bundles.GetWithItems(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	bundleEligible := condition.Evaluate(b.Conditions, tc)

	var result *BundleResult
	if b.Mode == bundle.ModeParallel {
		result = e.runParallel(ctx, b, tc, bundleEligible)
	} else {
		result = e.runSequential(ctx, b, tc, bundleEligible)
	}

	if result.TotalCreated > 0 {
		if err := e.bundles.IncrementUsage(ctx, b.ID); err != nil {
			e.logger.Warn("bundle usage increment failed", "bundle", b.ID, "error", err)
		}
	}
	return result, nil
}

// runSequential processes items strictly by ascending order index.
// Items arrive pre-sorted from GetWithItems. Evaluation order is a
// contract even though creation never blocks on a prior item's success.
func (e *Engine) runSequential(ctx context.Context, b *bundle.Bundle, tc condition.TriggerContext, bundleEligible bool) *BundleResult {
	result := &BundleResult{}
	outcomes := make(map[string]itemOutcome, len(b.Items))

	for i := range b.Items {
		item := &b.Items[i]
		if reason, ok := e.skipReason(item, tc, bundleEligible); ok {
			result.SkippedItems = append(result.SkippedItems, SkippedItem{ItemID: item.ID, Title: item.Title, Reason: reason})
			outcomes[item.ID] = outcomeSkipped
			continue
		}
		if e.strict {
			if dep, blocked := blockedDependency(item, outcomes); blocked {
				result.SkippedItems = append(result.SkippedItems, SkippedItem{
					ItemID: item.ID,
					Title:  item.Title,
					Reason: "dependency " + dep + " did not produce a task",
				})
				outcomes[item.ID] = outcomeSkipped
				continue
			}
		}

		t, err := e.materialize(b, item, tc)
		if err != nil {
			e.logger.Warn("bundle item creation failed", "bundle", b.ID, "item", item.ID, "error", err)
			result.FailedItems = append(result.FailedItems, FailedItem{ItemID: item.ID, Title: item.Title, Err: err.Error()})
			outcomes[item.ID] = outcomeFailed
			continue
		}
		result.CreatedTasks = append(result.CreatedTasks, t)
		result.TotalCreated++
		outcomes[item.ID] = outcomeCreated
	}
	return result
}

// runParallel fans item creation out concurrently; creation order is
// not guaranteed and only the created/skipped multiset is defined. In
// strict mode dependency gating considers condition-based skips, which
// are decided upfront; failures cannot gate siblings that run
// concurrently with them.
func (e *Engine) runParallel(ctx context.Context, b *bundle.Bundle, tc condition.TriggerContext, bundleEligible bool) *BundleResult {
	result := &BundleResult{}
	outcomes := make(map[string]itemOutcome, len(b.Items))

	// Decide eligibility before fan-out so strict-mode gating is
	// deterministic regardless of goroutine scheduling.
	var runnable []*bundle.Item
	for i := range b.Items {
		item := &b.Items[i]
		if reason, ok := e.skipReason(item, tc, bundleEligible); ok {
			result.SkippedItems = append(result.SkippedItems, SkippedItem{ItemID: item.ID, Title: item.Title, Reason: reason})
			outcomes[item.ID] = outcomeSkipped
			continue
		}
		runnable = append(runnable, item)
	}
	if e.strict {
		runnable = e.gateParallel(runnable, outcomes, result)
	}

	type itemResult struct {
		item *bundle.Item
		task *task.Task
		err  error
	}
	results := make([]itemResult, len(runnable))
	var wg sync.WaitGroup
	for i, item := range runnable {
		wg.Add(1)
		go func(i int, item *bundle.Item) {
			defer wg.Done()
			t, err := e.materialize(b, item, tc)
			results[i] = itemResult{item: item, task: t, err: err}
		}(i, item)
	}
	wg.Wait()

	// Usage accounting and result assembly happen only after all
	// parallel work completes, so the counter moves at most once.
	for _, r := range results {
		if r.err != nil {
			e.logger.Warn("bundle item creation failed", "bundle", b.ID, "item", r.item.ID, "error", r.err)
			result.FailedItems = append(result.FailedItems, FailedItem{ItemID: r.item.ID, Title: r.item.Title, Err: r.err.Error()})
			continue
		}
		result.CreatedTasks = append(result.CreatedTasks, r.task)
		result.TotalCreated++
	}
	return result
}

// gateParallel removes runnable items whose dependencies were skipped,
// iterating until no more items become blocked through chains.
func (e *Engine) gateParallel(runnable []*bundle.Item, outcomes map[string]itemOutcome, result *BundleResult) []*bundle.Item {
	for {
		kept := runnable[:0]
		blockedAny := false
		for _, item := range runnable {
			if dep, blocked := blockedDependency(item, outcomes); blocked {
				result.SkippedItems = append(result.SkippedItems, SkippedItem{
					ItemID: item.ID,
					Title:  item.Title,
					Reason: "dependency " + dep + " did not produce a task",
				})
				outcomes[item.ID] = outcomeSkipped
				blockedAny = true
				continue
			}
			kept = append(kept, item)
		}
		runnable = kept
		if !blockedAny {
			return runnable
		}
	}
}

// blockedDependency returns the first declared dependency of item that
// settled without producing a task.
func blockedDependency(item *bundle.Item, outcomes map[string]itemOutcome) (string, bool) {
	for _, dep := range item.DependsOn {
		if outcome, seen := outcomes[dep]; seen && outcome != outcomeCreated {
			return dep, true
		}
	}
	return "", false
}

// skipReason reports whether item should be skipped and why.
func (e *Engine) skipReason(item *bundle.Item, tc condition.TriggerContext, bundleEligible bool) (string, bool) {
	if !bundleEligible {
		return "bundle conditions not met", true
	}
	if !condition.Evaluate(item.Conditions, tc) {
		return "unmet condition", true
	}
	return "", false
}

// materialize turns one eligible item into a task and hands it to the
// sink when one is configured.
func (e *Engine) materialize(b *bundle.Bundle, item *bundle.Item, tc condition.TriggerContext) (*task.Task, error) {
	now := e.clock().UTC()
	base := tc.Timestamp
	if base.IsZero() {
		base = now
	}

	due, err := ApplyDueOffset(base, item.DueOffset)
	if err != nil {
		e.logger.Warn("malformed due offset, defaulting to one day",
			"bundle", b.ID, "item", item.ID, "offset", item.DueOffset)
	}

	assignee := item.AssigneeOverride
	if assignee == "" {
		assignee = e.resolver.Resolve(item.Role)
	}
	stage := item.StageOverride
	if stage == "" {
		stage = tc.Stage
	}
	priority := item.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}

	t := &task.Task{
		ID:          e.newID(),
		Title:       item.Title,
		Description: item.Description,
		Status:      task.StatusPending,
		Priority:    priority,
		Assignee:    assignee,
		Role:        item.Role,
		Category:    item.Category,
		CaseID:      tc.CaseID,
		ClientID:    tc.ClientID,
		Stage:       stage,
		DueDate:     due,
		Source:      task.Source{Kind: task.SourceBundle, ID: b.ID, Name: b.Name},
		AutoCreated: item.AutoCreate || b.AutoCreate,
		Checklist:   append([]string(nil), item.Checklist...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.sink != nil {
		if _, err := e.sink.Create(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// CreateTaskFromTemplate derives one task from tpl when the template is
// in scope for the context stage and its conditions hold. It returns
// nil, nil when the template is ineligible. Automation flags mirror the
// template's suggest and auto-create flags.
func (e *Engine) CreateTaskFromTemplate(ctx context.Context, tpl *template.Template, tc condition.TriggerContext) (*task.Task, error) {
	if !tpl.InScope(tc.Stage) {
		return nil, nil
	}
	if !condition.Evaluate(tpl.Conditions, tc) {
		return nil, nil
	}

	now := e.clock().UTC()
	base := tc.Timestamp
	if base.IsZero() {
		base = now
	}
	due, _ := ApplyDueOffset(base, "") // templates carry no offset: one day out

	priority := tpl.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	t := &task.Task{
		ID:          e.newID(),
		Title:       tpl.Title,
		Description: tpl.Description,
		Status:      task.StatusPending,
		Priority:    priority,
		Assignee:    e.resolver.Resolve(tpl.Role),
		Role:        tpl.Role,
		Category:    tpl.Category,
		CaseID:      tc.CaseID,
		ClientID:    tc.ClientID,
		Stage:       tc.Stage,
		DueDate:     due,
		Source:      task.Source{Kind: task.SourceTemplate, ID: tpl.ID, Name: tpl.Title},
		Suggested:   tpl.Suggest,
		AutoCreated: tpl.AutoCreate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.sink != nil {
		if _, err := e.sink.Create(t); err != nil {
			return nil, err
		}
	}
	if err := e.templates.IncrementUsage(ctx, tpl.ID); err != nil {
		e.logger.Warn("template usage increment failed", "template", tpl.ID, "error", err)
	}
	return t, nil
}
