// Package bundle defines task bundles, the ordered collections of
// task-producing items sharing a trigger and execution discipline, and
// their store.
package bundle

import (
	"fmt"
	"regexp"
	"time"

	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/task"
)

// Mode is the execution discipline for a bundle's items.
type Mode string

const (
	// ModeSequential processes items strictly by ascending order index.
	ModeSequential Mode = "sequential"
	// ModeParallel processes items with no ordering guarantee.
	ModeParallel Mode = "parallel"
)

// Status is the authoring lifecycle state of a bundle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// TriggerType describes how a bundle item is meant to fire.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerAutomatic TriggerType = "automatic"
	TriggerEvent     TriggerType = "event"
	TriggerScheduled TriggerType = "scheduled"
)

// codePattern restricts bundle codes to [A-Za-z0-9_-].
var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Bundle is an ordered set of items sharing a trigger and execution
// discipline.
type Bundle struct {
	ID         string                `json:"id" yaml:"id"`
	Name       string                `json:"name" yaml:"name"`
	Stages     []string              `json:"stages" yaml:"stages"`
	Trigger    string                `json:"trigger" yaml:"trigger"`
	Active     bool                  `json:"active" yaml:"active"`
	Mode       Mode                  `json:"mode" yaml:"mode"`
	Conditions *condition.Conditions `json:"conditions,omitempty" yaml:"conditions"`
	AutoCreate bool                  `json:"auto_create" yaml:"auto_create"`
	Code       string                `json:"code,omitempty" yaml:"code"`
	Status     Status                `json:"status" yaml:"status"`
	Items      []Item                `json:"items" yaml:"items"`
	UsageCount int                   `json:"usage_count" yaml:"-"`
	Version    int                   `json:"version" yaml:"-"`
	CreatedAt  time.Time             `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time             `json:"updated_at" yaml:"-"`
}

// Item is one task-producing unit inside a bundle. DependsOn records
// declared linkage between items; by default it does not gate creation,
// which is governed solely by Order.
type Item struct {
	ID               string                `json:"id" yaml:"id"`
	BundleID         string                `json:"bundle_id" yaml:"-"`
	Title            string                `json:"title" yaml:"title"`
	Description      string                `json:"description,omitempty" yaml:"description"`
	Priority         task.Priority         `json:"priority" yaml:"priority"`
	EstimatedHours   float64               `json:"estimated_hours,omitempty" yaml:"estimated_hours"`
	Role             string                `json:"role" yaml:"role"`
	Category         string                `json:"category,omitempty" yaml:"category"`
	DependsOn        []string              `json:"depends_on,omitempty" yaml:"depends_on"`
	Order            int                   `json:"order" yaml:"order"`
	Conditions       *condition.Conditions `json:"conditions,omitempty" yaml:"conditions"`
	AutoCreate       bool                  `json:"auto_create" yaml:"auto_create"`
	DueOffset        string                `json:"due_offset,omitempty" yaml:"due_offset"`
	StageOverride    string                `json:"stage_override,omitempty" yaml:"stage_override"`
	AssigneeOverride string                `json:"assignee_override,omitempty" yaml:"assignee_override"`
	TriggerType      TriggerType           `json:"trigger_type,omitempty" yaml:"trigger_type"`
	TriggerEvent     string                `json:"trigger_event,omitempty" yaml:"trigger_event"`
	Checklist        []string              `json:"checklist,omitempty" yaml:"checklist"`
}

// validate returns every violated rule, never just the first.
func validate(b *Bundle) []string {
	var rules []string
	if b.Name == "" {
		rules = append(rules, "name is required")
	}
	if b.Trigger == "" {
		rules = append(rules, "trigger is required")
	}
	if len(b.Stages) == 0 {
		rules = append(rules, "at least one stage is required")
	}
	if b.Code != "" && !codePattern.MatchString(b.Code) {
		rules = append(rules, "bundle code may only contain letters, digits, underscores, and hyphens")
	}
	if b.Mode != "" && b.Mode != ModeSequential && b.Mode != ModeParallel {
		rules = append(rules, fmt.Sprintf("unknown execution mode %q", b.Mode))
	}
	if b.Status != "" && b.Status != StatusDraft && b.Status != StatusActive && b.Status != StatusArchived {
		rules = append(rules, fmt.Sprintf("unknown status %q", b.Status))
	}
	for i, item := range b.Items {
		if item.Title == "" {
			rules = append(rules, fmt.Sprintf("item %d: title is required", i))
		}
		if item.EstimatedHours < 0 {
			rules = append(rules, fmt.Sprintf("item %d: estimated hours must be greater than zero when set", i))
		}
		if item.Priority != "" && !item.Priority.Valid() {
			rules = append(rules, fmt.Sprintf("item %d: unknown priority %q", i, item.Priority))
		}
	}
	return rules
}

// clone returns a deep copy so callers never alias store-owned state.
func (b *Bundle) clone() *Bundle {
	cp := *b
	cp.Stages = append([]string(nil), b.Stages...)
	cp.Conditions = cloneConditions(b.Conditions)
	cp.Items = make([]Item, len(b.Items))
	for i, item := range b.Items {
		ic := item
		ic.DependsOn = append([]string(nil), item.DependsOn...)
		ic.Checklist = append([]string(nil), item.Checklist...)
		ic.Conditions = cloneConditions(item.Conditions)
		cp.Items[i] = ic
	}
	return &cp
}

func cloneConditions(c *condition.Conditions) *condition.Conditions {
	if c == nil {
		return nil
	}
	cp := *c
	cp.NoticeTypes = append([]string(nil), c.NoticeTypes...)
	cp.ClientTiers = append([]string(nil), c.ClientTiers...)
	if c.MinCaseValue != nil {
		v := *c.MinCaseValue
		cp.MinCaseValue = &v
	}
	if c.MaxCaseValue != nil {
		v := *c.MaxCaseValue
		cp.MaxCaseValue = &v
	}
	return &cp
}
