// Package template defines reusable task templates and their store.
// A template describes one task scoped to lifecycle stages; the
// automation engine materializes tasks from eligible templates.
package template

import (
	"fmt"
	"time"

	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/task"
)

// AnyStage is the stage-scope wildcard matching every lifecycle stage.
const AnyStage = "Any Stage"

// Template is a reusable, versioned task definition.
type Template struct {
	ID             string                `json:"id" yaml:"id"`
	Title          string                `json:"title" yaml:"title"`
	Description    string                `json:"description" yaml:"description"`
	Priority       task.Priority         `json:"priority" yaml:"priority"`
	EstimatedHours float64               `json:"estimated_hours" yaml:"estimated_hours"`
	Role           string                `json:"role" yaml:"role"`
	Category       string                `json:"category,omitempty" yaml:"category"`
	StageScope     []string              `json:"stage_scope" yaml:"stage_scope"`
	Suggest        bool                  `json:"suggest_on_stage_change" yaml:"suggest"`
	AutoCreate     bool                  `json:"auto_create_on_stage_change" yaml:"auto_create"`
	Conditions     *condition.Conditions `json:"conditions,omitempty" yaml:"conditions"`
	DependsOn      []string              `json:"depends_on,omitempty" yaml:"depends_on"`
	Active         bool                  `json:"active" yaml:"active"`
	UsageCount     int                   `json:"usage_count" yaml:"-"`
	Version        int                   `json:"version" yaml:"-"`
	CreatedAt      time.Time             `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time             `json:"updated_at" yaml:"-"`
}

// InScope reports whether the template applies to stage, honoring the
// AnyStage wildcard.
func (t *Template) InScope(stage string) bool {
	for _, s := range t.StageScope {
		if s == stage || s == AnyStage {
			return true
		}
	}
	return false
}

// validate returns every violated rule, never just the first.
func validate(t *Template) []string {
	var rules []string
	if t.Title == "" {
		rules = append(rules, "title is required")
	}
	if t.Description == "" {
		rules = append(rules, "description is required")
	}
	if t.EstimatedHours <= 0 {
		rules = append(rules, "estimated hours must be greater than zero")
	}
	if t.Role == "" {
		rules = append(rules, "assigned role is required")
	}
	if len(t.StageScope) == 0 {
		rules = append(rules, "at least one stage scope entry is required")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		rules = append(rules, fmt.Sprintf("unknown priority %q", t.Priority))
	}
	return rules
}

// clone returns a deep copy so callers never alias store-owned state.
func (t *Template) clone() *Template {
	cp := *t
	cp.StageScope = append([]string(nil), t.StageScope...)
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	cp.Conditions = cloneConditions(t.Conditions)
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
