// Package condition defines eligibility conditions for task automation
// and the pure evaluator that gates definitions against a trigger context.
package condition

import "time"

// TriggerContext carries the domain facts for one automation pass.
// It is ephemeral and never persisted.
type TriggerContext struct {
	CaseID     string    `json:"case_id"`
	ClientID   string    `json:"client_id"`
	CaseNumber string    `json:"case_number"`
	Stage      string    `json:"stage"`
	Event      string    `json:"event"`
	NoticeType string    `json:"notice_type,omitempty"`
	ClientTier string    `json:"client_tier,omitempty"`
	CaseValue  float64   `json:"case_value,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Conditions is an optional filter gating whether a definition produces
// a task. A nil dimension imposes no constraint; a present-but-empty
// set matches nothing. All set dimensions combine with logical AND.
type Conditions struct {
	NoticeTypes  []string `json:"notice_types,omitempty" yaml:"notice_types"`
	ClientTiers  []string `json:"client_tiers,omitempty" yaml:"client_tiers"`
	MinCaseValue *float64 `json:"min_case_value,omitempty" yaml:"min_case_value"`
	MaxCaseValue *float64 `json:"max_case_value,omitempty" yaml:"max_case_value"`
}

// IsZero reports whether no dimension is set.
func (c *Conditions) IsZero() bool {
	return c == nil || (c.NoticeTypes == nil && c.ClientTiers == nil &&
		c.MinCaseValue == nil && c.MaxCaseValue == nil)
}

// Evaluate reports whether ctx satisfies c. A nil Conditions is always
// satisfied. Deterministic and side-effect free.
func Evaluate(c *Conditions, ctx TriggerContext) bool {
	if c == nil {
		return true
	}
	if c.NoticeTypes != nil && !contains(c.NoticeTypes, ctx.NoticeType) {
		return false
	}
	if c.ClientTiers != nil && !contains(c.ClientTiers, ctx.ClientTier) {
		return false
	}
	if c.MinCaseValue != nil && ctx.CaseValue < *c.MinCaseValue {
		return false
	}
	if c.MaxCaseValue != nil && ctx.CaseValue > *c.MaxCaseValue {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
