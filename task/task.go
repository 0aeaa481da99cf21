// Package task defines the materialized work item produced by the
// automation engine and its persistence for the task-management side.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

// Priority orders tasks from Low up to Critical.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the ordering weight of p; Critical ranks highest.
// Unknown priorities rank below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return p.Rank() > 0 }

// SourceKind identifies which definition kind produced a task.
type SourceKind string

const (
	SourceBundle   SourceKind = "bundle"
	SourceTemplate SourceKind = "template"
)

// Source records the provenance of a materialized task.
type Source struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name"`
}

// Task is a materialized work item. Once created it is owned by the
// task-management subsystem, not the automation engine.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee"`
	Role        string     `json:"role"`
	Category    string     `json:"category,omitempty"`
	CaseID      string     `json:"case_id"`
	ClientID    string     `json:"client_id,omitempty"`
	Stage       string     `json:"stage"`
	DueDate     time.Time  `json:"due_date"`
	Source      Source     `json:"source"`
	Suggested   bool       `json:"suggested,omitempty"`
	AutoCreated bool       `json:"auto_created,omitempty"`
	Checklist   []string   `json:"checklist,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store persists and retrieves materialized tasks.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(t *Task) (string, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// Update saves changes to an existing task.
	Update(t *Task) error

	// List returns tasks matching the given filter.
	List(filter Filter) ([]*Task, error)

	// Delete removes a task by ID.
	Delete(id string) error
}

// Filter controls which tasks are returned by List.
type Filter struct {
	Status   *Status  `json:"status,omitempty"`
	Assignee string   `json:"assignee,omitempty"`
	CaseID   string   `json:"case_id,omitempty"`
	Stage    string   `json:"stage,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}
