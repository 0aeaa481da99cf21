package template

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/errs"
	"github.com/GoCodeAlone/docket/kv"
	"github.com/GoCodeAlone/docket/task"
)

// collectionKey addresses the full template collection in the
// persistence collaborator.
const collectionKey = "task_templates"

// Store owns the task template collection. It keeps the collection in
// memory and writes it whole to the persistence collaborator on every
// mutation. All methods serialize through a single mutex so concurrent
// orchestrator invocations never lose updates.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
	ready  bool
	items  []*Template
}

// NewStore creates a Store over the given persistence collaborator.
// Initialize must be called before any other method.
func NewStore(kvs kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kvs,
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// Initialize loads the template collection from the persistence
// collaborator, seeding the documented default set when the collection
// is empty or absent. It is the explicit replacement for lazy
// seed-on-first-access: startup is deterministic and every later call
// operates on loaded state.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(ctx, collectionKey)
	if err != nil {
		return &errs.PersistenceError{Op: "load templates", Err: err}
	}
	if ok && len(data) > 0 {
		var items []*Template
		if err := json.Unmarshal(data, &items); err != nil {
			return &errs.PersistenceError{Op: "decode templates", Err: err}
		}
		if len(items) > 0 {
			s.items = items
			s.ready = true
			return nil
		}
	}

	seeded, err := defaultTemplates()
	if err != nil {
		return err
	}
	now := s.clock().UTC()
	for _, t := range seeded {
		t.Version = 1
		t.CreatedAt = now
		t.UpdatedAt = now
	}
	if err := s.persist(ctx, seeded); err != nil {
		return err
	}
	s.items = seeded
	s.ready = true
	s.logger.Info("seeded default task templates", "count", len(seeded))
	return nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Create validates t, assigns its identity and bookkeeping fields, and
// persists the collection. On validation failure it returns a
// ValidationError listing every violated rule and persists nothing.
func (s *Store) Create(ctx context.Context, t *Template) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	if rules := validate(t); len(rules) > 0 {
		return nil, &errs.ValidationError{Rules: rules}
	}

	rec := t.clone()
	rec.ID = s.newID()
	now := s.clock().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1
	rec.UsageCount = 0
	if rec.Priority == "" {
		rec.Priority = task.PriorityMedium
	}

	next := append(append([]*Template(nil), s.items...), rec)
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

// Patch carries the mutable template fields for Update. Nil fields are
// left unchanged; slice fields replace the whole slice when non-nil.
type Patch struct {
	Title          *string
	Description    *string
	Priority       *task.Priority
	EstimatedHours *float64
	Role           *string
	Category       *string
	StageScope     []string
	Suggest        *bool
	AutoCreate     *bool
	Conditions     *condition.Conditions
	DependsOn      []string
	Active         *bool
}

// Update merges patch into the template with the given id, re-validates,
// and bumps the version and updated timestamp. The id itself is never
// altered. Unknown ids fail with NotFoundError before any side effect.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "template", ID: id}
	}

	rec := s.items[idx].clone()
	applyPatch(rec, patch)
	if rules := validate(rec); len(rules) > 0 {
		return nil, &errs.ValidationError{Rules: rules}
	}
	rec.Version++
	rec.UpdatedAt = s.clock().UTC()

	next := append([]*Template(nil), s.items...)
	next[idx] = rec
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

func applyPatch(t *Template, p Patch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.Role != nil {
		t.Role = *p.Role
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.StageScope != nil {
		t.StageScope = append([]string(nil), p.StageScope...)
	}
	if p.Suggest != nil {
		t.Suggest = *p.Suggest
	}
	if p.AutoCreate != nil {
		t.AutoCreate = *p.AutoCreate
	}
	if p.Conditions != nil {
		t.Conditions = cloneConditions(p.Conditions)
	}
	if p.DependsOn != nil {
		t.DependsOn = append([]string(nil), p.DependsOn...)
	}
	if p.Active != nil {
		t.Active = *p.Active
	}
}

// Clone copies the template with the given id under a new identity:
// fresh id, usage reset to zero, version 1, and the title suffixed with
// " — Copy" unless titleOverride is provided.
func (s *Store) Clone(ctx context.Context, id, titleOverride string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "template", ID: id}
	}

	rec := s.items[idx].clone()
	rec.ID = s.newID()
	if titleOverride != "" {
		rec.Title = titleOverride
	} else {
		rec.Title += " — Copy"
	}
	rec.UsageCount = 0
	rec.Version = 1
	now := s.clock().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	next := append(append([]*Template(nil), s.items...), rec)
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

// Delete permanently removes the template with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return &errs.NotFoundError{Kind: "template", ID: id}
	}

	next := append(append([]*Template(nil), s.items[:idx]...), s.items[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Get returns the template with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "template", ID: id}
	}
	return s.items[idx].clone(), nil
}

// All returns every template in store insertion order.
func (s *Store) All(ctx context.Context) ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	out := make([]*Template, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t.clone())
	}
	return out, nil
}

// ByStageScope returns active templates whose stage scope contains
// stage or the AnyStage wildcard, in store insertion order.
func (s *Store) ByStageScope(ctx context.Context, stage string) ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	var out []*Template
	for _, t := range s.items {
		if t.Active && t.InScope(stage) {
			out = append(out, t.clone())
		}
	}
	return out, nil
}

// IncrementUsage records that the template produced a materialized
// task. Unknown ids are a no-op. The usage counter and updated
// timestamp change; the version does not.
func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}

	rec := s.items[idx].clone()
	rec.UsageCount++
	rec.UpdatedAt = s.clock().UTC()

	next := append([]*Template(nil), s.items...)
	next[idx] = rec
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// indexOf is called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full collection. The in-memory collection is only
// swapped by callers after persist succeeds, so a mid-mutation failure
// leaves the store at the last-known-consistent state.
func (s *Store) persist(ctx context.Context, items []*Template) error {
	data, err := json.Marshal(items)
	if err != nil {
		return &errs.PersistenceError{Op: "encode templates", Err: err}
	}
	if err := s.kv.Set(ctx, collectionKey, data); err != nil {
		return &errs.PersistenceError{Op: "save templates", Err: err}
	}
	return nil
}
