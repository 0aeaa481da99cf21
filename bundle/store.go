package bundle

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/errs"
	"github.com/GoCodeAlone/docket/kv"
)

// collectionKey addresses the full bundle collection in the
// persistence collaborator.
const collectionKey = "task_bundles"

// Store owns the task bundle collection. Like the template store it
// holds the collection in memory, writes it whole on every mutation,
// and serializes all access through one mutex.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
	ready  bool
	items  []*Bundle
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

// Initialize loads the bundle collection, seeding the documented
// default set when the backing collection is empty or absent.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(ctx, collectionKey)
	if err != nil {
		return &errs.PersistenceError{Op: "load bundles", Err: err}
	}
	if ok && len(data) > 0 {
		var items []*Bundle
		if err := json.Unmarshal(data, &items); err != nil {
			return &errs.PersistenceError{Op: "decode bundles", Err: err}
		}
		if len(items) > 0 {
			s.items = items
			s.ready = true
			return nil
		}
	}

	seeded, err := defaultBundles()
	if err != nil {
		return err
	}
	now := s.clock().UTC()
	for _, b := range seeded {
		b.Version = 1
		b.CreatedAt = now
		b.UpdatedAt = now
		s.normalizeItems(b)
	}
	if err := s.persist(ctx, seeded); err != nil {
		return err
	}
	s.items = seeded
	s.ready = true
	s.logger.Info("seeded default task bundles", "count", len(seeded))
	return nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Create validates b, assigns identities to the bundle and any items
// missing one, and persists the collection. Validation failures report
// every violated rule and persist nothing.
func (s *Store) Create(ctx context.Context, b *Bundle) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	if rules := validate(b); len(rules) > 0 {
		return nil, &errs.ValidationError{Rules: rules}
	}

	rec := b.clone()
	rec.ID = s.newID()
	now := s.clock().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1
	rec.UsageCount = 0
	if rec.Mode == "" {
		rec.Mode = ModeSequential
	}
	if rec.Status == "" {
		rec.Status = StatusDraft
	}
	s.normalizeItems(rec)

	next := append(append([]*Bundle(nil), s.items...), rec)
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

// Patch carries the mutable bundle fields for Update. Nil fields are
// left unchanged; slice fields replace the whole slice when non-nil.
type Patch struct {
	Name       *string
	Stages     []string
	Trigger    *string
	Active     *bool
	Mode       *Mode
	Conditions *condition.Conditions
	AutoCreate *bool
	Code       *string
	Status     *Status
	Items      []Item
}

// Update merges patch into the bundle with the given id, re-validates,
// and bumps the version and updated timestamp. The id is never altered.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "bundle", ID: id}
	}

	rec := s.items[idx].clone()
	applyPatch(rec, patch)
	if rules := validate(rec); len(rules) > 0 {
		return nil, &errs.ValidationError{Rules: rules}
	}
	rec.Version++
	rec.UpdatedAt = s.clock().UTC()
	s.normalizeItems(rec)

	next := append([]*Bundle(nil), s.items...)
	next[idx] = rec
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

func applyPatch(b *Bundle, p Patch) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Stages != nil {
		b.Stages = append([]string(nil), p.Stages...)
	}
	if p.Trigger != nil {
		b.Trigger = *p.Trigger
	}
	if p.Active != nil {
		b.Active = *p.Active
	}
	if p.Mode != nil {
		b.Mode = *p.Mode
	}
	if p.Conditions != nil {
		b.Conditions = cloneConditions(p.Conditions)
	}
	if p.AutoCreate != nil {
		b.AutoCreate = *p.AutoCreate
	}
	if p.Code != nil {
		b.Code = *p.Code
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Items != nil {
		b.Items = append([]Item(nil), p.Items...)
	}
}

// Clone copies the bundle with the given id under a new identity: fresh
// bundle and item ids, usage reset to zero, version 1, and the name
// suffixed with " — Copy" unless nameOverride is provided.
func (s *Store) Clone(ctx context.Context, id, nameOverride string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "bundle", ID: id}
	}

	rec := s.items[idx].clone()
	rec.ID = s.newID()
	if nameOverride != "" {
		rec.Name = nameOverride
	} else {
		rec.Name += " — Copy"
	}
	rec.UsageCount = 0
	rec.Version = 1
	now := s.clock().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	for i := range rec.Items {
		rec.Items[i].ID = s.newID()
	}
	s.normalizeItems(rec)

	next := append(append([]*Bundle(nil), s.items...), rec)
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.items = next
	return rec.clone(), nil
}

// Delete permanently removes the bundle with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errs.ErrNotInitialized
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return &errs.NotFoundError{Kind: "bundle", ID: id}
	}

	next := append(append([]*Bundle(nil), s.items[:idx]...), s.items[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Get returns the bundle with the given id, items in stored order.
func (s *Store) Get(ctx context.Context, id string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &errs.NotFoundError{Kind: "bundle", ID: id}
	}
	return s.items[idx].clone(), nil
}

// GetWithItems returns the bundle with its items sorted by ascending
// order index, the order Sequential processing observes.
func (s *Store) GetWithItems(ctx context.Context, id string) (*Bundle, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(b.Items, func(i, j int) bool {
		return b.Items[i].Order < b.Items[j].Order
	})
	return b, nil
}

// All returns every bundle in store insertion order.
func (s *Store) All(ctx context.Context) ([]*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	out := make([]*Bundle, 0, len(s.items))
	for _, b := range s.items {
		out = append(out, b.clone())
	}
	return out, nil
}

// ByStage returns active bundles listing stage, in insertion order.
func (s *Store) ByStage(ctx context.Context, stage string) ([]*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, errs.ErrNotInitialized
	}
	var out []*Bundle
	for _, b := range s.items {
		if !b.Active {
			continue
		}
		for _, st := range b.Stages {
			if st == stage {
				out = append(out, b.clone())
				break
			}
		}
	}
	return out, nil
}

// IncrementUsage records that the bundle produced materialized tasks.
// Unknown ids are a no-op. The usage counter and updated timestamp
// change; the version does not.
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

	next := append([]*Bundle(nil), s.items...)
	next[idx] = rec
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// normalizeItems assigns ids to items missing one and stamps the
// owning bundle id. Called with s.mu held.
func (s *Store) normalizeItems(b *Bundle) {
	for i := range b.Items {
		if b.Items[i].ID == "" {
			b.Items[i].ID = s.newID()
		}
		b.Items[i].BundleID = b.ID
	}
}

// indexOf is called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i, b := range s.items {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full collection. Callers swap the in-memory
// collection only after persist succeeds.
func (s *Store) persist(ctx context.Context, items []*Bundle) error {
	data, err := json.Marshal(items)
	if err != nil {
		return &errs.PersistenceError{Op: "encode bundles", Err: err}
	}
	if err := s.kv.Set(ctx, collectionKey, data); err != nil {
		return &errs.PersistenceError{Op: "save bundles", Err: err}
	}
	return nil
}
