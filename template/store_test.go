package template

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/docket/errs"
	"github.com/GoCodeAlone/docket/kv"
	"github.com/GoCodeAlone/docket/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(kv.NewMemoryStore(), nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func validTemplate() *Template {
	return &Template{
		Title:          "Draft reply to show-cause notice",
		Description:    "Prepare the draft reply with annexures",
		Priority:       task.PriorityHigh,
		EstimatedHours: 4,
		Role:           "Senior Associate",
		Category:       "Drafting",
		StageScope:     []string{"Notice Received"},
		Active:         true,
	}
}

func TestStore_RequiresInitialize(t *testing.T) {
	s := NewStore(kv.NewMemoryStore(), nil)
	if _, err := s.All(context.Background()); !errors.Is(err, errs.ErrNotInitialized) {
		t.Fatalf("All before Initialize: %v, want ErrNotInitialized", err)
	}
}

func TestStore_InitializeSeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	all, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("Initialize on empty backing store should seed defaults")
	}
	for _, tpl := range all {
		if tpl.ID == "" || tpl.Version != 1 || tpl.UsageCount != 0 {
			t.Errorf("seeded template %q: id=%q version=%d usage=%d", tpl.Title, tpl.ID, tpl.Version, tpl.UsageCount)
		}
	}
}

func TestStore_InitializeLoadsExistingWithoutReseeding(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemoryStore()

	first := NewStore(backing, nil)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	created, err := first.Create(ctx, validTemplate())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := NewStore(backing, nil)
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	got, err := second.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Title != created.Title {
		t.Errorf("reloaded Title = %q, want %q", got.Title, created.Title)
	}
}

func TestStore_CreateAssignsIdentity(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Create(context.Background(), validTemplate())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Error("Create left ID empty")
	}
	if rec.Version != 1 || rec.UsageCount != 0 {
		t.Errorf("Version=%d UsageCount=%d, want 1 and 0", rec.Version, rec.UsageCount)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("Create left timestamps zero")
	}
}

func TestStore_CreateReportsAllViolatedRules(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.All(context.Background())

	_, err := s.Create(context.Background(), &Template{})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Create = %v, want ValidationError", err)
	}
	for _, want := range []string{"title", "description", "estimated hours", "role", "stage scope"} {
		found := false
		for _, rule := range ve.Rules {
			if strings.Contains(rule, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("ValidationError missing rule about %q: %v", want, ve.Rules)
		}
	}

	after, _ := s.All(context.Background())
	if len(after) != len(before) {
		t.Error("failed Create persisted something")
	}
}

func TestStore_UpdateUnknownIDMutatesNothing(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.All(context.Background())

	title := "changed"
	_, err := s.Update(context.Background(), "no-such-id", Patch{Title: &title})
	if !errs.IsNotFound(err) {
		t.Fatalf("Update unknown id = %v, want NotFoundError", err)
	}

	after, _ := s.All(context.Background())
	for i := range before {
		if after[i].Title != before[i].Title || after[i].Version != before[i].Version {
			t.Error("Update on unknown id mutated the collection")
		}
	}
}

func TestStore_UpdateBumpsVersionKeepsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.Create(ctx, validTemplate())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "Draft reply — revised"
	hours := 6.0
	got, err := s.Update(ctx, rec.ID, Patch{Title: &title, EstimatedHours: &hours})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("Update changed id: %q -> %q", rec.ID, got.ID)
	}
	if got.Version != rec.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, rec.Version+1)
	}
	if got.Title != title || got.EstimatedHours != hours {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.Description != rec.Description {
		t.Error("unpatched field changed")
	}
}

func TestStore_UpdateRevalidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, _ := s.Create(ctx, validTemplate())

	empty := ""
	_, err := s.Update(ctx, rec.ID, Patch{Title: &empty})
	if !errs.IsValidation(err) {
		t.Fatalf("Update with empty title = %v, want ValidationError", err)
	}
	got, _ := s.Get(ctx, rec.ID)
	if got.Version != rec.Version {
		t.Error("failed Update bumped the version")
	}
}

func TestStore_Clone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	orig, _ := s.Create(ctx, validTemplate())
	if _, err := s.Update(ctx, orig.ID, Patch{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.IncrementUsage(ctx, orig.ID); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}

	cp, err := s.Clone(ctx, orig.ID, "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if cp.ID == orig.ID {
		t.Error("Clone reused the original id")
	}
	if cp.Title != orig.Title+" — Copy" {
		t.Errorf("Clone title = %q", cp.Title)
	}
	if cp.UsageCount != 0 || cp.Version != 1 {
		t.Errorf("Clone usage=%d version=%d, want 0 and 1", cp.UsageCount, cp.Version)
	}

	named, err := s.Clone(ctx, orig.ID, "Reply for GST matters")
	if err != nil {
		t.Fatalf("Clone with override: %v", err)
	}
	if named.Title != "Reply for GST matters" {
		t.Errorf("Clone override title = %q", named.Title)
	}
}

func TestStore_CloneUnknownID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Clone(context.Background(), "nope", ""); !errs.IsNotFound(err) {
		t.Fatalf("Clone unknown id = %v, want NotFoundError", err)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, _ := s.Create(ctx, validTemplate())

	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, rec.ID); !errs.IsNotFound(err) {
		t.Fatalf("Get after Delete = %v, want NotFoundError", err)
	}
	if err := s.Delete(ctx, rec.ID); !errs.IsNotFound(err) {
		t.Fatalf("second Delete = %v, want NotFoundError", err)
	}
}

func TestStore_ByStageScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	scoped := validTemplate()
	scoped.Title = "Scoped to hearings"
	scoped.StageScope = []string{"Hearing Scheduled"}
	if _, err := s.Create(ctx, scoped); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wildcard := validTemplate()
	wildcard.Title = "Applies everywhere"
	wildcard.StageScope = []string{AnyStage}
	if _, err := s.Create(ctx, wildcard); err != nil {
		t.Fatalf("Create: %v", err)
	}

	inactive := validTemplate()
	inactive.Title = "Dormant"
	inactive.StageScope = []string{"Hearing Scheduled"}
	inactive.Active = false
	if _, err := s.Create(ctx, inactive); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.ByStageScope(ctx, "Hearing Scheduled")
	if err != nil {
		t.Fatalf("ByStageScope: %v", err)
	}
	titles := map[string]bool{}
	for _, tpl := range got {
		titles[tpl.Title] = true
	}
	if !titles["Scoped to hearings"] {
		t.Error("missing directly scoped template")
	}
	if !titles["Applies everywhere"] {
		t.Error("missing wildcard template")
	}
	if titles["Dormant"] {
		t.Error("inactive template returned")
	}
}

func TestStore_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, _ := s.Create(ctx, validTemplate())

	if err := s.IncrementUsage(ctx, rec.ID); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	got, _ := s.Get(ctx, rec.ID)
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}
	if got.Version != rec.Version {
		t.Errorf("IncrementUsage bumped version: %d -> %d", rec.Version, got.Version)
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) && !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Error("IncrementUsage did not touch UpdatedAt")
	}
}

func TestStore_IncrementUsageUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.IncrementUsage(context.Background(), "nope"); err != nil {
		t.Fatalf("IncrementUsage unknown id = %v, want nil", err)
	}
}

// failAfterKV allows n successful Sets, then fails.
type failAfterKV struct {
	kv.Store
	remaining int
}

func (f *failAfterKV) Set(ctx context.Context, key string, value []byte) error {
	if f.remaining <= 0 {
		return fmt.Errorf("disk full")
	}
	f.remaining--
	return f.Store.Set(ctx, key, value)
}

func TestStore_PersistFailureLeavesStateConsistent(t *testing.T) {
	ctx := context.Background()
	backing := &failAfterKV{Store: kv.NewMemoryStore(), remaining: 1}
	s := NewStore(backing, nil)
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	before, _ := s.All(ctx)

	_, err := s.Create(ctx, validTemplate())
	if !errs.IsPersistence(err) {
		t.Fatalf("Create with failing kv = %v, want PersistenceError", err)
	}

	after, _ := s.All(ctx)
	if len(after) != len(before) {
		t.Error("failed persist left a partial in-memory write")
	}
}

func TestStore_ClockIsInjectable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemoryStore(), nil)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return fixed }
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	rec, err := s.Create(ctx, validTemplate())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, fixed)
	}
}

func TestTemplate_InScope(t *testing.T) {
	tpl := &Template{StageScope: []string{"Filed", AnyStage}}
	if !tpl.InScope("Hearing") {
		t.Error("AnyStage wildcard should match every stage")
	}
	tpl = &Template{StageScope: []string{"Filed"}}
	if tpl.InScope("Hearing") {
		t.Error("out-of-scope stage matched")
	}
	if !tpl.InScope("Filed") {
		t.Error("in-scope stage did not match")
	}
}

func TestValidate_UnknownPriority(t *testing.T) {
	tpl := validTemplate()
	tpl.Priority = task.Priority("urgent")
	rules := validate(tpl)
	if len(rules) != 1 || !strings.Contains(rules[0], "priority") {
		t.Errorf("rules = %v, want single priority rule", rules)
	}
}
