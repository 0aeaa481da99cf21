// Command docket manages task templates and bundles and runs the
// stage-change automation pass over a local SQLite store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/GoCodeAlone/docket/assign"
	"github.com/GoCodeAlone/docket/automation"
	"github.com/GoCodeAlone/docket/bundle"
	"github.com/GoCodeAlone/docket/condition"
	"github.com/GoCodeAlone/docket/config"
	"github.com/GoCodeAlone/docket/events"
	"github.com/GoCodeAlone/docket/internal/version"
	"github.com/GoCodeAlone/docket/kv"
	"github.com/GoCodeAlone/docket/task"
	"github.com/GoCodeAlone/docket/template"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("DOCKET_CONFIG"), "path to config file")
		jsonOut    = flag.Bool("json", false, "print results as JSON")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	rest := args[1:]

	if cmd == "version" {
		fmt.Printf("docket %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.BuildDate)
		return
	}

	app, err := newApp(*configPath, *jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	switch cmd {
	case "templates":
		err = app.cmdTemplates(rest)
	case "bundles":
		err = app.cmdBundles(rest)
	case "tasks":
		err = app.cmdTasks(rest)
	case "stage":
		err = app.cmdStage(rest)
	case "run":
		err = app.cmdRun(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `docket — stage-driven task automation

Usage:
  docket [flags] <command> [args]

Flags:
  --config  <path>  config file (or $DOCKET_CONFIG)
  --json            print results as JSON

Commands:
  version                      print version
  templates                    list task templates
  bundles                      list task bundles
  tasks [case-id]              list tasks, optionally for one case
  stage <case-id> <to-stage>   record a stage change and run automation
  run <bundle-id> <case-id>    run one bundle manually for a case
`)
}

// triggerFacts carries the case attributes supplied on the command
// line for the in-flight stage command. The stage-changed payload
// describes the transition; condition evaluation needs these too.
type triggerFacts struct {
	NoticeType string
	ClientTier string
	CaseValue  float64
}

// app wires the stores, event bus, and orchestrator for CLI commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	kvs       *kv.SQLiteStore
	tasks     *task.SQLiteStore
	templates *template.Store
	bundles   *bundle.Store
	bus       events.Bus
	engine    automation.Orchestrator
	pending   triggerFacts
	out       io.Writer
	jsonOut   bool
}

func newApp(configPath string, jsonOut bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	kvs, err := kv.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open definition store: %w", err)
	}
	tasks, err := task.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		kvs.Close()
		return nil, fmt.Errorf("open task store: %w", err)
	}

	ctx := context.Background()
	templates := template.NewStore(kvs, logger)
	if err := templates.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize templates: %w", err)
	}
	bundles := bundle.NewStore(kvs, logger)
	if err := bundles.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize bundles: %w", err)
	}

	resolver := assign.NewRoleMapResolver(cfg.Assignees)

	registry := automation.NewRegistry()
	std := automation.NewEngine(bundles, templates, resolver, tasks, automation.Options{
		Logger:             logger,
		StrictDependencies: cfg.StrictDependencies,
	})
	if err := registry.Register(config.EngineStandard, std); err != nil {
		return nil, err
	}
	if err := registry.Register(config.EngineNoop, automation.NewNoopEngine(logger)); err != nil {
		return nil, err
	}
	engine, ok := registry.Get(cfg.Engine)
	if !ok {
		return nil, fmt.Errorf("engine %q not registered", cfg.Engine)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		kvs:       kvs,
		tasks:     tasks,
		templates: templates,
		bundles:   bundles,
		bus:       events.NewInMemoryBus(),
		engine:    engine,
		out:       os.Stdout,
		jsonOut:   jsonOut,
	}
	a.bus.Subscribe(events.StageChanged, a.onStageChanged)
	return a, nil
}

func (a *app) Close() {
	if err := a.tasks.Close(); err != nil {
		a.logger.Warn("closing task store", "error", err)
	}
	if err := a.kvs.Close(); err != nil {
		a.logger.Warn("closing definition store", "error", err)
	}
}

// --- templates ---

func (a *app) cmdTemplates(_ []string) error {
	ctx := context.Background()
	all, err := a.templates.All(ctx)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return printJSON(all)
	}
	for _, t := range all {
		state := "active"
		if !t.Active {
			state = "inactive"
		}
		fmt.Printf("%s  %-36s %-10s %s  used %d\n", t.ID, t.Title, t.Priority, state, t.UsageCount)
	}
	return nil
}

// --- bundles ---

func (a *app) cmdBundles(_ []string) error {
	ctx := context.Background()
	all, err := a.bundles.All(ctx)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return printJSON(all)
	}
	for _, b := range all {
		fmt.Printf("%s  %-32s %-10s %-8s %d items  used %d\n",
			b.ID, b.Name, b.Mode, b.Status, len(b.Items), b.UsageCount)
	}
	return nil
}

// --- tasks ---

func (a *app) cmdTasks(args []string) error {
	var filter task.Filter
	if len(args) > 0 {
		filter.CaseID = args[0]
	}
	list, err := a.tasks.List(filter)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return printJSON(list)
	}
	for _, t := range list {
		due := ""
		if !t.DueDate.IsZero() {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Printf("%s  %-40s %-12s %-10s %-16s due %s\n",
			t.ID, t.Title, t.Status, t.Priority, t.Assignee, due)
	}
	return nil
}

// --- stage ---

func (a *app) cmdStage(args []string) error {
	fs := flag.NewFlagSet("stage", flag.ContinueOnError)
	var (
		from       = fs.String("from", "", "previous stage")
		clientID   = fs.String("client", "", "client id")
		caseNumber = fs.String("case-number", "", "case number")
		noticeType = fs.String("notice-type", "", "notice type on the case")
		clientTier = fs.String("tier", "", "client tier")
		caseValue  = fs.Float64("value", 0, "case value in dispute")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	pos := fs.Args()
	if len(pos) < 2 {
		return fmt.Errorf("usage: docket stage [flags] <case-id> <to-stage>")
	}
	caseID, toStage := pos[0], pos[1]

	ctx := context.Background()
	a.pending = triggerFacts{
		NoticeType: *noticeType,
		ClientTier: *clientTier,
		CaseValue:  *caseValue,
	}
	return events.EmitStageChanged(ctx, a.bus, events.StageChangedPayload{
		CaseID:     caseID,
		ClientID:   *clientID,
		CaseNumber: *caseNumber,
		FromStage:  *from,
		ToStage:    toStage,
	})
}

// onStageChanged runs the automation pass for a stage transition. It
// materializes auto-create bundles and templates, records suggestions,
// and announces each created task on the bus.
func (a *app) onStageChanged(ctx context.Context, ev *events.Event) error {
	p, ok := ev.Payload.(events.StageChangedPayload)
	if !ok {
		return fmt.Errorf("stage changed: unexpected payload %T", ev.Payload)
	}
	tc := condition.TriggerContext{
		CaseID:     p.CaseID,
		ClientID:   p.ClientID,
		CaseNumber: p.CaseNumber,
		Stage:      p.ToStage,
		Event:      string(events.StageChanged),
		NoticeType: a.pending.NoticeType,
		ClientTier: a.pending.ClientTier,
		CaseValue:  a.pending.CaseValue,
		Timestamp:  ev.Timestamp,
	}

	bundles, err := a.bundles.ByStage(ctx, p.ToStage)
	if err != nil {
		return err
	}
	for _, b := range bundles {
		if b.Status != bundle.StatusActive || !b.AutoCreate {
			continue
		}
		res, err := a.engine.CreateTasksFromBundle(ctx, b.ID, tc)
		if err != nil {
			a.logger.Error("bundle pass failed", "bundle", b.ID, "error", err)
			continue
		}
		a.report(ctx, b.Name, res)
	}

	templates, err := a.templates.ByStageScope(ctx, p.ToStage)
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		if !tpl.AutoCreate && !tpl.Suggest {
			continue
		}
		created, err := a.engine.CreateTaskFromTemplate(ctx, tpl, tc)
		if err != nil {
			a.logger.Error("template pass failed", "template", tpl.ID, "error", err)
			continue
		}
		if created == nil {
			continue
		}
		a.announce(ctx, created)
		if created.Suggested {
			fmt.Fprintf(a.out, "suggested: %s (%s)\n", created.Title, created.ID)
		} else {
			fmt.Fprintf(a.out, "created:   %s (%s)\n", created.Title, created.ID)
		}
	}
	return nil
}

// --- run ---

func (a *app) cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		stage      = fs.String("stage", "", "stage for materialized tasks")
		noticeType = fs.String("notice-type", "", "notice type on the case")
		clientTier = fs.String("tier", "", "client tier")
		caseValue  = fs.Float64("value", 0, "case value in dispute")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	pos := fs.Args()
	if len(pos) < 2 {
		return fmt.Errorf("usage: docket run [flags] <bundle-id> <case-id>")
	}
	bundleID, caseID := pos[0], pos[1]

	ctx := context.Background()
	res, err := a.engine.CreateTasksFromBundle(ctx, bundleID, condition.TriggerContext{
		CaseID:     caseID,
		Stage:      *stage,
		Event:      "manual",
		NoticeType: *noticeType,
		ClientTier: *clientTier,
		CaseValue:  *caseValue,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if a.jsonOut {
		return printJSON(res)
	}
	a.report(ctx, bundleID, res)
	return nil
}

func (a *app) report(ctx context.Context, name string, res *automation.BundleResult) {
	for _, t := range res.CreatedTasks {
		a.announce(ctx, t)
		fmt.Fprintf(a.out, "created:   %s (%s)\n", t.Title, t.ID)
	}
	for _, s := range res.SkippedItems {
		fmt.Fprintf(a.out, "skipped:   %s: %s\n", s.Title, s.Reason)
	}
	for _, f := range res.FailedItems {
		fmt.Fprintf(a.out, "failed:    %s: %s\n", f.Title, f.Err)
	}
	a.logger.Info("bundle pass complete", "bundle", name,
		"created", res.TotalCreated, "skipped", len(res.SkippedItems), "failed", len(res.FailedItems))
}

func (a *app) announce(ctx context.Context, t *task.Task) {
	if err := events.EmitTaskCreated(ctx, a.bus, events.TaskPayload{
		CaseID: t.CaseID,
		TaskID: t.ID,
		Title:  t.Title,
	}); err != nil {
		a.logger.Warn("announcing task", "task", t.ID, "error", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
