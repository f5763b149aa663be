// Package compiler orchestrates a batch compilation: it constructs every
// definition, validates the include graph, compiles roots in parallel for
// each requested target, writes the artifacts and reports the outcome.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"brainc/internal/config"
	"brainc/internal/ledger"
	"brainc/internal/loader"
	"brainc/internal/logging"
	"brainc/internal/prompt"
	"brainc/internal/target"
)

// Recorder persists the outcome of a compilation.
type Recorder interface {
	Record(ctx context.Context, sessionID string, artifacts []ledger.ArtifactRecord, failures []ledger.FailureRecord) error
}

// History looks up the content hash last recorded for a (definition, target)
// pair. A Recorder that also implements History lets the report flag
// artifacts whose content did not change since the previous build.
type History interface {
	LastHash(ctx context.Context, definitionID, target string) (hash string, ok bool, err error)
}

// slowCompile is the batch duration above which Compile logs a warning.
const slowCompile = 10 * time.Second

// Config holds the settings of a Compiler.
type Config struct {
	// Workers bounds the number of roots compiled concurrently.
	Workers int

	// StrictVariables fails a definition on unresolved placeholders instead
	// of leaving them literal.
	StrictVariables bool

	// ProjectDirectory is the absolute project root (PROJECT_DIRECTORY).
	ProjectDirectory string

	// Targets compiled when a Request names none.
	Targets []string

	// OutputDirs overrides the per-target output root.
	OutputDirs map[string]string

	// Variables are user-defined session variables.
	Variables map[string]string

	// SessionID and Now pin the session for reproducible output. Zero values
	// generate a fresh id and use the current time.
	SessionID string
	Now       time.Time
}

// DefaultConfig returns a configuration compiling every target.
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		ProjectDirectory: ".",
		Targets:          target.Names(),
	}
}

// ConfigFrom derives a compiler configuration from the project config.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Workers:          cfg.Compile.Workers,
		StrictVariables:  cfg.Compile.StrictVariables,
		ProjectDirectory: cfg.ProjectRoot(),
		Targets:          cfg.EnabledTargets(),
		OutputDirs:       make(map[string]string),
		Variables:        cfg.Variables,
	}
	for _, name := range target.Names() {
		c.OutputDirs[name] = cfg.OutputDir(name)
	}
	return c
}

// Request selects what to compile.
type Request struct {
	// Targets to compile; empty means the configured targets.
	Targets []string

	// Only restricts compilation to these definition ids; empty means every
	// emitted definition.
	Only []string
}

// Compiler compiles a workspace. It is safe to call Compile repeatedly; each
// call constructs the definitions afresh.
type Compiler struct {
	registry  *prompt.Registry
	problems  []error
	writer    ArtifactWriter
	recorder  Recorder
	history   History
	assembler *prompt.Assembler
	config    Config
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithWriter sets the artifact writer. The default writes under the project
// directory.
func WithWriter(w ArtifactWriter) Option {
	return func(c *Compiler) error {
		c.writer = w
		return nil
	}
}

// WithRecorder sets the recorder that receives every artifact and failure.
func WithRecorder(r Recorder) Option {
	return func(c *Compiler) error {
		c.recorder = r
		return nil
	}
}

// WithConfig sets the compiler configuration.
func WithConfig(cfg Config) Option {
	return func(c *Compiler) error {
		if cfg.Workers < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
		}
		c.config = cfg
		return nil
	}
}

// New creates a compiler over a loaded workspace.
func New(ws *Workspace, opts ...Option) (*Compiler, error) {
	if ws == nil || ws.Registry == nil {
		return nil, fmt.Errorf("workspace is required")
	}

	c := &Compiler{
		registry:  ws.Registry,
		problems:  ws.Problems,
		assembler: prompt.NewAssembler(),
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply compiler option: %w", err)
		}
	}
	if c.writer == nil {
		c.writer = NewFSWriter(c.config.ProjectDirectory)
	}
	if h, ok := c.recorder.(History); ok {
		c.history = h
	}

	logging.Get(logging.CategoryCompile).Info("compiler initialized: %d workers, strict=%v",
		c.config.Workers, c.config.StrictVariables)
	return c, nil
}

// Compile runs one batch. Failures are isolated per (definition, target)
// and collected in the report; the returned error is reserved for an
// invalid request or a cancelled context.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryCompile, "Compiler.Compile")
	defer timer.StopWithThreshold(slowCompile)

	targets, err := c.targets(req.Targets)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	sessions := c.sessions(targets)
	report := &Report{StartedAt: started, SessionID: sessions[targets[0].Name].ID()}
	for _, t := range targets {
		report.Targets = append(report.Targets, t.Name)
	}
	logging.Compile("session %s: compiling for %v", report.SessionID, report.Targets)

	// Step 1: Workspace problems fail the rejected id. A duplicated id also
	// blocks everything that includes it.
	duplicated := make(map[string]bool)
	var blockers []error
	for _, p := range c.problems {
		report.addFailure(problemID(p), "", p)
		var dup *prompt.DuplicateError
		if errors.As(p, &dup) && !duplicated[dup.ID] {
			duplicated[dup.ID] = true
			blockers = append(blockers, p)
		}
	}

	// Step 2: Construct every definition once, sequentially
	lib := c.registry.Construct()

	// Step 3: Validate the whole graph before anything is written
	graphErrs := prompt.ValidateGraph(c.registry)
	blockers = append(blockers, graphErrs...)

	roots := c.selectRoots(lib, req.Only, report)
	if len(req.Only) == 0 {
		c.reportUnreachedProblems(lib, roots, graphErrs, report)
	}

	// Step 4: Compile roots with a bounded pool
	resolver := prompt.NewIncludeResolver(lib)
	engine := prompt.NewTemplateEngine(c.config.StrictVariables)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Workers)

	for _, root := range roots {
		if gctx.Err() != nil {
			logging.Get(logging.CategoryCompile).Warn("compilation cancelled; %s and later roots not scheduled", root.Meta.ID)
			break
		}
		if duplicated[root.Meta.ID] {
			logging.CompileDebug("%s is declared more than once; not emitted", root.Meta.ID)
			continue
		}
		if blocking := graphErrorsFor(c.registry, root.Meta.ID, blockers); blocking != nil {
			report.addFailure(root.Meta.ID, "", blocking)
			continue
		}
		root := root
		g.Go(func() error {
			c.compileRoot(gctx, root, resolver, engine, targets, sessions, report)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	report.Duration = time.Since(started)

	// Step 5: Append to the ledger
	if c.recorder != nil {
		if err := c.record(ctx, report); err != nil {
			logging.Get(logging.CategoryCompile).Error("failed to record session %s: %v", report.SessionID, err)
			report.addWarning("", "", fmt.Sprintf("ledger: %v", err))
		}
	}

	logging.Compile("session %s: %s", report.SessionID, report.Summary())
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Compiler) targets(names []string) ([]target.Target, error) {
	if len(names) == 0 {
		names = c.config.Targets
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no targets selected")
	}

	seen := make(map[string]bool)
	var out []target.Target
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		t, err := target.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t.WithOutputRoot(c.config.OutputDirs[name]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// sessions builds one read-only session per target. They share the session
// id and clock so every artifact of a batch carries the same SESSION_ID.
func (c *Compiler) sessions(targets []target.Target) map[string]*prompt.Session {
	id := c.config.SessionID
	now := c.config.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make(map[string]*prompt.Session, len(targets))
	for _, t := range targets {
		dirs := t.Directories()
		s := prompt.NewSession(prompt.SessionOptions{
			ID:                id,
			Target:            t.Name,
			Now:               now,
			ProjectDirectory:  c.config.ProjectDirectory,
			BrainDirectory:    dirs[prompt.VarBrainDirectory],
			AgentsDirectory:   dirs[prompt.VarAgentsDirectory],
			CommandsDirectory: dirs[prompt.VarCommandsDirectory],
			SkillsDirectory:   dirs[prompt.VarSkillsDirectory],
			Variables:         c.config.Variables,
		})
		id = s.ID()
		out[t.Name] = s
	}
	return out
}

func (c *Compiler) selectRoots(lib *prompt.Library, only []string, report *Report) []*prompt.Definition {
	if len(only) == 0 {
		return lib.Roots()
	}

	seen := make(map[string]bool)
	var roots []*prompt.Definition
	for _, id := range only {
		if seen[id] {
			continue
		}
		seen[id] = true

		entry, ok := lib.Get(id)
		if !ok {
			report.addFailure(id, "", fmt.Errorf("%w: no definition with id %q", prompt.ErrMissingInclude, id))
			continue
		}
		if !entry.Definition.Kind.Emitted() {
			report.addWarning(id, "", "include definitions are not emitted on their own")
			continue
		}
		roots = append(roots, entry.Definition)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Meta.ID < roots[j].Meta.ID })
	return roots
}

// graphErrorsFor returns the graph problems and duplicated ids reachable
// from root, joined, or nil when root is unaffected.
func graphErrorsFor(reg *prompt.Registry, root string, graphErrs []error) error {
	var hits []error
	for _, err := range graphErrs {
		if len(prompt.Reaches(reg, root, problemMembers(err))) > 0 {
			hits = append(hits, err)
		}
	}
	return errors.Join(hits...)
}

// reportUnreachedProblems surfaces failures that no selected root runs into:
// include definitions that failed construction and graph problems outside
// every root's closure.
func (c *Compiler) reportUnreachedProblems(lib *prompt.Library, roots []*prompt.Definition, graphErrs []error, report *Report) {
	for id, err := range lib.Failures() {
		if entry, _ := lib.Get(id); !entry.Definition.Kind.Emitted() {
			report.addFailure(id, "", err)
		}
	}
	for _, err := range graphErrs {
		members := problemMembers(err)
		if len(members) == 0 {
			continue
		}
		reached := false
		for _, r := range roots {
			if len(prompt.Reaches(c.registry, r.Meta.ID, members)) > 0 {
				reached = true
				break
			}
		}
		if !reached {
			report.addWarning(members[0], "", err.Error())
		}
	}
}

func problemMembers(err error) []string {
	var cycle *prompt.CycleError
	if errors.As(err, &cycle) {
		return cycle.Members()
	}
	var missing *prompt.MissingIncludeError
	if errors.As(err, &missing) {
		return []string{missing.From}
	}
	var dup *prompt.DuplicateError
	if errors.As(err, &dup) {
		return []string{dup.ID}
	}
	return nil
}

func problemID(err error) string {
	var dup *prompt.DuplicateError
	if errors.As(err, &dup) {
		return dup.ID
	}
	var verr *prompt.ValidationError
	if errors.As(err, &verr) && verr.Definition != "" {
		return verr.Definition
	}
	var ferr *loader.FileError
	if errors.As(err, &ferr) {
		return ferr.Source
	}
	return "(registry)"
}

// compileRoot resolves root once and emits it for every target.
func (c *Compiler) compileRoot(ctx context.Context, root *prompt.Definition, resolver *prompt.IncludeResolver,
	engine *prompt.TemplateEngine, targets []target.Target, sessions map[string]*prompt.Session, report *Report) {
	id := root.Meta.ID

	res, err := resolver.Resolve(id)
	if err != nil {
		report.addFailure(id, "", err)
		return
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		artifact, kind, err := c.emit(ctx, res, t, sessions[t.Name], engine)
		if err != nil {
			logging.Get(logging.CategoryCompile).Warn("%s [%s] failed: %v", id, t.Name, err)
			report.addFailureKind(id, t.Name, kind, err)
			continue
		}
		report.addArtifact(artifact)
	}
}

// emit renders one artifact fully in memory and then writes it.
func (c *Compiler) emit(ctx context.Context, res *prompt.Resolution, t target.Target, session *prompt.Session,
	engine *prompt.TemplateEngine) (Artifact, FailureKind, error) {
	def := res.Root

	path, err := t.Path(def.Kind, def.Meta.ID)
	if err != nil {
		return Artifact{}, FailureStructural, err
	}
	path = filepath.ToSlash(path)

	scoped := session.ForDefinition(def, path)
	meta, fragments, unresolved, err := engine.Apply(def.Meta, res.Fragments, scoped)
	if err != nil {
		return Artifact{}, FailureSubstitution, err
	}

	body := c.assembler.Assemble(meta, fragments)
	content, err := t.Render(def.Kind, meta, body)
	if err != nil {
		return Artifact{}, FailureIO, fmt.Errorf("render %s envelope: %w", t.Envelope(def.Kind), err)
	}

	if err := c.writer.Write(ctx, path, content); err != nil {
		return Artifact{}, FailureIO, fmt.Errorf("write %s: %w", path, err)
	}

	manifest := prompt.NewManifest(res, scoped, string(content), unresolved)
	var warnings []string
	for _, name := range unresolved {
		warnings = append(warnings, fmt.Sprintf("unresolved variable %s left literal", name))
	}

	logging.Get(logging.CategoryEmit).Debug("wrote %s (%d bytes, %d fragments)", path, len(content), manifest.FragmentCount())
	return Artifact{
		Unchanged:    c.unchanged(ctx, def.Meta.ID, t.Name, manifest.ContentHash),
		DefinitionID: def.Meta.ID,
		Kind:         def.Kind,
		Target:       t.Name,
		Path:         path,
		Content:      content,
		Hash:         manifest.ContentHash,
		Tokens:       manifest.TokenCount,
		Warnings:     warnings,
		Manifest:     manifest,
	}, "", nil
}

// unchanged reports whether hash matches the last recorded build of the pair.
func (c *Compiler) unchanged(ctx context.Context, id, targetName, hash string) bool {
	if c.history == nil {
		return false
	}
	last, ok, err := c.history.LastHash(ctx, id, targetName)
	if err != nil {
		logging.Get(logging.CategoryLedger).Warn("last hash of %s [%s]: %v", id, targetName, err)
		return false
	}
	return ok && last == hash
}

func (c *Compiler) record(ctx context.Context, report *Report) error {
	artifacts := make([]ledger.ArtifactRecord, 0, len(report.Artifacts))
	for _, a := range report.Artifacts {
		artifacts = append(artifacts, ledger.ArtifactRecord{
			SessionID:    report.SessionID,
			DefinitionID: a.DefinitionID,
			Kind:         string(a.Kind),
			Target:       a.Target,
			Path:         a.Path,
			ContentHash:  a.Hash,
			Tokens:       a.Tokens,
			Warnings:     a.Warnings,
			CompiledAt:   a.Manifest.CompiledAt,
		})
	}
	failures := make([]ledger.FailureRecord, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, ledger.FailureRecord{
			SessionID:    report.SessionID,
			DefinitionID: f.DefinitionID,
			Target:       f.Target,
			Kind:         string(f.Kind),
			Message:      f.Err.Error(),
			FailedAt:     report.StartedAt,
		})
	}
	return c.recorder.Record(ctx, report.SessionID, artifacts, failures)
}
