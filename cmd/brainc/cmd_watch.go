package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brainc/internal/compiler"
	"brainc/internal/graph"
	"brainc/internal/prompt"
	"brainc/internal/watch"
)

var impactDeps bool

// impactCmd lists what a change to one definition affects
var impactCmd = &cobra.Command{
	Use:   "impact [id]",
	Short: "List the definitions that transitively include a definition",
	Long: `Evaluates the include graph and prints every definition that would be
recompiled if the given definition changed. With --deps, prints what the
definition transitively includes instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runImpact,
}

// watchCmd recompiles affected definitions when definition files change
var watchCmd = &cobra.Command{
	Use:   "watch [target...|all]",
	Short: "Recompile on definition changes",
	Long: `Compiles once, then watches the definition directories. Each settled batch
of changes recompiles the changed definitions and everything that includes
them.`,
	RunE: runWatch,
}

func init() {
	impactCmd.Flags().BoolVar(&impactDeps, "deps", false, "Show dependencies instead of dependents")
}

func runImpact(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}
	id := args[0]
	if _, ok := ws.Registry.Get(id); !ok {
		return fmt.Errorf("no definition with id %q", id)
	}

	analysis, err := graph.Build(ws.Registry)
	if err != nil {
		return err
	}

	ids := analysis.Dependents(id)
	label := "included by"
	if impactDeps {
		ids = analysis.Dependencies(id)
		label = "includes"
	}

	cyclic := make(map[string]bool)
	for _, c := range analysis.Cyclic() {
		cyclic[c] = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s %s %d definitions", id, label, len(ids))))
	for _, dep := range ids {
		d, _ := ws.Registry.Get(dep)
		kind := "unknown"
		if d != nil {
			kind = string(d.Kind)
		}
		line := fmt.Sprintf("  %s %s", dep, mutedStyle.Render("("+kind+")"))
		if cyclic[dep] {
			line += " " + errorStyle.Render("cycle")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	targets, err := parseTargets(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}
	report, err := compileWorkspace(ctx, ws, compiler.Request{Targets: targets}, false)
	if err != nil {
		return err
	}
	printReport(out, report)

	session := &watchSession{ws: ws, targets: targets, cmd: cmd}
	var watchers []*watch.Watcher
	for _, root := range watchRoots(cfg.ProjectRoot(), append(append([]string(nil), cfg.Definitions.Patterns...), cfg.Definitions.Scripts...)) {
		w, err := watch.New(root, cfg.GetDebounce(), session.onChange)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		watchers = append(watchers, w)
		logger.Info("Watching", zap.String("dir", root))
		fmt.Fprintln(out, mutedStyle.Render("watching "+root))
	}
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	<-ctx.Done()
	return nil
}

// watchRoots returns the static directory prefix of each glob pattern,
// deduplicated and with nested roots folded into their parents.
func watchRoots(projectRoot string, patterns []string) []string {
	var bases []string
	for _, p := range patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		if !filepath.IsAbs(base) {
			base = filepath.Join(projectRoot, filepath.FromSlash(base))
		}
		bases = append(bases, filepath.Clean(base))
	}
	sort.Strings(bases)

	var roots []string
	for _, b := range bases {
		if len(roots) > 0 {
			last := roots[len(roots)-1]
			if b == last || strings.HasPrefix(b, last+string(filepath.Separator)) {
				continue
			}
		}
		roots = append(roots, b)
	}
	return roots
}

// watchSession reloads the workspace on every change batch and recompiles
// what the batch affects.
type watchSession struct {
	mu      sync.Mutex
	ws      *compiler.Workspace
	targets []string
	cmd     *cobra.Command
}

func (s *watchSession) onChange(ctx context.Context, paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []string
	for _, p := range paths {
		if s.ws.Loader.Owns(p) {
			owned = append(owned, p)
		}
	}
	if len(owned) == 0 {
		return
	}
	logger.Info("Definitions changed", zap.Strings("paths", owned))

	next, err := loadWorkspace(ctx)
	if err != nil {
		logger.Error("Reload failed", zap.Error(err))
		fmt.Fprintf(s.cmd.ErrOrStderr(), "%s %v\n", errorStyle.Render("✗"), err)
		return
	}

	changed := changedIDs(cfg.ProjectRoot(), owned, s.ws.Registry, next.Registry)
	s.ws = next

	analysis, err := graph.Build(next.Registry)
	if err != nil {
		logger.Error("Graph analysis failed", zap.Error(err))
		return
	}
	var only []string
	for _, id := range analysis.Affected(changed) {
		if d, ok := next.Registry.Get(id); ok && d.Kind.Emitted() {
			only = append(only, id)
		}
	}
	if len(only) == 0 {
		logger.Debug("No emitted definitions affected", zap.Strings("changed", changed))
		return
	}

	report, err := compileWorkspace(ctx, next, compiler.Request{Targets: s.targets, Only: only}, false)
	if report != nil {
		printReport(s.cmd.OutOrStdout(), report)
	}
	if err != nil {
		logger.Warn("Recompile interrupted", zap.Error(err))
	}
}

// changedIDs maps changed files to the ids they declared before or declare
// now, so edits, additions and removals are all covered.
func changedIDs(projectRoot string, paths []string, regs ...*prompt.Registry) []string {
	sources := make(map[string]bool, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(projectRoot, p); err == nil {
			sources[filepath.ToSlash(rel)] = true
		}
	}

	set := make(map[string]bool)
	for _, reg := range regs {
		for _, d := range reg.All() {
			source, _, _ := strings.Cut(d.Source, "#")
			if sources[source] {
				set[d.Meta.ID] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
