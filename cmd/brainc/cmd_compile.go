package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brainc/internal/compiler"
	"brainc/internal/target"
)

var (
	compileOnly   []string
	compileDryRun bool

	previewTarget string
	previewRaw    bool
)

// compileCmd compiles definitions for one or more targets
var compileCmd = &cobra.Command{
	Use:   "compile [target...|all]",
	Short: "Compile definitions into agent instruction files",
	Long: `Compiles every emitted definition (or those named by --only) for the given
targets. With no targets the enabled targets from brainc.yaml are used.

Exit codes: 0 when everything compiled, 1 on partial failure, 2 when nothing
compiled.

Examples:
  brainc compile all
  brainc compile claude codex --only code-reviewer,task-plan`,
	RunE: runCompile,
}

// previewCmd renders one compiled artifact in the terminal
var previewCmd = &cobra.Command{
	Use:   "preview [id]",
	Short: "Render a compiled definition in the terminal without writing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	compileCmd.Flags().StringSliceVar(&compileOnly, "only", nil, "Compile only these definition ids")
	compileCmd.Flags().BoolVar(&compileDryRun, "dry-run", false, "Compile in memory without writing artifacts or ledger rows")

	previewCmd.Flags().StringVarP(&previewTarget, "target", "t", target.Claude, "Target to render for")
	previewCmd.Flags().BoolVar(&previewRaw, "raw", false, "Print the raw artifact instead of rendered Markdown")
}

// parseTargets expands command arguments into target names. "all" selects
// every target; no arguments defers to the configuration.
func parseTargets(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		if a == "all" {
			return target.Names(), nil
		}
		if _, err := target.Lookup(a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	targets, err := parseTargets(args)
	if err != nil {
		return err
	}

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}

	report, err := compileWorkspace(ctx, ws, compiler.Request{Targets: targets, Only: compileOnly}, compileDryRun)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if !report.Succeeded() {
		return &exitError{code: report.ExitCode()}
	}
	return nil
}

// compileWorkspace runs one batch against the file system and the ledger,
// or fully in memory for a dry run.
func compileWorkspace(ctx context.Context, ws *compiler.Workspace, req compiler.Request, dryRun bool) (*compiler.Report, error) {
	opts := []compiler.Option{compiler.WithConfig(compiler.ConfigFrom(cfg))}
	if dryRun {
		opts = append(opts, compiler.WithWriter(compiler.NewMemoryWriter()))
	} else {
		l, closeLedger, err := openLedger()
		if err != nil {
			return nil, err
		}
		defer closeLedger()
		if l != nil {
			opts = append(opts, compiler.WithRecorder(l))
		}
	}

	c, err := compiler.New(ws, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Compiling",
		zap.Strings("targets", req.Targets),
		zap.Strings("only", req.Only),
		zap.Bool("dry_run", dryRun))
	report, err := c.Compile(ctx, req)
	if report != nil {
		logger.Info("Compilation finished",
			zap.String("session", report.SessionID),
			zap.Int("artifacts", len(report.Artifacts)),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("duration", report.Duration))
	}
	return report, err
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if _, err := target.Lookup(previewTarget); err != nil {
		return err
	}
	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}

	id := args[0]
	report, err := compileWorkspace(ctx, ws, compiler.Request{Targets: []string{previewTarget}, Only: []string{id}}, true)
	if err != nil {
		return err
	}
	artifact, ok := report.Artifact(id, previewTarget)
	if !ok {
		printReport(cmd.ErrOrStderr(), report)
		return &exitError{code: 2, msg: fmt.Sprintf("%s did not compile for %s", id, previewTarget)}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(artifact.Path))
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d contributors, %d fragments, ~%d tokens, sha256 %s",
		len(artifact.Manifest.Contributors), artifact.Manifest.FragmentCount(), artifact.Tokens, artifact.Hash[:12])))
	for _, name := range artifact.Manifest.Unresolved {
		fmt.Fprintf(out, "%s unresolved variable %s\n", warnStyle.Render("!"), name)
	}

	if previewRaw {
		_, err := out.Write(artifact.Content)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	rendered, err := renderer.Render(string(target.Body(artifact.Content)))
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = out.Write(bytes.TrimLeft([]byte(rendered), "\n"))
	return err
}
