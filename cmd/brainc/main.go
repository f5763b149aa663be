package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"brainc/internal/compiler"
	"brainc/internal/config"
	"brainc/internal/ledger"
	"brainc/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "brainc",
	Short: "brainc - declarative prompt compiler for coding agents",
	Long: `brainc compiles declarative prompt definitions into the instruction files
read by coding agents.

Definitions declare metadata and compose reusable includes. brainc resolves
the include graph, substitutes {{ VARIABLE }} placeholders and writes one
artifact per definition and target (claude, codex, qwen, gemini).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		if err := logging.Initialize(cfg.ProjectRoot(), logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.Format == "json",
			Categories: cfg.Logging.Categories,
		}); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		logging.Boot("brainc %s (project %s)", cmd.Name(), cfg.ProjectRoot())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/brainc.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the root command and returns the process exit code. Cleanup
// happens here rather than in a post-run hook, which cobra skips when a
// command fails.
func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	shutdown()

	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// shutdown closes the category log files and flushes the CLI logger.
func shutdown() {
	if logger != nil {
		logger.Debug("Closing log files", zap.Int("open", logging.OpenFiles()))
		_ = logger.Sync()
	}
	logging.CloseAll()
}

// projectDir returns the absolute workspace directory.
func projectDir() string {
	dir := workspace
	if dir == "" {
		dir, _ = os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(projectDir(), config.FileName)
}

// loadConfig reads brainc.yaml. The workspace flag overrides project.root,
// and a relative project.root is taken relative to the config file.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	switch {
	case workspace != "":
		c.Project.Root = projectDir()
	case !filepath.IsAbs(c.Project.Root):
		c.Project.Root = filepath.Join(filepath.Dir(path), c.Project.Root)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// loadWorkspace loads the catalog and the project definitions.
func loadWorkspace(ctx context.Context) (*compiler.Workspace, error) {
	ws, err := compiler.LoadWorkspace(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Workspace loaded",
		zap.Int("definitions", ws.Registry.Len()),
		zap.Int("problems", len(ws.Problems)))
	return ws, nil
}

// openLedger opens the build ledger when it is enabled. The returned close
// function is never nil.
func openLedger() (*ledger.Ledger, func(), error) {
	if !cfg.Ledger.Enabled {
		return nil, func() {}, nil
	}
	l, err := ledger.Open(cfg.ResolvePath(cfg.Ledger.Path))
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open ledger: %w", err)
	}
	return l, func() {
		if err := l.Close(); err != nil {
			logger.Warn("Failed to close ledger", zap.Error(err))
		}
	}, nil
}
