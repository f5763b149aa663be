package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brainc/internal/config"
)

var initForce bool

// initCmd writes a default brainc.yaml and a sample definition
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize brainc in the current workspace",
	Long: `Creates brainc.yaml with the default configuration and a sample
definition under definitions/.

Existing files are left untouched unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

const sampleDefinition = `# Sample definition. Run "brainc compile" to emit it for every target.
kind: agent
id: docs-writer
description: Writes and maintains documentation for {{ PROJECT_DIRECTORY }}
color: green
model: sonnet
includes:
  - core-constraints
fragments:
  - guideline: voice
    text: Write for a reader who has never seen the codebase.
    examples:
      - Lead with what the reader can do.
      - key: length
        value: One idea per sentence.
  - rule: docs-match-code
    severity: high
    text: Never document behavior you have not verified in the code.
    why: Stale docs cost more than missing docs.
    on_violation: Remove the claim or verify it first.
`

func runInit(cmd *cobra.Command, args []string) error {
	root := cfg.ProjectRoot()
	out := cmd.OutOrStdout()

	cfgPath := resolveConfigPath()
	if err := writeIfAbsent(cfgPath, func() error {
		c := config.DefaultConfig()
		return c.Save(cfgPath)
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", okStyle.Render("wrote"), cfgPath)

	samplePath := filepath.Join(root, "definitions", "docs-writer.yaml")
	if err := writeIfAbsent(samplePath, func() error {
		if err := os.MkdirAll(filepath.Dir(samplePath), 0755); err != nil {
			return fmt.Errorf("failed to create definitions directory: %w", err)
		}
		return os.WriteFile(samplePath, []byte(sampleDefinition), 0644)
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", okStyle.Render("wrote"), samplePath)

	logger.Info("Initialized workspace", zap.String("root", root))
	fmt.Fprintln(out, mutedStyle.Render("Next: brainc validate && brainc compile all"))
	return nil
}

func writeIfAbsent(path string, write func() error) error {
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return write()
}
