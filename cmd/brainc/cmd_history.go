package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"brainc/internal/ledger"
)

var (
	historyLimit   int
	historySession string
)

// historyCmd shows recent artifact writes from the build ledger
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent builds from the ledger",
	Long: `Lists the most recent artifact writes recorded in the build ledger.
With --session, lists the failures recorded for that session instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of artifacts to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show failures of one session")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Ledger.Enabled {
		return fmt.Errorf("the ledger is disabled (ledger.enabled: false)")
	}
	ctx, cancel := signalContext()
	defer cancel()

	l, closeLedger, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	out := cmd.OutOrStdout()
	if historySession != "" {
		failures, err := l.Failures(ctx, historySession)
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no failures recorded for "+historySession))
			return nil
		}
		table(out, []string{"DEFINITION", "TARGET", "KIND", "MESSAGE"}, failureRows(failures))
		return nil
	}

	records, err := l.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no builds recorded yet"))
		return nil
	}
	table(out, []string{"COMPILED", "SESSION", "DEFINITION", "TARGET", "TOKENS", "HASH", "PATH"}, artifactRows(records))
	return nil
}

func artifactRows(records []ledger.ArtifactRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		hash := r.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		session := r.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		rows = append(rows, []string{
			r.CompiledAt.Local().Format("2006-01-02 15:04:05"),
			session,
			r.DefinitionID,
			r.Target,
			strconv.Itoa(r.Tokens),
			hash,
			r.Path,
		})
	}
	return rows
}

func failureRows(failures []ledger.FailureRecord) [][]string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		target := f.Target
		if target == "" {
			target = "*"
		}
		rows = append(rows, []string{f.DefinitionID, target, f.Kind, f.Message})
	}
	return rows
}
