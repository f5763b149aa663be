package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brainc/internal/prompt"
)

var listKind string

// listCmd lists every registered definition
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered definitions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// validateCmd constructs every definition and checks the include graph
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate definitions and the include graph without writing anything",
	Long: `Constructs every definition and checks the include graph for duplicate
ids, missing includes and cycles. Exits non-zero when any problem is found.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

// resolveCmd prints the flattened include order of one definition
var resolveCmd = &cobra.Command{
	Use:   "resolve [id]",
	Short: "Show the resolved include order and fragments of a definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "Only list definitions of this kind")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}

	defs := ws.Registry.All()
	if listKind != "" {
		kind, err := prompt.ParseKind(listKind)
		if err != nil {
			return err
		}
		defs = ws.Registry.ByKind(kind)
	}

	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, []string{d.Meta.ID, string(d.Kind), strings.Join(d.Includes, ","), d.Source})
	}
	table(cmd.OutOrStdout(), []string{"ID", "KIND", "INCLUDES", "SOURCE"}, rows)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	problems := append([]error(nil), ws.Problems...)
	lib := ws.Registry.Construct()
	failures := lib.Failures()
	for _, id := range lib.IDs() {
		if err := failures[id]; err != nil {
			problems = append(problems, err)
		}
	}
	problems = append(problems, prompt.ValidateGraph(ws.Registry)...)

	if len(problems) == 0 {
		fmt.Fprintf(out, "%s %d definitions, include graph is acyclic and complete\n",
			okStyle.Render("✓"), ws.Registry.Len())
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "  %s %v\n", errorStyle.Render("✗"), p)
	}
	return &exitError{code: 1, msg: fmt.Sprintf("%d problems found", len(problems))}
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}

	id := args[0]
	res, err := prompt.NewIncludeResolver(ws.Registry.Construct()).Resolve(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%s)", id, res.Root.Kind)))
	for i, contributor := range res.Order {
		fmt.Fprintf(out, "%2d. %s\n", i+1, contributor)
		for _, rf := range res.Fragments {
			if rf.Origin != contributor {
				continue
			}
			label := string(rf.Fragment.Kind)
			if rf.Fragment.Severity != "" {
				label += " " + string(rf.Fragment.Severity)
			}
			fmt.Fprintf(out, "      %s %s\n", rf.Fragment.ID, mutedStyle.Render("("+label+")"))
		}
	}
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d definitions, %d fragments", len(res.Order), len(res.Fragments))))
	return nil
}
