package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/rules"
)

func newRulesCmd() *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Load a rule set and summarize it",
		Long:  "Rules compiles the rule set exactly as the gateway does at startup, failing on the first error.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rules.Load(rulesPath)
			if err != nil {
				return err
			}
			return printRuleSet(cmd.OutOrStdout(), rulesPath, rs)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule set file (default: embedded tourism rule set)")
	return cmd
}

func printRuleSet(out io.Writer, path string, rs *domain.RuleSet) error {
	if path == "" {
		path = "(embedded)"
	}
	fmt.Fprintf(out, "rule set %s %s from %s\n\n", rs.Name, rs.Version, path)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tKIND\tCOUNT")
	for _, row := range summarize(rs) {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", row.section, row.kind, row.count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d constraints, %d inference rules, %d contradiction rules\n",
		len(rs.Constraints), len(rs.Rules), len(rs.Contradictions))
	return nil
}

type summaryRow struct {
	section string
	kind    string
	count   int
}

func summarize(rs *domain.RuleSet) []summaryRow {
	constraints := make(map[string]int)
	for _, c := range rs.Constraints {
		constraints[string(c.Kind())]++
	}
	contradictions := make(map[string]int)
	for _, c := range rs.Contradictions {
		contradictions[string(c.Kind())]++
	}

	var rows []summaryRow
	rows = append(rows, sortedRows("constraints", constraints)...)
	rows = append(rows, summaryRow{section: "inference", kind: "derivation", count: len(rs.Rules)})
	rows = append(rows, sortedRows("contradictions", contradictions)...)
	return rows
}

func sortedRows(section string, counts map[string]int) []summaryRow {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	rows := make([]summaryRow, len(kinds))
	for i, k := range kinds {
		rows[i] = summaryRow{section: section, kind: k, count: counts[k]}
	}
	return rows
}
