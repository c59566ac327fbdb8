// Command factctl checks fact files against a rule set without a running
// gateway.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/Harshitk-cp/factgate/internal/buildconfig"
)

// Exit codes.
const (
	exitOK            = 0
	exitNonConforming = 1
	exitError         = 2
)

// errNonConforming is returned by check when the facts fail validation or
// hold a contradiction.
var errNonConforming = errors.New("facts do not conform to the rule set")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "factctl",
		Short:         "Validate and reason over fact files offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(), newRulesCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the factctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
		},
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNonConforming):
		return exitNonConforming
	default:
		return exitError
	}
}

func main() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, errNonConforming) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
	}
	os.Exit(exitCode(err))
}
