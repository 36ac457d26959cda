// -- cmd/assess.go --
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mirelock/uipilot/pkg/safety"
)

// newAssessCmd creates the command that previews risk classification for an
// action type without executing anything.
func newAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess [action-type]...",
		Short: "Show how the configured risk table classifies the given action types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := safety.NewRiskTable(cfg.Safety.Rules)
			assessments := make([]any, 0, len(args))
			for _, actionType := range args {
				assessments = append(assessments, table.Assess(actionType, nil))
			}
			return printJSON(cmd.OutOrStdout(), assessments)
		},
	}
}
