package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackrox/acs-loadtest/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the simulated user types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range scenario.Names() {
				u, err := scenario.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", u.Name)
				if u.Description != "" {
					fmt.Fprintf(out, "  %s\n", u.Description)
				}
				for _, t := range u.Tasks {
					fmt.Fprintf(out, "  - %s (weight %d)\n", t.Name, max(t.Weight, 1))
				}
			}
			return nil
		},
	}
}
