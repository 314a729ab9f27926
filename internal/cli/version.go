package cli

import (
	"fmt"
	"os"

	"github.com/agentdeck/agentctl/internal/version"
	"github.com/spf13/cobra"
)

func (a *app) newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of agentctl",
		Args:  cobra.NoArgs,
		// Printing the version must work without a usable configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "agentctl version %s\n", version.GetVersion())
			if !check {
				return nil
			}

			checker := version.NewChecker(os.Getenv("AGENTCTL_RELEASES_URL"))
			latest, newer, err := checker.CheckForUpdate(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}
			if newer {
				fmt.Fprint(a.stdout, checker.UpdateMessage(cmd.Context()))
				return nil
			}
			fmt.Fprintf(a.stdout, "Up to date (latest release %s)\n", latest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check for a newer release")
	return cmd
}
