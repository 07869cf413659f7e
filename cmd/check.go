package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdeniau/bitbucket-issue-migration/internal/migrate"
)

// checkCmd represents the read-only diagnostic command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the mapping tables against the live repositories",
	Long: `Cross-check the mapping tables against the live source and destination
repositories without writing anything.

The check fetches every issue and pull request from Bitbucket, collects
every user handle that appears anywhere in them, and reports the ones
missing from the user mapping. It also verifies the repository mapping,
the configured issue count, that the destination repository is empty
(creation dates can only be preserved on import into an empty
repository), and that pull request endpoints are internally consistent.

Run this until it comes back clean before running 'migrate'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := setup(cmd)
		if err != nil {
			return err
		}

		if err := migrate.Check(cmd.Context(), c.source, c.dest, c.mapper, c.reporter); err != nil {
			return err
		}

		if errors := c.reporter.Errors(); len(errors) > 0 {
			return fmt.Errorf("check found %d blocking problems", len(errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
