package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jdeniau/bitbucket-issue-migration/internal/commitmap"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/internal/migrate"
	"github.com/jdeniau/bitbucket-issue-migration/internal/rewrite"
)

// migrateCmd represents the command that performs the full migration pass.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate Bitbucket issues and pull requests to GitHub",
	Long: `Migrate every issue and pull request discussion of a Bitbucket repository
to the configured GitHub repository.

Issues land first and keep their numbers; pull requests follow, shifted by
the repository's issue count. Open pull requests become GitHub pull
requests, closed ones become closed issues titled with a '[PR] ' prefix.
Attachments are bundled into one private gist per issue and linked from
the issue body.

The pass is idempotent: an item that already exists at its destination
number is updated in place, so an interrupted run can simply be repeated.

Example:
  bb-migrate migrate -b workspace/repo -g owner/repo -m mapping.yaml --commit-map ./maps

The --dev flag uploads a single pull request and nothing else, for
inspecting the rendering of one item without a full pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipAttachments, err := cmd.Flags().GetBool("skip-attachments")
		if err != nil {
			return err
		}
		devPull, err := cmd.Flags().GetInt("dev")
		if err != nil {
			return err
		}
		commitMapDir, err := cmd.Flags().GetString("commit-map")
		if err != nil {
			return err
		}

		c, err := setup(cmd)
		if err != nil {
			return err
		}

		commits := commitmap.Empty()
		if commitMapDir != "" {
			commits, err = commitmap.Load(commitMapDir)
			if err != nil {
				return err
			}
		} else {
			logging.Warn("no commit map directory given, commit links will not resolve")
		}

		rewriter := rewrite.NewRewriter(c.mapper, c.source.FullName(), c.dest.FullName())
		runner := migrate.NewRunner(c.source, c.dest, c.mapper, rewriter, commits, c.reporter,
			migrate.Options{SkipAttachments: skipAttachments})

		logging.Info("starting migration",
			"source", c.source.FullName(),
			"destination", c.dest.FullName(),
			"skip_attachments", skipAttachments)

		if devPull > 0 {
			return runner.RunDev(cmd.Context(), devPull)
		}
		return runner.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("skip-attachments", false, "do not migrate issue attachments")
	migrateCmd.Flags().Int("dev", 0, "migrate only the pull request with this id")
	migrateCmd.Flags().String("commit-map", "", "directory of mercurial-to-git commit map files")
}
