// Package cmd provides the command-line interface for the migration tool.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdeniau/bitbucket-issue-migration/internal/bitbucket"
	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/github"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
)

var rootCmd = &cobra.Command{
	Use:   "bb-migrate",
	Short: "bb-migrate moves Bitbucket issue and pull request discussions to GitHub",
	Long: `bb-migrate migrates the discussions of a Bitbucket repository to GitHub:
issues, pull requests, comments, attachments, state changes and approvals.

Issues keep their numbers; pull requests are renumbered into the same
sequence after the last issue, and every cross-reference in migrated text
is rewritten to the destination numbering. The migration is re-runnable:
items that already exist at their destination number are updated in place.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Persistent flags shared by every subcommand.
	rootCmd.PersistentFlags().StringP("bitbucket-repository", "b", "", "Bitbucket repository full name (e.g. 'workspace/repo')")
	rootCmd.PersistentFlags().StringP("github-repository", "g", "", "GitHub repository full name (e.g. 'owner/repo')")
	rootCmd.PersistentFlags().StringP("mapping", "m", "mapping.yaml", "path to the YAML mapping tables")
}

// clients bundles everything the migrate and check subcommands build
// the same way: configuration, both platform clients, the identity
// mapper and the shared problem reporter.
type clients struct {
	cfg      *config.Config
	source   *bitbucket.Client
	dest     *github.Client
	mapper   *identity.Mapper
	reporter *diag.Reporter
}

// setup resolves the persistent flags, loads the configuration and
// constructs the platform clients.
func setup(cmd *cobra.Command) (*clients, error) {
	sourceRepo, err := cmd.Flags().GetString("bitbucket-repository")
	if err != nil {
		return nil, err
	}
	destRepo, err := cmd.Flags().GetString("github-repository")
	if err != nil {
		return nil, err
	}
	mappingPath, err := cmd.Flags().GetString("mapping")
	if err != nil {
		return nil, err
	}

	if sourceRepo == "" {
		return nil, fmt.Errorf("bitbucket-repository flag is required")
	}
	if destRepo == "" {
		return nil, fmt.Errorf("github-repository flag is required")
	}
	if err := config.ValidateRepository(sourceRepo); err != nil {
		return nil, err
	}
	if err := config.ValidateRepository(destRepo); err != nil {
		return nil, err
	}

	cfg, err := config.Load(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dest, err := github.NewClient(cfg.GitHub.Token, destRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize github client: %w", err)
	}

	reporter := diag.NewReporter()
	return &clients{
		cfg:      cfg,
		source:   bitbucket.NewClient(sourceRepo),
		dest:     dest,
		mapper:   identity.NewMapper(cfg.Mapping, reporter),
		reporter: reporter,
	}, nil
}
