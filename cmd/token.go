package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
)

// storeTokenCmd files the GitHub token in the system keyring so that
// later runs work without GITHUB_TOKEN in the environment.
var storeTokenCmd = &cobra.Command{
	Use:   "store-token <token>",
	Short: "Store the GitHub token in the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.StoreToken(args[0]); err != nil {
			return err
		}
		logging.Info("stored github token in keyring",
			"service", config.KeyringService,
			"token", logging.MaskToken(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeTokenCmd)
}
