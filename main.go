// Package main is the entry point for the bb-migrate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jdeniau/bitbucket-issue-migration/cmd"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(os.Stderr, logLevel)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
