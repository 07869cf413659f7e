// Package config provides centralized configuration management for the
// migration: the GitHub credential from the environment (with a system
// keyring fallback) and the static mapping tables from a YAML file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the keyring service name the token is filed under.
	KeyringService = "bb-migrate"

	// KeyringTokenKey is the keyring entry holding the GitHub token.
	KeyringTokenKey = "github-token"

	// DefaultIgnorePrefix is prepended to every rewritten mention so that
	// migrated content cannot ping destination users.
	DefaultIgnorePrefix = "ignore_"
)

// Config holds everything the migration reads once at startup.
type Config struct {
	GitHub  GitHubConfig
	Mapping Mapping
}

// GitHubConfig holds the destination platform credential.
type GitHubConfig struct {
	Token string
}

// Mapping holds the static identity tables. Values mapped to the empty
// string mean "known, but intentionally dropped" (no label, for the label
// tables); a missing key means the value is unknown and gets reported.
type Mapping struct {
	// Users maps source nicknames to destination handles
	Users map[string]string `mapstructure:"users"`

	// Repositories maps source full names to destination full names
	Repositories map[string]string `mapstructure:"repositories"`

	// IssueCounts is the expected issue count per source repository, the
	// numbering offset applied to pull request numbers
	IssueCounts map[string]int `mapstructure:"issue_counts"`

	// StateLabels maps source states to destination labels
	StateLabels map[string]string `mapstructure:"state_labels"`

	// PriorityLabels maps source priorities to destination labels
	PriorityLabels map[string]string `mapstructure:"priority_labels"`

	// KindLabels maps source kinds to destination labels
	KindLabels map[string]string `mapstructure:"kind_labels"`

	// ComponentLabels maps source component names to destination labels
	ComponentLabels map[string]string `mapstructure:"component_labels"`

	// OpenStates lists the source states that keep an item open
	OpenStates []string `mapstructure:"open_states"`

	// IgnorePrefix overrides DefaultIgnorePrefix when set
	IgnorePrefix string `mapstructure:"ignore_prefix"`
}

// Load reads the environment (after loading .env when present), resolves
// the GitHub token, and parses the mapping tables from mappingPath.
func Load(mappingPath string) (*Config, error) {
	// A missing .env is fine; the environment may carry the values.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindEnv("github.token", "GITHUB_TOKEN")

	token := v.GetString("github.token")
	if token == "" {
		// Fall back to the system keyring when the environment is unset.
		if stored, err := keyring.Get(KeyringService, KeyringTokenKey); err == nil {
			token = stored
		}
	}

	mapping, err := LoadMapping(mappingPath)
	if err != nil {
		return nil, err
	}

	config := &Config{
		GitHub:  GitHubConfig{Token: token},
		Mapping: *mapping,
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadMapping parses the mapping tables from a YAML file.
func LoadMapping(path string) (*Mapping, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	var mapping Mapping
	if err := v.Unmarshal(&mapping); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	if mapping.IgnorePrefix == "" {
		mapping.IgnorePrefix = DefaultIgnorePrefix
	}

	return &mapping, nil
}

// ValidateRepository checks the owner/name shape shared by both platforms.
func ValidateRepository(fullName string) error {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository format: %s, expected format: owner/repo", fullName)
	}
	return nil
}

func validate(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("github token not found: set GITHUB_TOKEN or store it in the %s keyring", KeyringService)
	}
	return nil
}

// StoreToken files the GitHub token in the system keyring.
func StoreToken(token string) error {
	if err := keyring.Set(KeyringService, KeyringTokenKey, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}
