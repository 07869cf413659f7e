package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMappingYAML = `users:
  alice: abot
  bob: ""
repositories:
  workspace/silver: org/silver
issue_counts:
  workspace/silver: 10
state_labels:
  wontfix: wontfix
  resolved: ""
priority_labels:
  blocker: critical
kind_labels:
  bug: bug
component_labels:
  parser: "component: parser"
open_states:
  - new
  - open
  - OPEN
`

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMapping(t *testing.T) {
	mapping, err := LoadMapping(writeMapping(t, testMappingYAML))
	require.NoError(t, err)

	assert.Equal(t, "abot", mapping.Users["alice"])
	// Mapped to empty means known but intentionally dropped.
	value, ok := mapping.Users["bob"]
	assert.True(t, ok)
	assert.Empty(t, value)

	assert.Equal(t, "org/silver", mapping.Repositories["workspace/silver"])
	assert.Equal(t, 10, mapping.IssueCounts["workspace/silver"])
	assert.Equal(t, "wontfix", mapping.StateLabels["wontfix"])
	assert.Equal(t, "critical", mapping.PriorityLabels["blocker"])
	assert.Equal(t, "component: parser", mapping.ComponentLabels["parser"])
	assert.Contains(t, mapping.OpenStates, "new")
	assert.Equal(t, DefaultIgnorePrefix, mapping.IgnorePrefix)
}

func TestLoadMappingIgnorePrefixOverride(t *testing.T) {
	mapping, err := LoadMapping(writeMapping(t, testMappingYAML+`ignore_prefix: "old_"`))
	require.NoError(t, err)
	assert.Equal(t, "old_", mapping.IgnorePrefix)
}

func TestLoadMappingMissingFile(t *testing.T) {
	_, err := LoadMapping(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadReadsTokenFromEnvironment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "test-token")

	cfg, err := Load(writeMapping(t, testMappingYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.GitHub.Token)
	assert.Equal(t, "abot", cfg.Mapping.Users["alice"])
}

func TestValidateRepository(t *testing.T) {
	assert.NoError(t, ValidateRepository("owner/repo"))
	assert.Error(t, ValidateRepository("owner"))
	assert.Error(t, ValidateRepository("owner/"))
	assert.Error(t, ValidateRepository("/repo"))
	assert.Error(t, ValidateRepository("a/b/c"))
}
