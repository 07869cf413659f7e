// Package identity resolves source-platform identities (user nicknames,
// repository full names, enumeration values) to their destination
// equivalents using the static mapping tables. Lookups never fail hard:
// unmapped values degrade to an explicit, reported default so the
// migration keeps going and nothing is dropped silently.
package identity

import (
	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// Field names one of the label enumerations.
type Field string

const (
	// FieldState is the issue/pull request state enumeration
	FieldState Field = "state"

	// FieldPriority is the issue priority enumeration
	FieldPriority Field = "priority"

	// FieldKind is the issue kind enumeration
	FieldKind Field = "kind"

	// FieldComponent is the issue component enumeration
	FieldComponent Field = "component"
)

// Mapper answers identity lookups against the configured tables.
type Mapper struct {
	mapping  config.Mapping
	reporter *diag.Reporter
	open     map[string]bool
}

// NewMapper builds a Mapper over the given tables. Diagnostics for
// unmapped values go through reporter.
func NewMapper(mapping config.Mapping, reporter *diag.Reporter) *Mapper {
	open := make(map[string]bool, len(mapping.OpenStates))
	for _, state := range mapping.OpenStates {
		open[state] = true
	}
	return &Mapper{
		mapping:  mapping,
		reporter: reporter,
		open:     open,
	}
}

// User resolves a source nickname to the destination handle. Every
// result carries the ignore prefix, mapped or not, so that migrated
// content can never ping a destination user. An unmapped nickname is
// reported once.
func (m *Mapper) User(nickname string) string {
	mapped, ok := m.mapping.Users[nickname]
	if !ok {
		m.reporter.WarnOncef("user:"+nickname,
			"user %q is not configured in the user mapping", nickname)
		return m.mapping.IgnorePrefix + nickname
	}
	return m.mapping.IgnorePrefix + mapped
}

// HasUser reports whether a nickname has a configured mapping, without
// resolving it or warning. The diagnostic pass uses this to list every
// gap at once.
func (m *Mapper) HasUser(nickname string) bool {
	_, ok := m.mapping.Users[nickname]
	return ok
}

// UserAccount resolves an optional account, returning the empty string
// for a nil account (deleted user).
func (m *Mapper) UserAccount(account *models.Account) string {
	if account == nil {
		return ""
	}
	return m.User(account.Nickname)
}

// Repo resolves a source repository full name to the destination full
// name. The second result is false when the repository is not
// configured; the caller decides on a fallback.
func (m *Mapper) Repo(fullName string) (string, bool) {
	mapped, ok := m.mapping.Repositories[fullName]
	return mapped, ok
}

// Repos returns every configured source repository full name.
func (m *Mapper) Repos() []string {
	repos := make([]string, 0, len(m.mapping.Repositories))
	for name := range m.mapping.Repositories {
		repos = append(repos, name)
	}
	return repos
}

// IssueCount returns the configured issue count for a source
// repository, the offset applied to its pull request numbers. The
// second result is false when the repository has no configured count.
func (m *Mapper) IssueCount(fullName string) (int, bool) {
	count, ok := m.mapping.IssueCounts[fullName]
	return count, ok
}

// LabelsFor maps one enumeration value to zero or one destination
// label. A value mapped to the empty string is intentionally dropped
// without a warning; a value missing from the enumeration is reported
// and dropped.
func (m *Mapper) LabelsFor(field Field, value string) []string {
	table := m.table(field)
	label, ok := table[value]
	if !ok {
		m.reporter.WarnOncef(string(field)+":"+value,
			"ignoring %s value %q: not configured in the %s mapping", field, value, field)
		return nil
	}
	if label == "" {
		return nil
	}
	return []string{label}
}

// Closed derives the destination closed flag from a source state. Any
// state outside the configured open set counts as closed; a state that
// is also absent from the state enumeration has already been reported
// by LabelsFor.
func (m *Mapper) Closed(state string) bool {
	return !m.open[state]
}

func (m *Mapper) table(field Field) map[string]string {
	switch field {
	case FieldState:
		return m.mapping.StateLabels
	case FieldPriority:
		return m.mapping.PriorityLabels
	case FieldKind:
		return m.mapping.KindLabels
	case FieldComponent:
		return m.mapping.ComponentLabels
	default:
		return nil
	}
}
