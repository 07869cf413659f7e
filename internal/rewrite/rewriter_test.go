package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
)

func testRewriter() *Rewriter {
	mapping := config.Mapping{
		Users: map[string]string{
			"alice": "abot",
		},
		Repositories: map[string]string{
			"workspace/silver": "org/silver",
			"workspace/carbon": "org/carbon",
		},
		IssueCounts: map[string]int{
			"workspace/silver": 10,
			"workspace/carbon": 25,
		},
		IgnorePrefix: "ignore_",
	}
	mapper := identity.NewMapper(mapping, diag.NewReporter())
	return NewRewriter(mapper, "workspace/silver", "org/silver")
}

func TestExplicitIssueLinks(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Known repository",
			body:     "see https://bitbucket.org/workspace/silver/issues/42",
			expected: "see https://github.com/org/silver/issues/42",
		},
		{
			name:     "Singular issue path",
			body:     "see https://bitbucket.org/workspace/carbon/issue/7",
			expected: "see https://github.com/org/carbon/issues/7",
		},
		{
			name:     "URL tail is swallowed",
			body:     "https://bitbucket.org/workspace/silver/issues/42/some-title#comment-3",
			expected: "https://github.com/org/silver/issues/42",
		},
		{
			name:     "Unknown repository left untouched",
			body:     "https://bitbucket.org/other/repo/issues/3",
			expected: "https://bitbucket.org/other/repo/issues/3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, testRewriter().ExplicitIssueLinks(tc.body))
		})
	}
}

func TestImplicitIssueLinks(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Bare reference resolves to the current repository",
			body:     "see issue #4",
			expected: "see https://github.com/org/silver/issues/4",
		},
		{
			name:     "Short name prefix resolves to the named repository",
			body:     "see carbon issue #4",
			expected: "see https://github.com/org/carbon/issues/4",
		},
		{
			name:     "Unrecognized prefix falls back to the current repository",
			body:     "see the tracker issue #4",
			expected: "see the tracker https://github.com/org/silver/issues/4",
		},
		{
			name:     "Bracketed span is protected",
			body:     "[issue #4 of X]",
			expected: "[issue #4 of X]",
		},
		{
			name:     "Bracketed span next to a live reference",
			body:     "[link label] and issue #4",
			expected: "[link label] and https://github.com/org/silver/issues/4",
		},
		{
			name:     "Case-insensitive match",
			body:     "Issue #9 needs attention",
			expected: "https://github.com/org/silver/issues/9 needs attention",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, testRewriter().ImplicitIssueLinks(tc.body))
		})
	}
}

func TestExplicitPullLinks(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Number shifted by the repository's issue count",
			body:     "https://bitbucket.org/workspace/silver/pull-requests/2",
			expected: "https://github.com/org/silver/pull/12",
		},
		{
			name:     "Other repository uses its own offset",
			body:     "https://bitbucket.org/workspace/carbon/pull-requests/2",
			expected: "https://github.com/org/carbon/pull/27",
		},
		{
			name:     "Unknown repository left untouched",
			body:     "https://bitbucket.org/other/repo/pull-requests/2",
			expected: "https://bitbucket.org/other/repo/pull-requests/2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, testRewriter().ExplicitPullLinks(tc.body))
		})
	}
}

func TestExplicitPullLinksWithoutOffset(t *testing.T) {
	// A mapped repository without a configured issue count cannot be
	// renumbered, so the link stays as it was.
	mapping := config.Mapping{
		Repositories: map[string]string{"workspace/silver": "org/silver"},
		IgnorePrefix: "ignore_",
	}
	mapper := identity.NewMapper(mapping, diag.NewReporter())
	rewriter := NewRewriter(mapper, "workspace/silver", "org/silver")

	body := "https://bitbucket.org/workspace/silver/pull-requests/2"
	assert.Equal(t, body, rewriter.ExplicitPullLinks(body))
}

func TestImplicitPullLinks(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Bare reference uses the current repository's offset",
			body:     "see pull request #2",
			expected: "see https://github.com/org/silver/pull/12",
		},
		{
			name:     "Short name prefix uses that repository's offset",
			body:     "see carbon pull request #2",
			expected: "see https://github.com/org/carbon/pull/27",
		},
		{
			name:     "Bracketed span is protected",
			body:     "[pull request #2]",
			expected: "[pull request #2]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, testRewriter().ImplicitPullLinks(tc.body))
		})
	}
}

func TestMentions(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Mapped user is still prefixed",
			body:     "ping @alice please",
			expected: "ping @ignore_abot please",
		},
		{
			name:     "Unmapped user keeps the original handle",
			body:     "ping @mallory please",
			expected: "ping @ignore_mallory please",
		},
		{
			name:     "Mention at start of text",
			body:     "@alice hello",
			expected: "@ignore_abot hello",
		},
		{
			name:     "Word-adjacent at-sign is not a mention",
			body:     "mail me at user@example.com",
			expected: "mail me at user@example.com",
		},
		{
			name:     "Braced account id",
			body:     "thanks @{557058:abc-def}",
			expected: "thanks @ignore_{557058:abc-def}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, testRewriter().Mentions(tc.body))
		})
	}
}

func TestRewritePipelineOrder(t *testing.T) {
	body := "see issue #4 and pull request #2, thanks @alice"
	expected := "see https://github.com/org/silver/issues/4 and " +
		"https://github.com/org/silver/pull/12, thanks @ignore_abot"
	assert.Equal(t, expected, testRewriter().Rewrite(body))
}

func TestLinkPassesStableUnderReapplication(t *testing.T) {
	rewriter := testRewriter()

	body := "see issue #4 and https://bitbucket.org/workspace/silver/pull-requests/2"
	once := rewriter.ExplicitIssueLinks(body)
	once = rewriter.ImplicitIssueLinks(once)
	once = rewriter.ExplicitPullLinks(once)
	once = rewriter.ImplicitPullLinks(once)

	twice := rewriter.ExplicitIssueLinks(once)
	twice = rewriter.ImplicitIssueLinks(twice)
	twice = rewriter.ExplicitPullLinks(twice)
	twice = rewriter.ImplicitPullLinks(twice)

	assert.Equal(t, once, twice)
}
