// Package rewrite transforms free-text bodies so that links, textual
// references, and user mentions stay valid after the move to the
// destination platform. The transformation is a pipeline of five pure
// passes applied in a fixed order; each pass only matches source-form
// patterns, so running the pipeline over already-rewritten text is a
// no-op for the link passes.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
)

// Rewriter rewrites one body at a time. It is a pure function of the
// configured tables; construct once per repository pair and reuse.
type Rewriter struct {
	mapper     *identity.Mapper
	sourceRepo string
	destRepo   string

	explicitIssue *regexp.Regexp
	implicitIssue *regexp.Regexp
	explicitPull  *regexp.Regexp
	implicitPull  *regexp.Regexp
	mention       *regexp.Regexp
}

// mentionPattern matches @nickname and @{account-id} tokens. RE2 has no
// lookbehind, so the leading boundary rune is captured and re-emitted.
const mentionPattern = `(^|[^\w])@([a-zA-Z0-9_\-]+|\{[a-zA-Z0-9_\-:]+\})`

// NewRewriter builds the pipeline for one repository pair. sourceRepo
// and destRepo are the full names of the repository being migrated;
// implicit references without a recognizable repository prefix resolve
// to this pair.
func NewRewriter(mapper *identity.Mapper, sourceRepo, destRepo string) *Rewriter {
	repos := mapper.Repos()
	sort.Strings(repos)

	quoted := make([]string, len(repos))
	shortNames := make([]string, len(repos))
	for i, repo := range repos {
		quoted[i] = regexp.QuoteMeta(repo)
		// The trailing space separates the prefix from the reference and
		// belongs to each alternative, so an empty table matches nothing.
		shortNames[i] = regexp.QuoteMeta(shortName(repo)) + " "
	}

	// Explicit links carry the full repository name in the URL; the URL
	// tail (query, fragment, sub-paths) is swallowed by the match.
	explicitIssue := fmt.Sprintf(`https://bitbucket\.org/(%s)/issues?/(\d+)[^\s()\[\]{}]*`,
		strings.Join(quoted, "|"))
	explicitPull := fmt.Sprintf(`https://bitbucket\.org/(%s)/pull-requests?/(\d+)[^\s()\[\]{}]*`,
		strings.Join(quoted, "|"))

	// Implicit references may carry a repository short name prefix. The
	// bracket alternative wins over the reference alternative, which
	// keeps markdown link labels untouched.
	implicitIssue := fmt.Sprintf(`(?i)\[.*?\]|(%s)?issue #(\d+)`,
		strings.Join(shortNames, "|"))
	implicitPull := fmt.Sprintf(`(?i)\[.*?\]|(%s)?pull request #(\d+)`,
		strings.Join(shortNames, "|"))

	return &Rewriter{
		mapper:        mapper,
		sourceRepo:    sourceRepo,
		destRepo:      destRepo,
		explicitIssue: regexp.MustCompile(explicitIssue),
		implicitIssue: regexp.MustCompile(implicitIssue),
		explicitPull:  regexp.MustCompile(explicitPull),
		implicitPull:  regexp.MustCompile(implicitPull),
		mention:       regexp.MustCompile(mentionPattern),
	}
}

// Rewrite runs all five passes in order. Later passes operate on the
// output of earlier ones.
func (r *Rewriter) Rewrite(body string) string {
	body = r.ExplicitIssueLinks(body)
	body = r.ImplicitIssueLinks(body)
	body = r.ExplicitPullLinks(body)
	body = r.ImplicitPullLinks(body)
	return r.Mentions(body)
}

// ExplicitIssueLinks replaces full bitbucket.org issue URLs of known
// repositories with the destination issue URL. Issues keep their
// number; an unknown repository leaves the link untouched.
func (r *Rewriter) ExplicitIssueLinks(body string) string {
	return r.explicitIssue.ReplaceAllStringFunc(body, func(match string) string {
		groups := r.explicitIssue.FindStringSubmatch(match)
		destRepo, ok := r.mapper.Repo(groups[1])
		if !ok {
			return match
		}
		return fmt.Sprintf("https://github.com/%s/issues/%s", destRepo, groups[2])
	})
}

// ImplicitIssueLinks replaces textual "issue #N" references, optionally
// prefixed with a known repository short name, with a destination issue
// link. Square-bracketed spans pass through unchanged. A reference
// without a recognizable prefix points at the current repository.
func (r *Rewriter) ImplicitIssueLinks(body string) string {
	return r.implicitIssue.ReplaceAllStringFunc(body, func(match string) string {
		groups := r.implicitIssue.FindStringSubmatch(match)
		if groups[2] == "" {
			// The bracket alternative matched.
			return match
		}
		destRepo := r.destRepo
		if mapped, found := r.mapper.Repo(r.resolveRepository(groups[1])); found {
			destRepo = mapped
		}
		return fmt.Sprintf("https://github.com/%s/issues/%s", destRepo, groups[2])
	})
}

// ExplicitPullLinks replaces full bitbucket.org pull request URLs of
// known repositories with the destination pull URL, shifting the number
// by that repository's issue count. A repository without a mapping or a
// configured count leaves the link untouched.
func (r *Rewriter) ExplicitPullLinks(body string) string {
	return r.explicitPull.ReplaceAllStringFunc(body, func(match string) string {
		groups := r.explicitPull.FindStringSubmatch(match)
		destRepo, ok := r.mapper.Repo(groups[1])
		if !ok {
			return match
		}
		offset, ok := r.mapper.IssueCount(groups[1])
		if !ok {
			return match
		}
		number, _ := strconv.Atoi(groups[2])
		return fmt.Sprintf("https://github.com/%s/pull/%d", destRepo, number+offset)
	})
}

// ImplicitPullLinks replaces textual "pull request #N" references with
// a destination pull link, shifting the number by the resolved
// repository's issue count. The prefix and bracket rules match
// ImplicitIssueLinks; a missing count leaves the reference untouched.
func (r *Rewriter) ImplicitPullLinks(body string) string {
	return r.implicitPull.ReplaceAllStringFunc(body, func(match string) string {
		groups := r.implicitPull.FindStringSubmatch(match)
		if groups[2] == "" {
			return match
		}
		sourceRepo := r.resolveRepository(groups[1])
		destRepo := r.destRepo
		if mapped, found := r.mapper.Repo(sourceRepo); found {
			destRepo = mapped
		}
		offset, ok := r.mapper.IssueCount(sourceRepo)
		if !ok {
			return match
		}
		number, _ := strconv.Atoi(groups[2])
		return fmt.Sprintf("https://github.com/%s/pull/%d", destRepo, number+offset)
	})
}

// Mentions rewrites every @handle token through the identity mapper.
// Unmapped handles come back in their explicit ignored form, so no bare
// mention survives to ping anyone on the destination platform. Unlike
// the link passes, this pass is not idempotent: a second application
// prefixes the handle again.
func (r *Rewriter) Mentions(body string) string {
	return r.mention.ReplaceAllStringFunc(body, func(match string) string {
		groups := r.mention.FindStringSubmatch(match)
		return groups[1] + "@" + r.mapper.User(groups[2])
	})
}

// resolveRepository turns a captured reference prefix into a configured
// source repository. An empty or unrecognized prefix means the
// reference points at the repository being migrated. This is the single
// fallback policy shared by both implicit passes.
func (r *Rewriter) resolveRepository(prefix string) string {
	token := strings.TrimSuffix(prefix, " ")
	if token == "" {
		return r.sourceRepo
	}
	for _, repo := range r.mapper.Repos() {
		if strings.EqualFold(token, shortName(repo)) {
			return repo
		}
	}
	return r.sourceRepo
}

func shortName(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx >= 0 {
		return fullName[idx+1:]
	}
	return fullName
}
