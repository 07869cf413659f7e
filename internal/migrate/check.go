package migrate

import (
	"context"
	"sort"

	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// Check cross-checks the configuration against the live source data
// without writing anything: repository tables, issue counts, every user
// handle encountered anywhere, and pull request endpoint consistency.
// Problems are reported, never corrected.
func Check(ctx context.Context, source Source, dest Destination, mapper *identity.Mapper, reporter *diag.Reporter) error {
	issues, err := source.Issues(ctx)
	if err != nil {
		return err
	}
	pulls, err := source.Pulls(ctx)
	if err != nil {
		return err
	}
	issuesCount, err := dest.IssuesCount(ctx)
	if err != nil {
		return err
	}
	pullsCount, err := dest.PullsCount(ctx)
	if err != nil {
		return err
	}

	logging.Info("source and destination inventory",
		"source_issues", len(issues),
		"source_pulls", len(pulls),
		"destination_issues", issuesCount,
		"destination_pulls", pullsCount)

	if issuesCount != 0 {
		reporter.Warnf("the destination repository already has issues, so creation dates cannot be preserved")
	}
	if issuesCount+pullsCount > len(issues)+len(pulls) {
		reporter.Errorf("the destination has %d items but the source only has %d",
			issuesCount+pullsCount, len(issues)+len(pulls))
	}

	checkRepositoryTables(source.FullName(), dest.FullName(), len(issues), mapper, reporter)

	nicknames := make(map[string]bool)
	collect := func(account *models.Account) {
		if account != nil {
			nicknames[account.Nickname] = true
		}
	}

	for _, issue := range issues {
		collect(issue.Reporter)
		collect(issue.Assignee)
		comments, err := source.IssueComments(ctx, issue.ID)
		if err != nil {
			return err
		}
		for _, comment := range comments {
			collect(comment.User)
		}
	}

	for _, pull := range pulls {
		collect(pull.Author)
		for _, participant := range pull.Participants {
			collect(participant.User)
		}
		for i := range pull.Reviewers {
			collect(&pull.Reviewers[i])
		}
		comments, err := source.PullComments(ctx, pull.ID)
		if err != nil {
			return err
		}
		for _, comment := range comments {
			collect(comment.User)
		}

		checkEndpoint(pull, "source", pull.Source, reporter)
		checkEndpoint(pull, "destination", pull.Destination, reporter)
		if pull.Destination.Repository != "" && pull.Destination.Repository != source.FullName() {
			reporter.Errorf("pull request #%d targets %q instead of %q",
				pull.ID, pull.Destination.Repository, source.FullName())
		}
	}

	reportUnknownUsers(nicknames, mapper, reporter)
	reporter.LogSummary()
	return nil
}

func checkRepositoryTables(sourceRepo, destRepo string, liveIssues int, mapper *identity.Mapper, reporter *diag.Reporter) {
	configured, ok := mapper.IssueCount(sourceRepo)
	switch {
	case !ok:
		reporter.Errorf("repository %q is not configured in the issue count mapping", sourceRepo)
	case configured != liveIssues:
		reporter.Errorf("repository %q is configured with %d issues but %d were fetched",
			sourceRepo, configured, liveIssues)
	}

	mapped, ok := mapper.Repo(sourceRepo)
	switch {
	case !ok:
		reporter.Errorf("repository %q is not configured in the repository mapping", sourceRepo)
	case mapped != destRepo:
		reporter.Errorf("repository %q maps to %q but the destination repository is %q",
			sourceRepo, mapped, destRepo)
	}
}

// checkEndpoint verifies the internal consistency of one pull request
// side: a pruned fork drops the repository and the commit together, so
// one without the other means the export is in a shape the assembler
// does not expect.
func checkEndpoint(pull models.PullRequest, side string, endpoint models.Endpoint, reporter *diag.Reporter) {
	if (endpoint.Repository == "") != (endpoint.Commit == nil) {
		reporter.Warnf("pull request #%d has an inconsistent %s endpoint: repository %q, commit present: %t",
			pull.ID, side, endpoint.Repository, endpoint.Commit != nil)
	}
	if endpoint.Branch == nil {
		reporter.Warnf("pull request #%d has no %s branch", pull.ID, side)
	}
}

func reportUnknownUsers(nicknames map[string]bool, mapper *identity.Mapper, reporter *diag.Reporter) {
	sorted := make([]string, 0, len(nicknames))
	for nickname := range nicknames {
		sorted = append(sorted, nickname)
	}
	sort.Strings(sorted)

	for _, nickname := range sorted {
		if !mapper.HasUser(nickname) {
			reporter.Warnf("user %q is not configured in the user mapping", nickname)
		}
	}
}
