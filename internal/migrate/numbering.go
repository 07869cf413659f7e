package migrate

import (
	"fmt"
	"sort"

	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// PlannedItem is one source item with its assigned unified number.
type PlannedItem struct {
	Kind     models.ItemKind
	SourceID int
	Unified  int
}

// Plan is the canonical processing order: all issues ascending by
// source id, then all pull requests ascending by source id. The unified
// number of an item is its 1-based position; the destination assigns
// numbers sequentially from 1, so processing order and numbering must
// coincide exactly.
type Plan struct {
	// Offset shifts pull request numbers into the unified track; it
	// equals the number of source issues.
	Offset int

	Items []PlannedItem
}

// BuildPlan computes the unified numbering for a repository's fetched
// issues and pull requests. The configured issue count must equal the
// live count: a silent mismatch would corrupt every pull-request
// cross-reference, so disagreement aborts the run.
func BuildPlan(repo string, issues []models.Issue, pulls []models.PullRequest, mapper *identity.Mapper, reporter *diag.Reporter) (*Plan, error) {
	sortedIssues := make([]models.Issue, len(issues))
	copy(sortedIssues, issues)
	sort.Slice(sortedIssues, func(i, j int) bool { return sortedIssues[i].ID < sortedIssues[j].ID })

	sortedPulls := make([]models.PullRequest, len(pulls))
	copy(sortedPulls, pulls)
	sort.Slice(sortedPulls, func(i, j int) bool { return sortedPulls[i].ID < sortedPulls[j].ID })

	offset := len(sortedIssues)
	configured, ok := mapper.IssueCount(repo)
	if !ok {
		return nil, fmt.Errorf("repository %s has no configured issue count", repo)
	}
	if configured != offset {
		return nil, fmt.Errorf("repository %s is configured with %d issues but %d were fetched",
			repo, configured, offset)
	}

	plan := &Plan{
		Offset: offset,
		Items:  make([]PlannedItem, 0, len(sortedIssues)+len(sortedPulls)),
	}

	for i, issue := range sortedIssues {
		unified := i + 1
		if issue.ID != unified {
			// A gap in the issue track shifts every following unified
			// number away from its source number.
			reporter.Warnf("issue #%d of %s lands at unified number %d", issue.ID, repo, unified)
		}
		plan.Items = append(plan.Items, PlannedItem{
			Kind:     models.KindIssue,
			SourceID: issue.ID,
			Unified:  unified,
		})
	}

	for i, pull := range sortedPulls {
		unified := offset + i + 1
		if pull.ID+offset != unified {
			reporter.Warnf("pull request #%d of %s lands at unified number %d", pull.ID, repo, unified)
		}
		plan.Items = append(plan.Items, PlannedItem{
			Kind:     models.KindPull,
			SourceID: pull.ID,
			Unified:  unified,
		})
	}

	return plan, nil
}
