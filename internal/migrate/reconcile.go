package migrate

import (
	"context"
	"fmt"

	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/internal/rewrite"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// Options tune one migration run.
type Options struct {
	// SkipAttachments disables the attachment bundle phase. Bodies then
	// render explicit missing-link markers for every attachment.
	SkipAttachments bool
}

// Runner drives the end-to-end migration pass for one repository pair.
type Runner struct {
	source   Source
	dest     Destination
	mapper   *identity.Mapper
	rewriter *rewrite.Rewriter
	commits  CommitTranslator
	reporter *diag.Reporter
	opts     Options
}

// NewRunner wires a runner from its collaborators.
func NewRunner(source Source, dest Destination, mapper *identity.Mapper, rewriter *rewrite.Rewriter, commits CommitTranslator, reporter *diag.Reporter, opts Options) *Runner {
	return &Runner{
		source:   source,
		dest:     dest,
		mapper:   mapper,
		rewriter: rewriter,
		commits:  commits,
		reporter: reporter,
		opts:     opts,
	}
}

// assembled pairs a planned item with its assembled destination
// content.
type assembled struct {
	planned PlannedItem
	item    models.Item
}

// Run executes one full migration pass: plan the unified numbering,
// migrate attachments, assemble every item, then create or update each
// unified number against the destination snapshot. Re-running against
// an already-populated destination updates content in place; numbers
// are never reassigned.
func (r *Runner) Run(ctx context.Context) error {
	issues, err := r.source.Issues(ctx)
	if err != nil {
		return err
	}
	pulls, err := r.source.Pulls(ctx)
	if err != nil {
		return err
	}

	plan, err := BuildPlan(r.source.FullName(), issues, pulls, r.mapper, r.reporter)
	if err != nil {
		return err
	}
	logging.Info("planned migration",
		"repository", r.source.FullName(),
		"issues", len(issues),
		"pulls", len(pulls),
		"offset", plan.Offset)

	bundles, err := r.migrateAttachments(ctx, issues)
	if err != nil {
		return err
	}

	assembler := NewAssembler(r.source, r.mapper, r.rewriter, r.commits, r.reporter, bundles)

	issuesByID := make(map[int]models.Issue, len(issues))
	for _, issue := range issues {
		issuesByID[issue.ID] = issue
	}
	pullsByID := make(map[int]models.PullRequest, len(pulls))
	for _, pull := range pulls {
		pullsByID[pull.ID] = pull
	}

	items := make([]assembled, 0, len(plan.Items))
	for _, planned := range plan.Items {
		logging.Info("assembling item",
			"unified_number", planned.Unified,
			"source_track", planned.Kind.String(),
			"source_id", planned.SourceID)

		var item models.Item
		switch planned.Kind {
		case models.KindIssue:
			item, err = assembler.IssueItem(ctx, issuesByID[planned.SourceID])
		case models.KindPull:
			item, err = assembler.PullItem(ctx, pullsByID[planned.SourceID])
		}
		if err != nil {
			return err
		}
		items = append(items, assembled{planned: planned, item: item})
	}

	if err := r.upload(ctx, items); err != nil {
		return err
	}

	r.checkCounts(ctx, len(issues)+len(pulls))
	r.reporter.LogSummary()
	return nil
}

// upload reconciles every assembled item against the destination
// snapshot taken once up front. Terminal states per item: created,
// updated, or skipped for an unknown kind.
func (r *Runner) upload(ctx context.Context, items []assembled) error {
	existingIssues, err := r.dest.Issues(ctx)
	if err != nil {
		return err
	}
	existingPulls, err := r.dest.Pulls(ctx)
	if err != nil {
		return err
	}

	created, updated, skipped := 0, 0, 0
	for _, entry := range items {
		number := entry.planned.Unified
		logging.Info("uploading item",
			"unified_number", number,
			"kind", entry.item.Kind.String(),
			"rate_limit", r.dest.RemainingRateLimit(ctx))

		switch entry.item.Kind {
		case models.KindIssue:
			if existing, ok := existingIssues[number]; ok {
				if err := r.dest.UpdateIssueWithComments(ctx, existing, entry.item.Issue, entry.item.Comments); err != nil {
					return err
				}
				updated++
				continue
			}
			if err := r.dest.CreateIssueWithComments(ctx, entry.item.Issue, entry.item.Comments); err != nil {
				return err
			}
			created++
		case models.KindPull:
			if existing, ok := existingPulls[number]; ok {
				if err := r.dest.UpdatePullWithComments(ctx, existing, entry.item.Pull, entry.item.Comments); err != nil {
					return err
				}
				updated++
				continue
			}
			if err := r.dest.CreatePullWithComments(ctx, entry.item.Pull, entry.item.Comments); err != nil {
				return err
			}
			created++
		default:
			r.reporter.Errorf("unknown item kind for unified number %d", number)
			skipped++
		}
	}

	logging.Info("upload finished",
		"created", created,
		"updated", updated,
		"skipped", skipped)
	return nil
}

// migrateAttachments creates one attachment bundle per issue that has
// attachments. Bundles are looked up by their deterministic description
// on re-runs, so nothing is duplicated.
func (r *Runner) migrateAttachments(ctx context.Context, issues []models.Issue) (map[int]Bundle, error) {
	bundles := make(map[int]Bundle)
	if r.opts.SkipAttachments {
		logging.Warn("attachment migration skipped by configuration")
		return bundles, nil
	}

	for _, issue := range issues {
		names, err := r.source.IssueAttachments(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			continue
		}

		logging.Info("migrating attachments",
			"issue", issue.ID,
			"attachments", len(names),
			"rate_limit", r.dest.RemainingRateLimit(ctx))

		files := make([]models.Attachment, 0, len(names))
		for _, name := range names {
			content, err := r.source.IssueAttachmentContent(ctx, issue.ID, name)
			if err != nil {
				return nil, err
			}
			files = append(files, models.Attachment{Name: name, Content: content})
		}

		bundle, err := r.dest.GetOrCreateAttachmentBundle(ctx, bundleDescription(issue.ID, r.source.FullName()), files)
		if err != nil {
			return nil, err
		}
		bundles[issue.ID] = bundle
	}
	return bundles, nil
}

// bundleDescription is the stable lookup key of an issue's attachment
// bundle.
func bundleDescription(issueID int, sourceRepo string) string {
	return fmt.Sprintf("Attachments for issue #%d of bitbucket repo %s", issueID, sourceRepo)
}

// checkCounts verifies the post-condition that the destination holds
// exactly as many items as the source. Drift is reported, not fatal: a
// re-run may self-correct it, and an aborted run would hide the rest of
// the report.
func (r *Runner) checkCounts(ctx context.Context, sourceTotal int) {
	issuesCount, err := r.dest.IssuesCount(ctx)
	if err != nil {
		r.reporter.Errorf("could not count destination issues: %v", err)
		return
	}
	pullsCount, err := r.dest.PullsCount(ctx)
	if err != nil {
		r.reporter.Errorf("could not count destination pull requests: %v", err)
		return
	}
	if issuesCount+pullsCount != sourceTotal {
		r.reporter.Errorf("destination has %d items but the source has %d",
			issuesCount+pullsCount, sourceTotal)
	}
}

// RunDev assembles and uploads a single pull request, the development
// selector. The pull request must still be open; a closed one resolves
// to a destination issue and is out of scope for this path.
func (r *Runner) RunDev(ctx context.Context, pullID int) error {
	pull, err := r.source.Pull(ctx, pullID)
	if err != nil {
		return err
	}

	offset, ok := r.mapper.IssueCount(r.source.FullName())
	if !ok {
		return fmt.Errorf("repository %s has no configured issue count", r.source.FullName())
	}
	unified := pullID + offset

	assembler := NewAssembler(r.source, r.mapper, r.rewriter, r.commits, r.reporter, map[int]Bundle{})
	item, err := assembler.PullItem(ctx, pull)
	if err != nil {
		return err
	}
	if item.Kind != models.KindPull {
		return fmt.Errorf("pull request #%d resolves to a destination issue; the dev selector only handles open pull requests", pullID)
	}

	existingPulls, err := r.dest.Pulls(ctx)
	if err != nil {
		return err
	}

	if existing, ok := existingPulls[unified]; ok {
		logging.Info("updating pull request", "unified_number", unified)
		return r.dest.UpdatePullWithComments(ctx, existing, item.Pull, item.Comments)
	}
	logging.Info("creating pull request", "unified_number", unified)
	return r.dest.CreatePullWithComments(ctx, item.Pull, item.Comments)
}
