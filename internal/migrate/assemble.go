package migrate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
	"github.com/jdeniau/bitbucket-issue-migration/internal/rewrite"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// pullTitlePrefix marks migrated pull requests, whether they end up as
// destination pull requests or as plain issues.
const pullTitlePrefix = "[PR] "

// changeDenylist names the tracked fields whose changes are too noisy
// to replay as synthetic comments.
var changeDenylist = map[string]bool{
	"content":             true,
	"title":               true,
	"assignee_account_id": true,
}

// Assembler builds one destination item (body, comments, labels) per
// source issue or pull request.
type Assembler struct {
	source   Source
	mapper   *identity.Mapper
	rewriter *rewrite.Rewriter
	commits  CommitTranslator
	reporter *diag.Reporter

	// bundles holds the attachment bundle of each issue that has
	// attachments, keyed by source issue id.
	bundles map[int]Bundle
}

// NewAssembler wires an assembler for one repository pair. bundles may
// be empty when attachment migration was skipped.
func NewAssembler(source Source, mapper *identity.Mapper, rewriter *rewrite.Rewriter, commits CommitTranslator, reporter *diag.Reporter, bundles map[int]Bundle) *Assembler {
	return &Assembler{
		source:   source,
		mapper:   mapper,
		rewriter: rewriter,
		commits:  commits,
		reporter: reporter,
		bundles:  bundles,
	}
}

// timeString renders a timestamp the way it appears in assembled
// bodies.
func timeString(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// IssueItem assembles the destination issue for one source issue.
func (a *Assembler) IssueItem(ctx context.Context, issue models.Issue) (models.Item, error) {
	attachments, err := a.source.IssueAttachments(ctx, issue.ID)
	if err != nil {
		return models.Item{}, err
	}
	replies, err := a.source.IssueComments(ctx, issue.ID)
	if err != nil {
		return models.Item{}, err
	}
	changes, err := a.source.IssueChanges(ctx, issue.ID)
	if err != nil {
		return models.Item{}, err
	}

	comments := a.replyComments(replies)
	comments = append(comments, a.changeComments(changes)...)
	sortComments(comments)

	labels := a.mapper.LabelsFor(identity.FieldKind, issue.Kind)
	labels = append(labels, a.mapper.LabelsFor(identity.FieldState, issue.State)...)
	labels = append(labels, a.mapper.LabelsFor(identity.FieldPriority, issue.Priority)...)
	if issue.Component != "" {
		labels = append(labels, a.mapper.LabelsFor(identity.FieldComponent, issue.Component)...)
	}

	return models.Item{
		Kind: models.KindIssue,
		Issue: &models.IssueData{
			Title:     issue.Title,
			Body:      a.issueBody(issue, attachments),
			CreatedAt: issue.CreatedOn,
			UpdatedAt: issue.UpdatedOn,
			Assignee:  a.mapper.UserAccount(issue.Assignee),
			Closed:    a.mapper.Closed(issue.State),
			Labels:    dedupeLabels(labels),
		},
		Comments: comments,
	}, nil
}

// PullItem assembles the destination item for one source pull request.
// An open pull request becomes a destination pull request; everything
// else becomes a destination issue carrying the provenance prefix.
func (a *Assembler) PullItem(ctx context.Context, pull models.PullRequest) (models.Item, error) {
	replies, err := a.source.PullComments(ctx, pull.ID)
	if err != nil {
		return models.Item{}, err
	}
	approvals, err := a.source.PullActivity(ctx, pull.ID)
	if err != nil {
		return models.Item{}, err
	}

	comments := a.replyComments(replies)
	comments = append(comments, a.approvalComments(approvals)...)
	sortComments(comments)

	labels := append([]string{"pull request"}, a.mapper.LabelsFor(identity.FieldState, pull.State)...)
	body := a.pullBody(pull)
	closed := a.mapper.Closed(pull.State)

	if closed {
		return models.Item{
			Kind: models.KindIssue,
			Issue: &models.IssueData{
				Title:     pullTitlePrefix + pull.Title,
				Body:      body,
				CreatedAt: pull.CreatedOn,
				UpdatedAt: pull.UpdatedOn,
				Assignee:  a.mapper.UserAccount(pull.Author),
				Closed:    true,
				Labels:    dedupeLabels(labels),
			},
			Comments: comments,
		}, nil
	}

	var assignees []string
	if pull.Author != nil {
		assignees = append(assignees, a.mapper.UserAccount(pull.Author))
	}
	return models.Item{
		Kind: models.KindPull,
		Pull: &models.PullData{
			Title:     pullTitlePrefix + pull.Title,
			Body:      body,
			Assignees: assignees,
			Closed:    false,
			Labels:    dedupeLabels(labels),
			// Branch mapping belongs to the repository conversion; the
			// caller fills these in when it knows better.
			Base: "TODO",
			Head: "TODO",
		},
		Comments: comments,
	}, nil
}

// issueBody renders the header block, the rewritten content, and the
// attachments section of one issue.
func (a *Assembler) issueBody(issue models.Issue, attachments []string) string {
	var sb strings.Builder

	created := timeString(issue.CreatedOn)
	updated := timeString(issue.UpdatedOn)
	fmt.Fprintf(&sb, "> Created by **@%s** on %s\n", a.mapper.UserAccount(issue.Reporter), created)
	if created != updated {
		fmt.Fprintf(&sb, "> Last updated on %s\n", updated)
	}

	sb.WriteString("\n")
	sb.WriteString(a.rewriter.Rewrite(issue.Content))
	sb.WriteString("\n")

	if len(attachments) > 0 {
		sb.WriteString("\n---\n\nAttachments:\n")
		bundle, ok := a.bundles[issue.ID]
		for _, name := range attachments {
			url := ""
			if ok {
				url, _ = bundle.RawURL(name)
			}
			if url == "" {
				a.reporter.Errorf("missing attachment bundle link for %q of issue #%d", name, issue.ID)
				fmt.Fprintf(&sb, "* **`%s`** (missing link)\n", name)
				continue
			}
			fmt.Fprintf(&sb, "* [**`%s`**](%s)\n", name, url)
		}
	}

	return sb.String()
}

// pullBody renders the header block of one pull request: participants,
// source and destination endpoints resolved through the commit
// translator, the merge commit, the source state, and the rewritten
// description.
func (a *Assembler) pullBody(pull models.PullRequest) string {
	var sb strings.Builder

	created := timeString(pull.CreatedOn)
	updated := timeString(pull.UpdatedOn)
	authorPart := ""
	if pull.Author != nil {
		authorPart = fmt.Sprintf("by **@%s** ", a.mapper.UserAccount(pull.Author))
	}
	fmt.Fprintf(&sb, "> **Pull request** :twisted_rightwards_arrows: created %son %s\n", authorPart, created)
	if created != updated {
		fmt.Fprintf(&sb, "> Last updated on %s\n", updated)
	}

	if len(pull.Participants) > 0 {
		sb.WriteString(">\n> Participants:\n>\n")
		for _, participant := range pull.Participants {
			fmt.Fprintf(&sb, "> * **@%s**", a.mapper.UserAccount(participant.User))
			if participant.Role == "REVIEWER" {
				sb.WriteString(" (reviewer)")
			}
			if participant.Approved {
				sb.WriteString(" :heavy_check_mark:")
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString(">\n")
	a.writeEndpoint(&sb, "Source", pull.Source, pull.ID)
	a.writeEndpoint(&sb, "Destination", pull.Destination, pull.ID)
	if pull.Destination.Repository != "" && pull.Destination.Repository != a.source.FullName() {
		a.reporter.Errorf("pull request #%d targets %q instead of %q",
			pull.ID, pull.Destination.Repository, a.source.FullName())
	}

	if pull.MergeCommit != nil {
		repo := a.destRepoFor(a.source.FullName())
		fmt.Fprintf(&sb, "> Merge commit: %s\n", a.commitLink(pull.MergeCommit.Hash, repo, pull.ID))
	}

	sb.WriteString(">\n")
	fmt.Fprintf(&sb, "> State: **`%s`**\n", pull.State)

	sb.WriteString("\n")
	sb.WriteString(a.rewriter.Rewrite(pull.Description))
	sb.WriteString("\n")

	return sb.String()
}

// writeEndpoint renders one side of a pull request. Bitbucket prunes
// the repository and commit of deleted forks; what remains is rendered
// as a plain branch link into the current destination repository.
func (a *Assembler) writeEndpoint(sb *strings.Builder, side string, endpoint models.Endpoint, pullID int) {
	branchName := ""
	if endpoint.Branch != nil {
		branchName = endpoint.Branch.Name
	}

	if endpoint.Repository == "" && endpoint.Commit == nil {
		repo := a.destRepoFor(a.source.FullName())
		branch := a.commits.BranchName(branchName)
		fmt.Fprintf(sb, "> %s: branch [`%s`](https://github.com/%s/tree/%s)\n",
			side, branch, repo, branch)
		return
	}

	repo := a.destRepoFor(endpoint.Repository)
	branch := branchName
	if endpoint.Repository == a.source.FullName() {
		branch = a.commits.BranchName(branchName)
	} else {
		branch = a.commits.BranchNameIn(branchName, endpoint.Repository)
	}

	hashPart := "(no commit)"
	if endpoint.Commit != nil {
		hashPart = a.commitLink(endpoint.Commit.Hash, repo, pullID)
	}
	fmt.Fprintf(sb, "> %s: branch [`%s`](https://github.com/%s/tree/%s), %s\n",
		side, branch, repo, branch, hashPart)
}

// commitLink renders a commit as a markdown link, or as an explicit
// marker when the hash was never converted. The miss is reported but
// not fatal; a human reviewer sees the marker in the migrated body.
func (a *Assembler) commitLink(hgHash, destRepo string, pullID int) string {
	gitHash, ok := a.commits.CommitHash(hgHash)
	if !ok {
		a.reporter.Errorf("could not map mercurial commit %q of pull request #%d to git", hgHash, pullID)
		return fmt.Sprintf("(commit %s not mapped)", hgHash)
	}
	return fmt.Sprintf("[%s](https://github.com/%s/commit/%s)", gitHash, destRepo, gitHash)
}

// destRepoFor resolves a source repository to its destination full
// name, falling back to the source name with a report when the mapping
// is missing.
func (a *Assembler) destRepoFor(sourceRepo string) string {
	mapped, ok := a.mapper.Repo(sourceRepo)
	if !ok {
		a.reporter.WarnOncef("repo:"+sourceRepo,
			"repository %q is not configured in the repository mapping", sourceRepo)
		return sourceRepo
	}
	return mapped
}

// replyComments turns the discussion replies of one item into
// destination comments. Empty and soft-deleted replies are skipped; a
// reply to another comment quotes its parent's rewritten content.
func (a *Assembler) replyComments(replies map[int]models.Comment) []models.CommentData {
	ids := make([]int, 0, len(replies))
	for id := range replies {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var comments []models.CommentData
	for _, id := range ids {
		reply := replies[id]
		if reply.Content == "" || reply.Deleted {
			continue
		}
		comments = append(comments, models.CommentData{
			Body:      a.replyBody(reply, replies),
			CreatedAt: reply.CreatedOn,
		})
	}
	return comments
}

func (a *Assembler) replyBody(reply models.Comment, all map[int]models.Comment) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "> **@%s** commented on %s\n", a.mapper.UserAccount(reply.User), timeString(reply.CreatedOn))

	if reply.Inline != nil {
		switch {
		case reply.Inline.From == 0 && reply.Inline.To == 0:
			fmt.Fprintf(&sb, "> Inline comment on `%s`\n", reply.Inline.Path)
		case reply.Inline.From == 0:
			fmt.Fprintf(&sb, "> Inline comment on line %d of `%s`\n", reply.Inline.To, reply.Inline.Path)
		default:
			fmt.Fprintf(&sb, "> Inline comment on lines %d..%d of `%s`\n",
				reply.Inline.From, reply.Inline.To, reply.Inline.Path)
		}
	}

	sb.WriteString("\n")
	if reply.Parent != 0 {
		if parent, ok := all[reply.Parent]; ok && parent.Content != "" {
			fmt.Fprintf(&sb, "> %s\n\n", a.rewriter.Rewrite(parent.Content))
		}
	}
	sb.WriteString(a.rewriter.Rewrite(reply.Content))

	return sb.String()
}

// changeComments renders one synthetic comment per tracked field
// change. Changes that only touch denylisted fields produce nothing.
func (a *Assembler) changeComments(changes []models.ChangeEvent) []models.CommentData {
	var comments []models.CommentData
	for _, change := range changes {
		body := a.changeBody(change)
		if body == "" {
			continue
		}
		comments = append(comments, models.CommentData{
			Body:      body,
			CreatedAt: change.CreatedOn,
		})
	}
	return comments
}

func (a *Assembler) changeBody(change models.ChangeEvent) string {
	fields := make([]string, 0, len(change.Changes))
	for field := range change.Changes {
		if changeDenylist[field] {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		transition := change.Changes[field]
		fmt.Fprintf(&sb, "> **@%s** changed `%s` from `%s` to `%s` on %s\n",
			a.mapper.UserAccount(change.User),
			field,
			orNone(transition.Old),
			orNone(transition.New),
			timeString(change.CreatedOn))
	}
	return sb.String()
}

// approvalComments renders one synthetic comment per approval event.
func (a *Assembler) approvalComments(approvals []models.ApprovalEvent) []models.CommentData {
	var comments []models.CommentData
	for _, approval := range approvals {
		body := fmt.Sprintf("> **@%s** approved :heavy_check_mark: the pull request on %s",
			a.mapper.UserAccount(approval.User), timeString(approval.Date))
		comments = append(comments, models.CommentData{
			Body:      body,
			CreatedAt: approval.Date,
		})
	}
	return comments
}

// sortComments orders merged comments by creation time. The sort is
// stable: ties keep the enumeration order replies first, then synthetic
// change/approval comments.
func sortComments(comments []models.CommentData) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

func orNone(value string) string {
	if value == "" {
		return "(none)"
	}
	return value
}

// dedupeLabels returns the label set sorted and without duplicates.
func dedupeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
