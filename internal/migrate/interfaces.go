// Package migrate is the discussion-migration engine: it computes the
// unified destination numbering, assembles destination items from
// source issues and pull requests, and reconciles them against the
// current destination state so the whole pass is safely re-runnable.
package migrate

import (
	"context"

	"github.com/google/go-github/v41/github"

	gh "github.com/jdeniau/bitbucket-issue-migration/internal/github"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// Source is the contract of the source-repository data provider. All
// payloads are immutable once returned.
type Source interface {
	FullName() string
	Issues(ctx context.Context) ([]models.Issue, error)
	Pulls(ctx context.Context) ([]models.PullRequest, error)
	Pull(ctx context.Context, id int) (models.PullRequest, error)
	IssueAttachments(ctx context.Context, id int) ([]string, error)
	IssueAttachmentContent(ctx context.Context, id int, name string) ([]byte, error)
	IssueComments(ctx context.Context, id int) (map[int]models.Comment, error)
	IssueChanges(ctx context.Context, id int) ([]models.ChangeEvent, error)
	PullComments(ctx context.Context, id int) (map[int]models.Comment, error)
	PullActivity(ctx context.Context, id int) ([]models.ApprovalEvent, error)
}

// Destination is the contract of the destination-repository write
// client. Transport and auth failures propagate unmodified.
type Destination interface {
	FullName() string
	Issues(ctx context.Context) (map[int]*github.Issue, error)
	Pulls(ctx context.Context) (map[int]*github.PullRequest, error)
	IssuesCount(ctx context.Context) (int, error)
	PullsCount(ctx context.Context) (int, error)
	CreateIssueWithComments(ctx context.Context, data *models.IssueData, comments []models.CommentData) error
	UpdateIssueWithComments(ctx context.Context, existing *github.Issue, data *models.IssueData, comments []models.CommentData) error
	CreatePullWithComments(ctx context.Context, data *models.PullData, comments []models.CommentData) error
	UpdatePullWithComments(ctx context.Context, existing *github.PullRequest, data *models.PullData, comments []models.CommentData) error
	GetOrCreateAttachmentBundle(ctx context.Context, description string, files []models.Attachment) (*gh.Bundle, error)
	RemainingRateLimit(ctx context.Context) int
}

// Bundle is the lookup side of an attachment bundle.
type Bundle interface {
	RawURL(filename string) (string, bool)
}

// CommitTranslator maps mercurial hashes and branch names to their git
// equivalents.
type CommitTranslator interface {
	CommitHash(hgHash string) (string, bool)
	BranchName(branch string) string
	BranchNameIn(branch, repo string) string
}
