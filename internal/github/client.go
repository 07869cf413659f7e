// Package github writes migrated issues, pull requests, comments, and
// attachment bundles to the destination GitHub repository.
//
// New issues go through the issue-import endpoint, which is the only
// create path that preserves the original creation timestamps on issues
// and their comments. Updates edit the existing item in place and
// reconcile its comment list; they deliberately never delete anything.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// importAccept is the media type of the preview issue-import endpoint,
// which has no typed binding in go-github.
const importAccept = "application/vnd.github.golden-comet-preview+json"

// Client encapsulates the GitHub API client for one destination
// repository.
type Client struct {
	client   *github.Client
	owner    string
	repo     string
	fullName string
}

// NewClient authenticates against the GitHub API and probes the token
// by fetching the authenticated user. fullName is the destination
// repository (owner/repo).
func NewClient(token, fullName string) (*Client, error) {
	if err := config.ValidateRepository(fullName); err != nil {
		return nil, err
	}
	parts := strings.Split(fullName, "/")

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin(),
		"repository", fullName,
		"token", logging.MaskToken(token))

	return &Client{
		client:   client,
		owner:    parts[0],
		repo:     parts[1],
		fullName: fullName,
	}, nil
}

// FullName returns the destination repository full name.
func (c *Client) FullName() string {
	return c.fullName
}

// Issues returns every issue of the repository keyed by number,
// whatever its state. Pull requests, which the issues API also
// returns, are filtered out.
func (c *Client) Issues(ctx context.Context) (map[int]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	issues := make(map[int]*github.Issue)
	for {
		page, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch github issues: %w", err)
		}
		for _, issue := range page {
			// Skip pull requests (they're also returned by the issues API)
			if issue.PullRequestLinks != nil {
				continue
			}
			issues[issue.GetNumber()] = issue
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return issues, nil
}

// Pulls returns every pull request of the repository keyed by number,
// whatever its state.
func (c *Client) Pulls(ctx context.Context) (map[int]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	pulls := make(map[int]*github.PullRequest)
	for {
		page, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch github pull requests: %w", err)
		}
		for _, pull := range page {
			pulls[pull.GetNumber()] = pull
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return pulls, nil
}

// IssuesCount returns the number of issues on the destination.
func (c *Client) IssuesCount(ctx context.Context) (int, error) {
	issues, err := c.Issues(ctx)
	if err != nil {
		return 0, err
	}
	return len(issues), nil
}

// PullsCount returns the number of pull requests on the destination.
func (c *Client) PullsCount(ctx context.Context) (int, error) {
	pulls, err := c.Pulls(ctx)
	if err != nil {
		return 0, err
	}
	return len(pulls), nil
}

// importIssue is the issue part of an issue-import request.
type importIssue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Closed    bool     `json:"closed"`
	Labels    []string `json:"labels,omitempty"`
}

// importComment is one comment of an issue-import request.
type importComment struct {
	Body      string `json:"body"`
	CreatedAt string `json:"created_at,omitempty"`
}

// importRequest is the issue-import request payload.
type importRequest struct {
	Issue    importIssue     `json:"issue"`
	Comments []importComment `json:"comments,omitempty"`
}

func importTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// CreateIssueWithComments creates a destination issue and its comments
// through the issue-import endpoint, preserving the source creation
// timestamps.
func (c *Client) CreateIssueWithComments(ctx context.Context, data *models.IssueData, comments []models.CommentData) error {
	payload := importRequest{
		Issue: importIssue{
			Title:     data.Title,
			Body:      data.Body,
			CreatedAt: importTime(data.CreatedAt),
			UpdatedAt: importTime(data.UpdatedAt),
			Assignee:  data.Assignee,
			Closed:    data.Closed,
			Labels:    data.Labels,
		},
	}
	for _, comment := range comments {
		payload.Comments = append(payload.Comments, importComment{
			Body:      comment.Body,
			CreatedAt: importTime(comment.CreatedAt),
		})
	}

	url := fmt.Sprintf("repos/%s/%s/import/issues", c.owner, c.repo)
	req, err := c.client.NewRequest("POST", url, payload)
	if err != nil {
		return fmt.Errorf("failed to build issue import request: %w", err)
	}
	req.Header.Set("Accept", importAccept)

	if _, err := c.client.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("failed to import issue %q: %w", data.Title, err)
	}
	return nil
}

// UpdateIssueWithComments edits an already-migrated issue in place and
// reconciles its comment list against the freshly assembled one.
func (c *Client) UpdateIssueWithComments(ctx context.Context, existing *github.Issue, data *models.IssueData, comments []models.CommentData) error {
	number := existing.GetNumber()

	state := "open"
	if data.Closed {
		state = "closed"
	}
	request := &github.IssueRequest{
		Title:  github.String(data.Title),
		Body:   github.String(data.Body),
		Labels: &data.Labels,
		State:  github.String(state),
	}
	if data.Assignee != "" {
		request.Assignee = github.String(data.Assignee)
	}

	if _, _, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, request); err != nil {
		return fmt.Errorf("failed to update issue #%d: %w", number, err)
	}

	return c.reconcileComments(ctx, number, comments)
}

// CreatePullWithComments creates a destination pull request, applies
// its labels, and posts its comments. The pull request API cannot
// backdate anything, so timestamps are not preserved on this path.
func (c *Client) CreatePullWithComments(ctx context.Context, data *models.PullData, comments []models.CommentData) error {
	pull, _, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.String(data.Title),
		Body:  github.String(data.Body),
		Base:  github.String(data.Base),
		Head:  github.String(data.Head),
	})
	if err != nil {
		return fmt.Errorf("failed to create pull request %q: %w", data.Title, err)
	}

	number := pull.GetNumber()
	request := &github.IssueRequest{
		Labels: &data.Labels,
	}
	if len(data.Assignees) > 0 {
		request.Assignees = &data.Assignees
	}
	if _, _, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, request); err != nil {
		return fmt.Errorf("failed to label pull request #%d: %w", number, err)
	}

	for _, comment := range comments {
		_, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
			Body: github.String(comment.Body),
		})
		if err != nil {
			return fmt.Errorf("failed to comment on pull request #%d: %w", number, err)
		}
	}
	return nil
}

// UpdatePullWithComments edits an already-migrated pull request in
// place and reconciles its comment list.
func (c *Client) UpdatePullWithComments(ctx context.Context, existing *github.PullRequest, data *models.PullData, comments []models.CommentData) error {
	number := existing.GetNumber()

	state := "open"
	if data.Closed {
		state = "closed"
	}
	_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Title: github.String(data.Title),
		Body:  github.String(data.Body),
		State: github.String(state),
	})
	if err != nil {
		return fmt.Errorf("failed to update pull request #%d: %w", number, err)
	}

	if _, _, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{
		Labels: &data.Labels,
	}); err != nil {
		return fmt.Errorf("failed to relabel pull request #%d: %w", number, err)
	}

	return c.reconcileComments(ctx, number, comments)
}

// reconcileComments drifts the destination comment list toward the
// assembled one: existing comments are edited in order where their
// bodies differ, missing tail comments are created, and surplus
// destination comments are reported but kept.
func (c *Client) reconcileComments(ctx context.Context, number int, comments []models.CommentData) error {
	existing, err := c.listComments(ctx, number)
	if err != nil {
		return err
	}

	for i, comment := range comments {
		if i < len(existing) {
			if existing[i].GetBody() == comment.Body {
				continue
			}
			_, _, err := c.client.Issues.EditComment(ctx, c.owner, c.repo, existing[i].GetID(), &github.IssueComment{
				Body: github.String(comment.Body),
			})
			if err != nil {
				return fmt.Errorf("failed to edit comment %d of #%d: %w", existing[i].GetID(), number, err)
			}
			continue
		}
		_, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
			Body: github.String(comment.Body),
		})
		if err != nil {
			return fmt.Errorf("failed to comment on #%d: %w", number, err)
		}
	}

	if len(existing) > len(comments) {
		logging.Warn("destination has more comments than the source",
			"number", number,
			"destination_comments", len(existing),
			"source_comments", len(comments))
	}
	return nil
}

func (c *Client) listComments(ctx context.Context, number int) ([]*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{
		Sort:      github.String("created"),
		Direction: github.String("asc"),
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var all []*github.IssueComment
	for {
		page, resp, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of #%d: %w", number, err)
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// RemainingRateLimit returns the remaining core API quota, or -1 when
// the lookup itself fails. Observability only; the migration never
// pauses on it.
func (c *Client) RemainingRateLimit(ctx context.Context) int {
	limits, _, err := c.client.RateLimits(ctx)
	if err != nil {
		return -1
	}
	return limits.GetCore().Remaining
}
