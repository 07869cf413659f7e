// Package bitbucket fetches issues, pull requests, comments, changes,
// and attachments from the Bitbucket Cloud API 2.0. It is the read-only
// source side of the migration; payloads convert to pkg/models structs
// at the boundary and are never mutated afterwards.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

const (
	apiBase = "https://api.bitbucket.org/2.0"

	// pageLen is the page size requested from every list endpoint.
	pageLen = 100
)

// Client reads one Bitbucket repository. Requests run sequentially;
// transient failures (network errors, 429, 5xx) are retried with
// exponential backoff, everything else is permanent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	fullName   string
}

// NewClient builds a client for the repository with the given full name
// (workspace/slug).
func NewClient(fullName string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    apiBase,
		fullName:   fullName,
	}
}

// FullName returns the full name of the repository being read.
func (c *Client) FullName() string {
	return c.fullName
}

// Issues returns every issue of the repository in ascending id order.
func (c *Client) Issues(ctx context.Context) ([]models.Issue, error) {
	wire, err := fetchAll[wireIssue](ctx, c, c.repoURL("issues", "sort=id"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues of %s: %w", c.fullName, err)
	}

	issues := make([]models.Issue, len(wire))
	for i, w := range wire {
		issues[i] = w.toModel()
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues, nil
}

// Pulls returns every pull request of the repository, whatever its
// state, in ascending id order.
func (c *Client) Pulls(ctx context.Context) ([]models.PullRequest, error) {
	query := "state=OPEN&state=MERGED&state=DECLINED&state=SUPERSEDED&sort=id"
	wire, err := fetchAll[wirePull](ctx, c, c.repoURL("pullrequests", query))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull requests of %s: %w", c.fullName, err)
	}

	pulls := make([]models.PullRequest, len(wire))
	for i, w := range wire {
		pulls[i] = w.toModel()
	}
	sort.Slice(pulls, func(i, j int) bool { return pulls[i].ID < pulls[j].ID })
	return pulls, nil
}

// Pull returns a single pull request by id.
func (c *Client) Pull(ctx context.Context, id int) (models.PullRequest, error) {
	var wire wirePull
	url := fmt.Sprintf("%s/repositories/%s/pullrequests/%d", c.baseURL, c.fullName, id)
	if err := c.getJSON(ctx, url, &wire); err != nil {
		return models.PullRequest{}, fmt.Errorf("failed to fetch pull request #%d of %s: %w", id, c.fullName, err)
	}
	return wire.toModel(), nil
}

// IssueAttachments returns the attachment filenames of an issue, in the
// order the API reports them. An issue without attachments yields an
// empty slice.
func (c *Client) IssueAttachments(ctx context.Context, id int) ([]string, error) {
	path := fmt.Sprintf("issues/%d/attachments", id)
	wire, err := fetchAll[wireAttachment](ctx, c, c.repoURL(path, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachments of issue #%d: %w", id, err)
	}

	names := make([]string, len(wire))
	for i, w := range wire {
		names[i] = w.Name
	}
	return names, nil
}

// IssueAttachmentContent downloads one attachment of an issue.
func (c *Client) IssueAttachmentContent(ctx context.Context, id int, name string) ([]byte, error) {
	attachmentURL := fmt.Sprintf("%s/repositories/%s/issues/%d/attachments/%s",
		c.baseURL, c.fullName, id, url.PathEscape(name))
	content, err := c.getBytes(ctx, attachmentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment %q of issue #%d: %w", name, id, err)
	}
	return content, nil
}

// IssueComments returns the comments of an issue keyed by comment id,
// so reply parents can be looked up during assembly.
func (c *Client) IssueComments(ctx context.Context, id int) (map[int]models.Comment, error) {
	path := fmt.Sprintf("issues/%d/comments", id)
	return c.comments(ctx, path, fmt.Sprintf("issue #%d", id))
}

// IssueChanges returns the tracked field changes of an issue in the
// order they happened.
func (c *Client) IssueChanges(ctx context.Context, id int) ([]models.ChangeEvent, error) {
	path := fmt.Sprintf("issues/%d/changes", id)
	wire, err := fetchAll[wireChange](ctx, c, c.repoURL(path, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changes of issue #%d: %w", id, err)
	}

	changes := make([]models.ChangeEvent, len(wire))
	for i, w := range wire {
		changes[i] = w.toModel()
	}
	return changes, nil
}

// PullComments returns the comments of a pull request keyed by comment
// id.
func (c *Client) PullComments(ctx context.Context, id int) (map[int]models.Comment, error) {
	path := fmt.Sprintf("pullrequests/%d/comments", id)
	return c.comments(ctx, path, fmt.Sprintf("pull request #%d", id))
}

// PullActivity returns the approval events of a pull request. Update
// and comment entries of the activity feed are skipped.
func (c *Client) PullActivity(ctx context.Context, id int) ([]models.ApprovalEvent, error) {
	path := fmt.Sprintf("pullrequests/%d/activity", id)
	wire, err := fetchAll[wireActivity](ctx, c, c.repoURL(path, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity of pull request #%d: %w", id, err)
	}

	var approvals []models.ApprovalEvent
	for _, w := range wire {
		if w.Approval == nil {
			continue
		}
		approvals = append(approvals, models.ApprovalEvent{
			User: w.Approval.User.toModel(),
			Date: w.Approval.Date,
		})
	}
	return approvals, nil
}

func (c *Client) comments(ctx context.Context, path, what string) (map[int]models.Comment, error) {
	wire, err := fetchAll[wireComment](ctx, c, c.repoURL(path, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments of %s: %w", what, err)
	}

	comments := make(map[int]models.Comment, len(wire))
	for _, w := range wire {
		comments[w.ID] = w.toModel()
	}
	return comments, nil
}

func (c *Client) repoURL(path, query string) string {
	u := fmt.Sprintf("%s/repositories/%s/%s?pagelen=%d", c.baseURL, c.fullName, path, pageLen)
	if query != "" {
		u += "&" + query
	}
	return u
}

// fetchAll walks a paginated list endpoint until the last page.
func fetchAll[T any](ctx context.Context, c *Client, url string) ([]T, error) {
	var all []T
	for url != "" {
		var p page[T]
		if err := c.getJSON(ctx, url, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Values...)
		url = p.Next
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.getBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are worth another attempt.
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			logging.Warn("retrying bitbucket request",
				"url", url,
				"status_code", resp.StatusCode)
			return fmt.Errorf("bitbucket returned status %d for %s", resp.StatusCode, url)
		default:
			return backoff.Permanent(fmt.Errorf("bitbucket returned status %d for %s: %s",
				resp.StatusCode, url, data))
		}
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(2*time.Minute),
	), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
