package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v41/github"

	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// bundleReadme is the filename of the description file added to every
// attachment bundle. The leading characters sort it first in the gist.
const bundleReadme = "# README.md"

// Bundle is one externally hosted attachment collection, backed by a
// gist. It is created once per source issue and only looked up
// afterwards; files map to their directly addressable raw URLs.
type Bundle struct {
	rawURLs map[string]string
}

// NewBundle builds a bundle from a filename to raw URL mapping.
func NewBundle(rawURLs map[string]string) *Bundle {
	return &Bundle{rawURLs: rawURLs}
}

// RawURL returns the directly addressable URL of one file in the
// bundle. The second result is false when the bundle has no file with
// that name.
func (b *Bundle) RawURL(filename string) (string, bool) {
	url, ok := b.rawURLs[filename]
	return url, ok
}

// GetOrCreateAttachmentBundle finds the authenticated user's gist with
// exactly the given description, creating it when absent. The files of
// an existing bundle are never touched; re-runs reuse what the first
// run uploaded.
func (c *Client) GetOrCreateAttachmentBundle(ctx context.Context, description string, files []models.Attachment) (*Bundle, error) {
	existing, err := c.findGistByDescription(ctx, description)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logging.Debug("reusing existing attachment bundle", "description", description)
		return bundleFromGist(existing), nil
	}

	gistFiles := map[github.GistFilename]github.GistFile{
		bundleReadme: {Content: github.String(description)},
	}
	for _, file := range files {
		gistFiles[github.GistFilename(file.Name)] = github.GistFile{
			Content: github.String(string(file.Content)),
		}
	}

	gist, _, err := c.client.Gists.Create(ctx, &github.Gist{
		Description: github.String(description),
		Public:      github.Bool(false),
		Files:       gistFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment bundle %q: %w", description, err)
	}
	return bundleFromGist(gist), nil
}

func bundleFromGist(gist *github.Gist) *Bundle {
	rawURLs := make(map[string]string, len(gist.Files))
	for name, file := range gist.Files {
		rawURLs[string(name)] = file.GetRawURL()
	}
	return &Bundle{rawURLs: rawURLs}
}

func (c *Client) findGistByDescription(ctx context.Context, description string) (*github.Gist, error) {
	opts := &github.GistListOptions{
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		page, resp, err := c.client.Gists.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list gists: %w", err)
		}
		for _, gist := range page {
			if gist.GetDescription() == description {
				return gist, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil, nil
}
