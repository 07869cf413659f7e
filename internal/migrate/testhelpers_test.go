package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v41/github"

	"github.com/jdeniau/bitbucket-issue-migration/internal/config"
	"github.com/jdeniau/bitbucket-issue-migration/internal/diag"
	gh "github.com/jdeniau/bitbucket-issue-migration/internal/github"
	"github.com/jdeniau/bitbucket-issue-migration/internal/identity"
	"github.com/jdeniau/bitbucket-issue-migration/internal/rewrite"
	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

func testMapping(issueCount int) config.Mapping {
	return config.Mapping{
		Users: map[string]string{
			"alice": "abot",
			"bob":   "bbot",
		},
		Repositories: map[string]string{
			"workspace/silver": "org/silver",
		},
		IssueCounts: map[string]int{
			"workspace/silver": issueCount,
		},
		StateLabels: map[string]string{
			"new":      "",
			"open":     "",
			"resolved": "",
			"wontfix":  "wontfix",
			"OPEN":     "",
			"MERGED":   "",
			"DECLINED": "declined",
			"bug":      "bug",
		},
		PriorityLabels: map[string]string{
			"major":   "",
			"blocker": "critical",
		},
		KindLabels: map[string]string{
			"bug":         "bug",
			"enhancement": "enhancement",
		},
		ComponentLabels: map[string]string{
			"parser": "component: parser",
		},
		OpenStates:   []string{"new", "open", "OPEN"},
		IgnorePrefix: "ignore_",
	}
}

type fixture struct {
	mapper   *identity.Mapper
	rewriter *rewrite.Rewriter
	reporter *diag.Reporter
}

func newFixture(issueCount int) fixture {
	reporter := diag.NewReporter()
	mapper := identity.NewMapper(testMapping(issueCount), reporter)
	rewriter := rewrite.NewRewriter(mapper, "workspace/silver", "org/silver")
	return fixture{mapper: mapper, rewriter: rewriter, reporter: reporter}
}

// fakeSource serves canned source data. Absent map entries mean "no
// comments/changes/attachments", never an error.
type fakeSource struct {
	fullName      string
	issues        []models.Issue
	pulls         []models.PullRequest
	attachments   map[int][]string
	contents      map[string][]byte
	issueComments map[int]map[int]models.Comment
	issueChanges  map[int][]models.ChangeEvent
	pullComments  map[int]map[int]models.Comment
	pullActivity  map[int][]models.ApprovalEvent
}

func (s *fakeSource) FullName() string {
	if s.fullName == "" {
		return "workspace/silver"
	}
	return s.fullName
}

func (s *fakeSource) Issues(ctx context.Context) ([]models.Issue, error) {
	return s.issues, nil
}

func (s *fakeSource) Pulls(ctx context.Context) ([]models.PullRequest, error) {
	return s.pulls, nil
}

func (s *fakeSource) Pull(ctx context.Context, id int) (models.PullRequest, error) {
	for _, pull := range s.pulls {
		if pull.ID == id {
			return pull, nil
		}
	}
	return models.PullRequest{}, fmt.Errorf("no pull request #%d", id)
}

func (s *fakeSource) IssueAttachments(ctx context.Context, id int) ([]string, error) {
	return s.attachments[id], nil
}

func (s *fakeSource) IssueAttachmentContent(ctx context.Context, id int, name string) ([]byte, error) {
	return s.contents[fmt.Sprintf("%d/%s", id, name)], nil
}

func (s *fakeSource) IssueComments(ctx context.Context, id int) (map[int]models.Comment, error) {
	return s.issueComments[id], nil
}

func (s *fakeSource) IssueChanges(ctx context.Context, id int) ([]models.ChangeEvent, error) {
	return s.issueChanges[id], nil
}

func (s *fakeSource) PullComments(ctx context.Context, id int) (map[int]models.Comment, error) {
	return s.pullComments[id], nil
}

func (s *fakeSource) PullActivity(ctx context.Context, id int) ([]models.ApprovalEvent, error) {
	return s.pullActivity[id], nil
}

// fakeDest mimics the destination's sequential numbering: creates land
// at the next free number, updates leave numbering alone.
type fakeDest struct {
	fullName string
	issues   map[int]*github.Issue
	pulls    map[int]*github.PullRequest

	createdIssues []string
	updatedIssues []int
	createdPulls  []string
	updatedPulls  []int
	bundles       map[string][]models.Attachment
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		issues:  make(map[int]*github.Issue),
		pulls:   make(map[int]*github.PullRequest),
		bundles: make(map[string][]models.Attachment),
	}
}

func (d *fakeDest) FullName() string {
	if d.fullName == "" {
		return "org/silver"
	}
	return d.fullName
}

func (d *fakeDest) Issues(ctx context.Context) (map[int]*github.Issue, error) {
	snapshot := make(map[int]*github.Issue, len(d.issues))
	for number, issue := range d.issues {
		snapshot[number] = issue
	}
	return snapshot, nil
}

func (d *fakeDest) Pulls(ctx context.Context) (map[int]*github.PullRequest, error) {
	snapshot := make(map[int]*github.PullRequest, len(d.pulls))
	for number, pull := range d.pulls {
		snapshot[number] = pull
	}
	return snapshot, nil
}

func (d *fakeDest) IssuesCount(ctx context.Context) (int, error) {
	return len(d.issues), nil
}

func (d *fakeDest) PullsCount(ctx context.Context) (int, error) {
	return len(d.pulls), nil
}

func (d *fakeDest) nextNumber() int {
	return len(d.issues) + len(d.pulls) + 1
}

func (d *fakeDest) CreateIssueWithComments(ctx context.Context, data *models.IssueData, comments []models.CommentData) error {
	number := d.nextNumber()
	d.issues[number] = &github.Issue{Number: github.Int(number)}
	d.createdIssues = append(d.createdIssues, data.Title)
	return nil
}

func (d *fakeDest) UpdateIssueWithComments(ctx context.Context, existing *github.Issue, data *models.IssueData, comments []models.CommentData) error {
	d.updatedIssues = append(d.updatedIssues, existing.GetNumber())
	return nil
}

func (d *fakeDest) CreatePullWithComments(ctx context.Context, data *models.PullData, comments []models.CommentData) error {
	number := d.nextNumber()
	d.pulls[number] = &github.PullRequest{Number: github.Int(number)}
	d.createdPulls = append(d.createdPulls, data.Title)
	return nil
}

func (d *fakeDest) UpdatePullWithComments(ctx context.Context, existing *github.PullRequest, data *models.PullData, comments []models.CommentData) error {
	d.updatedPulls = append(d.updatedPulls, existing.GetNumber())
	return nil
}

func (d *fakeDest) GetOrCreateAttachmentBundle(ctx context.Context, description string, files []models.Attachment) (*gh.Bundle, error) {
	if _, ok := d.bundles[description]; !ok {
		d.bundles[description] = files
	}
	rawURLs := make(map[string]string, len(files))
	for _, file := range d.bundles[description] {
		rawURLs[file.Name] = "https://gist.example/" + file.Name
	}
	return gh.NewBundle(rawURLs), nil
}

func (d *fakeDest) RemainingRateLimit(ctx context.Context) int {
	return 5000
}

// fakeTranslator resolves hashes from a fixed table and mimics the
// default-to-master branch rule.
type fakeTranslator struct {
	hashes map[string]string
}

func (t *fakeTranslator) CommitHash(hgHash string) (string, bool) {
	gitHash, ok := t.hashes[hgHash]
	return gitHash, ok
}

func (t *fakeTranslator) BranchName(branch string) string {
	if branch == "default" {
		return "master"
	}
	return branch
}

func (t *fakeTranslator) BranchNameIn(branch, repo string) string {
	short := repo
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		short = repo[idx+1:]
	}
	return short + "/" + t.BranchName(branch)
}
