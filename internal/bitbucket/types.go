package bitbucket

import (
	"time"

	"github.com/jdeniau/bitbucket-issue-migration/pkg/models"
)

// Wire representations of the Bitbucket Cloud API 2.0 payloads. Every
// list endpoint wraps its results in a paginated envelope; the next
// field carries the URL of the following page.
type page[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

type wireAccount struct {
	Nickname string `json:"nickname"`
}

func (a *wireAccount) toModel() *models.Account {
	if a == nil {
		return nil
	}
	return &models.Account{Nickname: a.Nickname}
}

type wireContent struct {
	Raw string `json:"raw"`
}

type wireComponent struct {
	Name string `json:"name"`
}

type wireIssue struct {
	ID        int            `json:"id"`
	Title     string         `json:"title"`
	Content   wireContent    `json:"content"`
	Reporter  *wireAccount   `json:"reporter"`
	Assignee  *wireAccount   `json:"assignee"`
	State     string         `json:"state"`
	Priority  string         `json:"priority"`
	Kind      string         `json:"kind"`
	Component *wireComponent `json:"component"`
	CreatedOn time.Time      `json:"created_on"`
	UpdatedOn time.Time      `json:"updated_on"`
}

func (i wireIssue) toModel() models.Issue {
	issue := models.Issue{
		ID:        i.ID,
		Title:     i.Title,
		Content:   i.Content.Raw,
		Reporter:  i.Reporter.toModel(),
		Assignee:  i.Assignee.toModel(),
		State:     i.State,
		Priority:  i.Priority,
		Kind:      i.Kind,
		CreatedOn: i.CreatedOn,
		UpdatedOn: i.UpdatedOn,
	}
	if i.Component != nil {
		issue.Component = i.Component.Name
	}
	return issue
}

type wireRepository struct {
	FullName string `json:"full_name"`
}

type wireBranch struct {
	Name string `json:"name"`
}

type wireCommit struct {
	Hash string `json:"hash"`
}

type wireEndpoint struct {
	Repository *wireRepository `json:"repository"`
	Branch     *wireBranch     `json:"branch"`
	Commit     *wireCommit     `json:"commit"`
}

func (e wireEndpoint) toModel() models.Endpoint {
	endpoint := models.Endpoint{}
	if e.Repository != nil {
		endpoint.Repository = e.Repository.FullName
	}
	if e.Branch != nil {
		endpoint.Branch = &models.Branch{Name: e.Branch.Name}
	}
	if e.Commit != nil {
		endpoint.Commit = &models.Commit{Hash: e.Commit.Hash}
	}
	return endpoint
}

type wireParticipant struct {
	User     *wireAccount `json:"user"`
	Role     string       `json:"role"`
	Approved bool         `json:"approved"`
}

type wirePull struct {
	ID           int               `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Author       *wireAccount      `json:"author"`
	State        string            `json:"state"`
	CreatedOn    time.Time         `json:"created_on"`
	UpdatedOn    time.Time         `json:"updated_on"`
	Source       wireEndpoint      `json:"source"`
	Destination  wireEndpoint      `json:"destination"`
	MergeCommit  *wireCommit       `json:"merge_commit"`
	Participants []wireParticipant `json:"participants"`
	Reviewers    []wireAccount     `json:"reviewers"`
}

func (p wirePull) toModel() models.PullRequest {
	pull := models.PullRequest{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Author:      p.Author.toModel(),
		State:       p.State,
		CreatedOn:   p.CreatedOn,
		UpdatedOn:   p.UpdatedOn,
		Source:      p.Source.toModel(),
		Destination: p.Destination.toModel(),
	}
	if p.MergeCommit != nil {
		pull.MergeCommit = &models.Commit{Hash: p.MergeCommit.Hash}
	}
	for _, participant := range p.Participants {
		pull.Participants = append(pull.Participants, models.Participant{
			User:     participant.User.toModel(),
			Role:     participant.Role,
			Approved: participant.Approved,
		})
	}
	for _, reviewer := range p.Reviewers {
		pull.Reviewers = append(pull.Reviewers, models.Account{Nickname: reviewer.Nickname})
	}
	return pull
}

type wireCommentParent struct {
	ID int `json:"id"`
}

type wireInline struct {
	Path string `json:"path"`
	From *int   `json:"from"`
	To   *int   `json:"to"`
}

type wireComment struct {
	ID        int                `json:"id"`
	User      *wireAccount       `json:"user"`
	Content   wireContent        `json:"content"`
	Deleted   bool               `json:"deleted"`
	CreatedOn time.Time          `json:"created_on"`
	Parent    *wireCommentParent `json:"parent"`
	Inline    *wireInline        `json:"inline"`
}

func (c wireComment) toModel() models.Comment {
	comment := models.Comment{
		ID:        c.ID,
		User:      c.User.toModel(),
		Content:   c.Content.Raw,
		Deleted:   c.Deleted,
		CreatedOn: c.CreatedOn,
	}
	if c.Parent != nil {
		comment.Parent = c.Parent.ID
	}
	if c.Inline != nil {
		anchor := &models.InlineAnchor{Path: c.Inline.Path}
		if c.Inline.From != nil {
			anchor.From = *c.Inline.From
		}
		if c.Inline.To != nil {
			anchor.To = *c.Inline.To
		}
		comment.Inline = anchor
	}
	return comment
}

type wireFieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type wireChange struct {
	User      *wireAccount               `json:"user"`
	CreatedOn time.Time                  `json:"created_on"`
	Changes   map[string]wireFieldChange `json:"changes"`
}

func (c wireChange) toModel() models.ChangeEvent {
	event := models.ChangeEvent{
		User:      c.User.toModel(),
		CreatedOn: c.CreatedOn,
		Changes:   make(map[string]models.FieldChange, len(c.Changes)),
	}
	for field, change := range c.Changes {
		event.Changes[field] = models.FieldChange{Old: change.Old, New: change.New}
	}
	return event
}

type wireApproval struct {
	User *wireAccount `json:"user"`
	Date time.Time    `json:"date"`
}

// wireActivity is one entry of the pull request activity feed. The feed
// mixes approval, update, and comment entries; only approvals matter
// here, the rest decode to a nil Approval and get skipped.
type wireActivity struct {
	Approval *wireApproval `json:"approval"`
}

type wireAttachment struct {
	Name string `json:"name"`
}
