// Package models defines the data structures shared across the migration.
//
// The source-side types (Issue, PullRequest, Comment, ChangeEvent,
// ApprovalEvent) mirror what the Bitbucket API returns and are immutable
// once fetched. The destination-side types (IssueData, PullData,
// CommentData, Item) describe what gets written to GitHub.
package models

import (
	"time"
)

// Account identifies a user on the source platform. A nil *Account means
// the user is gone (deleted account, anonymized author).
type Account struct {
	// Nickname is the Bitbucket nickname, the key into the user mapping
	Nickname string
}

// Attachment is one file attached to a source issue.
type Attachment struct {
	// Name is the filename as shown on the source issue
	Name string

	// Content is the raw file content
	Content []byte
}

// Issue is a source-platform issue. Issues are numbered in their own
// track, independently from pull requests.
type Issue struct {
	// ID is the issue number within the source issue track
	ID int

	// Title is the issue title
	Title string

	// Content is the raw free-text body
	Content string

	// Reporter is the user who opened the issue, nil when unknown
	Reporter *Account

	// Assignee is the assigned user, nil when unassigned
	Assignee *Account

	// State is the source state value (new, open, resolved, ...)
	State string

	// Priority is the source priority value (trivial, major, ...)
	Priority string

	// Kind is the source kind value (bug, enhancement, ...)
	Kind string

	// Component is the source component name, empty when none is set
	Component string

	// CreatedOn is when the issue was opened
	CreatedOn time.Time

	// UpdatedOn is when the issue was last touched
	UpdatedOn time.Time
}

// Branch names a branch on the source platform.
type Branch struct {
	Name string
}

// Commit references a source (mercurial) commit by hash.
type Commit struct {
	Hash string
}

// Endpoint is one side of a pull request. Branch and Commit are pointers
// because Bitbucket omits them for deleted forks and pruned branches;
// Repository is empty in the same situation.
type Endpoint struct {
	// Repository is the full name (workspace/slug) of the repository this
	// side of the pull request lives in, empty when the fork is gone
	Repository string

	// Branch is the branch on that repository, nil when pruned
	Branch *Branch

	// Commit is the tip commit of that branch, nil when unavailable
	Commit *Commit
}

// Participant is one user involved in a pull request.
type Participant struct {
	// User is the participant account, nil when the account is gone
	User *Account

	// Role is the participation role; "REVIEWER" gets called out
	Role string

	// Approved reports whether this participant approved the pull request
	Approved bool
}

// PullRequest is a source-platform pull request. Pull requests are
// numbered in their own track, independently from issues.
type PullRequest struct {
	// ID is the pull request number within the source pull request track
	ID int

	// Title is the pull request title
	Title string

	// Description is the raw free-text body
	Description string

	// Author is the user who opened the pull request, nil when unknown
	Author *Account

	// State is the source state value (OPEN, MERGED, DECLINED, ...)
	State string

	// CreatedOn is when the pull request was opened
	CreatedOn time.Time

	// UpdatedOn is when the pull request was last touched
	UpdatedOn time.Time

	// Source is the branch the pull request comes from
	Source Endpoint

	// Destination is the branch the pull request targets
	Destination Endpoint

	// MergeCommit is the merge commit, nil when the pull request was not
	// merged
	MergeCommit *Commit

	// Participants lists everyone involved, including reviewers
	Participants []Participant

	// Reviewers lists the requested reviewers
	Reviewers []Account
}

// InlineAnchor locates an inline code comment within a changed file.
// From and To are 1-based line numbers; 0 means the side is absent.
type InlineAnchor struct {
	Path string
	From int
	To   int
}

// Comment is a discussion comment on a source issue or pull request.
type Comment struct {
	// ID is the comment id on the source platform
	ID int

	// User is the comment author, nil when the account is gone
	User *Account

	// Content is the raw comment text; empty means the comment body was
	// removed on the source side
	Content string

	// Deleted reports whether the comment was soft-deleted at the source
	Deleted bool

	// CreatedOn is when the comment was posted
	CreatedOn time.Time

	// Parent is the id of the comment this one replies to, 0 for top-level
	Parent int

	// Inline carries file/line context for inline review comments
	Inline *InlineAnchor
}

// FieldChange is one field transition inside a ChangeEvent.
type FieldChange struct {
	Old string
	New string
}

// ChangeEvent records one edit of an issue's tracked fields.
type ChangeEvent struct {
	// User is who made the change, nil when unknown
	User *Account

	// CreatedOn is when the change happened
	CreatedOn time.Time

	// Changes maps the changed field name to its old/new values
	Changes map[string]FieldChange
}

// ApprovalEvent records one approval on a pull request.
type ApprovalEvent struct {
	// User is who approved, nil when unknown
	User *Account

	// Date is when the approval happened
	Date time.Time
}

// ItemKind tells the reconciler whether an assembled item is uploaded as
// a destination issue or as a destination pull request.
type ItemKind int

const (
	// KindIssue uploads as a destination issue
	KindIssue ItemKind = iota

	// KindPull uploads as a destination pull request
	KindPull
)

// String returns the kind name used in logs.
func (k ItemKind) String() string {
	switch k {
	case KindIssue:
		return "issue"
	case KindPull:
		return "pull"
	default:
		return "unknown"
	}
}

// IssueData is the destination issue payload.
type IssueData struct {
	// Title is the destination issue title
	Title string

	// Body is the rewritten, assembled body
	Body string

	// CreatedAt preserves the source creation timestamp
	CreatedAt time.Time

	// UpdatedAt preserves the source update timestamp
	UpdatedAt time.Time

	// Assignee is the destination assignee handle, empty when unassigned
	Assignee string

	// Closed reports whether the issue is created closed
	Closed bool

	// Labels is the deduplicated, sorted label set
	Labels []string
}

// PullData is the destination pull request payload. Base and Head are
// caller-supplied placeholders; branch mapping belongs to the repository
// conversion, not to the discussion migration.
type PullData struct {
	// Title is the destination pull request title
	Title string

	// Body is the rewritten, assembled body
	Body string

	// Assignees are the destination assignee handles
	Assignees []string

	// Closed reports whether the pull request should end up closed
	Closed bool

	// Labels is the deduplicated, sorted label set
	Labels []string

	// Base is the target branch placeholder
	Base string

	// Head is the source branch placeholder
	Head string
}

// CommentData is one destination comment, already rewritten.
type CommentData struct {
	// Body is the rewritten comment text
	Body string

	// CreatedAt preserves the source timestamp and is the ordering key
	CreatedAt time.Time
}

// Item is one assembled destination item with its ordered comments.
// Exactly one of Issue and Pull is set, according to Kind.
type Item struct {
	Kind     ItemKind
	Issue    *IssueData
	Pull     *PullData
	Comments []CommentData
}
