package bitbucket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("workspace/silver")
	client.baseURL = server.URL
	return client
}

func TestIssuesFollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/repositories/workspace/silver/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"values": [{"id": 2, "title": "second", "state": "new", "content": {"raw": "b"}, "created_on": "2012-11-26T09:59:39+00:00", "updated_on": "2012-11-26T09:59:39+00:00"}]}`)
			return
		}
		fmt.Fprintf(w, `{"values": [{"id": 1, "title": "first", "state": "resolved", "content": {"raw": "a"}, "reporter": {"nickname": "alice"}, "component": {"name": "parser"}, "created_on": "2012-11-26T09:59:39+00:00", "updated_on": "2012-11-27T10:00:00+00:00"}], "next": "%s/repositories/workspace/silver/issues?page=2"}`, serverURL)
	})

	client := testClient(t, mux)
	serverURL = client.baseURL

	issues, err := client.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, 1, issues[0].ID)
	assert.Equal(t, "first", issues[0].Title)
	assert.Equal(t, "a", issues[0].Content)
	assert.Equal(t, "resolved", issues[0].State)
	assert.Equal(t, "parser", issues[0].Component)
	require.NotNil(t, issues[0].Reporter)
	assert.Equal(t, "alice", issues[0].Reporter.Nickname)

	assert.Equal(t, 2, issues[1].ID)
	assert.Nil(t, issues[1].Reporter)
	assert.Empty(t, issues[1].Component)
}

func TestPullConversion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/pullrequests/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": 3,
			"title": "add parser",
			"description": "body",
			"state": "MERGED",
			"author": {"nickname": "alice"},
			"created_on": "2013-01-01T08:00:00+00:00",
			"updated_on": "2013-01-02T08:00:00+00:00",
			"source": {"repository": {"full_name": "someone/fork"}, "branch": {"name": "feature"}, "commit": {"hash": "abc123"}},
			"destination": {"repository": {"full_name": "workspace/silver"}, "branch": {"name": "default"}, "commit": {"hash": "def456"}},
			"merge_commit": {"hash": "fff999"},
			"participants": [{"user": {"nickname": "bob"}, "role": "REVIEWER", "approved": true}],
			"reviewers": [{"nickname": "bob"}]
		}`)
	})

	client := testClient(t, mux)

	pull, err := client.Pull(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, pull.ID)
	assert.Equal(t, "MERGED", pull.State)
	assert.Equal(t, "someone/fork", pull.Source.Repository)
	require.NotNil(t, pull.Source.Branch)
	assert.Equal(t, "feature", pull.Source.Branch.Name)
	require.NotNil(t, pull.Source.Commit)
	assert.Equal(t, "abc123", pull.Source.Commit.Hash)
	require.NotNil(t, pull.MergeCommit)
	assert.Equal(t, "fff999", pull.MergeCommit.Hash)
	require.Len(t, pull.Participants, 1)
	assert.True(t, pull.Participants[0].Approved)
	assert.Equal(t, "REVIEWER", pull.Participants[0].Role)
	require.Len(t, pull.Reviewers, 1)
	assert.Equal(t, "bob", pull.Reviewers[0].Nickname)
}

func TestIssueCommentsKeyedByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values": [
			{"id": 10, "user": {"nickname": "alice"}, "content": {"raw": "first"}, "created_on": "2013-01-01T08:00:00+00:00"},
			{"id": 11, "content": {"raw": "reply"}, "parent": {"id": 10}, "inline": {"path": "a.go", "from": 3, "to": 5}, "created_on": "2013-01-01T09:00:00+00:00"}
		]}`)
	})

	client := testClient(t, mux)

	comments, err := client.IssueComments(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "first", comments[10].Content)
	assert.Equal(t, 0, comments[10].Parent)
	assert.Equal(t, 10, comments[11].Parent)
	require.NotNil(t, comments[11].Inline)
	assert.Equal(t, "a.go", comments[11].Inline.Path)
	assert.Equal(t, 3, comments[11].Inline.From)
	assert.Equal(t, 5, comments[11].Inline.To)
}

func TestPullActivityKeepsOnlyApprovals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/pullrequests/3/activity", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values": [
			{"update": {"state": "OPEN"}},
			{"approval": {"user": {"nickname": "bob"}, "date": "2013-01-03T08:00:00+00:00"}},
			{"comment": {"id": 42}}
		]}`)
	})

	client := testClient(t, mux)

	approvals, err := client.PullActivity(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	require.NotNil(t, approvals[0].User)
	assert.Equal(t, "bob", approvals[0].User.Nickname)
}

func TestIssueChanges(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/issues/5/changes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values": [
			{"user": {"nickname": "alice"}, "created_on": "2013-01-02T08:00:00+00:00", "changes": {"state": {"old": "new", "new": "resolved"}}}
		]}`)
	})

	client := testClient(t, mux)

	changes, err := client.IssueChanges(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "resolved", changes[0].Changes["state"].New)
}

func TestGetBytesPermanentErrorOnClientFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	client := testClient(t, mux)

	_, err := client.Issues(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGetBytesRetriesServerErrors(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/workspace/silver/issues", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"values": []}`)
	})

	client := testClient(t, mux)

	issues, err := client.Issues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 2, attempts)
}
