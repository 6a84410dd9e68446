package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWaitPolicy() retry.Policy {
	return retry.Policy{Attempts: 3}
}

func newTestTracker(t *testing.T, mux *http.ServeMux) *GitHubTracker {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tr, err := NewGitHubTracker("test-token", server.URL, noWaitPolicy())
	require.NoError(t, err)
	return tr
}

var issueRef = models.IssueRef{Owner: "acme", Repo: "widgets", Number: 12}

func TestGetIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number":12,"title":"Fix it","state":"closed","labels":[{"name":"time-taken"},{"name":"bug"}]}`)
	})

	issue, err := newTestTracker(t, mux).GetIssue(context.Background(), issueRef)
	require.NoError(t, err)
	assert.False(t, issue.Open)
	assert.Equal(t, "Fix it", issue.Title)
	assert.True(t, issue.HasLabel("Time-Taken"))
}

func TestGetIssueNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	_, err := newTestTracker(t, mux).GetIssue(context.Background(), issueRef)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestGetIssueRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"message":"bad gateway"}`)
			return
		}
		fmt.Fprint(w, `{"number":12,"state":"open"}`)
	})

	issue, err := newTestTracker(t, mux).GetIssue(context.Background(), issueRef)
	require.NoError(t, err)
	assert.True(t, issue.Open)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetIssueGivesUp(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"unavailable"}`)
	})

	_, err := newTestTracker(t, mux).GetIssue(context.Background(), issueRef)
	assert.True(t, errors.Is(err, models.ErrTransient))
	assert.Equal(t, int32(3), calls.Load())
}

func TestListPRComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "desc", r.URL.Query().Get("direction"))
		assert.Equal(t, "created", r.URL.Query().Get("sort"))
		fmt.Fprint(w, `[
			{"id":3,"user":{"login":"newcomer"},"body":"discord: 123456789012345678"},
			{"id":2,"user":{"login":"bot"},"body":"Welcome!"}
		]`)
	})

	comments, err := newTestTracker(t, mux).ListPRComments(context.Background(), issueRef)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, int64(3), comments[0].ID)
	assert.Equal(t, "newcomer", comments[0].Author)
}

func TestGetPullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/12", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":12,"user":{"login":"dev"},"additions":30,"deletions":5,"merged":true,
			"base":{"ref":"main"},"labels":[{"name":"enhancement"}]}`)
	})

	pr, err := newTestTracker(t, mux).GetPullRequest(context.Background(), issueRef)
	require.NoError(t, err)
	assert.Equal(t, &models.PullRequest{
		Repo:       "acme/widgets",
		Number:     12,
		Author:     "dev",
		Additions:  30,
		Deletions:  5,
		BaseBranch: "main",
		Merged:     true,
		Labels:     []string{"enhancement"},
	}, pr)
}

func TestMutations(t *testing.T) {
	var labels, assignees []string
	var comment string

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12/labels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&labels))
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widgets/issues/12/comments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		comment = body.Body
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	})
	mux.HandleFunc("/repos/acme/widgets/issues/12/assignees", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Assignees []string `json:"assignees"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assignees = body.Assignees
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number":12}`)
	})

	tr := newTestTracker(t, mux)
	ctx := context.Background()
	require.NoError(t, tr.AddLabels(ctx, issueRef, "sentinel-deadline: 2024-03-08"))
	require.NoError(t, tr.AddComment(ctx, issueRef, "hello"))
	require.NoError(t, tr.AddAssignees(ctx, issueRef, "sentinel1"))

	assert.Equal(t, []string{"sentinel-deadline: 2024-03-08"}, labels)
	assert.Equal(t, "hello", comment)
	assert.Equal(t, []string{"sentinel1"}, assignees)
}

func TestValidationErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/12/labels", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Validation Failed"}`)
	})

	err := newTestTracker(t, mux).AddLabels(context.Background(), issueRef, "x")
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, int32(1), calls.Load())
}
