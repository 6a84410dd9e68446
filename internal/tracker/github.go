// Package tracker talks to the GitHub issue tracker.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/retry"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubTracker reads issues and pull requests and posts labels, comments
// and assignees. Every call goes through the retry policy.
type GitHubTracker struct {
	client *github.Client
	policy retry.Policy
}

// NewGitHubTracker builds an authenticated client. An empty baseURL keeps
// the public API endpoint.
func NewGitHubTracker(token, baseURL string, policy retry.Policy) (*GitHubTracker, error) {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(httpClient)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid GitHub base URL: %v", models.ErrValidation, err)
		}
		client.BaseURL = u
	}

	return &GitHubTracker{client: client, policy: policy}, nil
}

func (t *GitHubTracker) GetIssue(ctx context.Context, ref models.IssueRef) (*models.IssueState, error) {
	issue, err := retry.DoValue(ctx, t.policy, "get issue "+ref.String(), func(ctx context.Context) (*github.Issue, error) {
		issue, _, err := t.client.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		return issue, mapError(err)
	})
	if err != nil {
		return nil, err
	}

	state := &models.IssueState{
		Ref:   ref,
		Title: issue.GetTitle(),
		Open:  issue.GetState() == "open",
	}
	for _, label := range issue.Labels {
		state.Labels = append(state.Labels, label.GetName())
	}
	return state, nil
}

// ListPRComments returns the conversation comments of a pull request, newest first.
func (t *GitHubTracker) ListPRComments(ctx context.Context, ref models.IssueRef) ([]models.Comment, error) {
	opts := &github.IssueListCommentsOptions{
		Sort:      github.String("created"),
		Direction: github.String("desc"),
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var comments []models.Comment
	for {
		page, err := retry.DoValue(ctx, t.policy, "list comments "+ref.String(), func(ctx context.Context) (listPage, error) {
			comments, resp, err := t.client.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opts)
			return listPage{comments: comments, resp: resp}, mapError(err)
		})
		if err != nil {
			return nil, err
		}
		for _, c := range page.comments {
			comments = append(comments, models.Comment{
				ID:     c.GetID(),
				Author: c.GetUser().GetLogin(),
				Body:   c.GetBody(),
			})
		}

		if page.resp == nil || page.resp.NextPage == 0 {
			break
		}
		opts.Page = page.resp.NextPage
	}

	return comments, nil
}

type listPage struct {
	comments []*github.IssueComment
	resp     *github.Response
}

func (t *GitHubTracker) GetPullRequest(ctx context.Context, ref models.IssueRef) (*models.PullRequest, error) {
	pr, err := retry.DoValue(ctx, t.policy, "get pull request "+ref.String(), func(ctx context.Context) (*github.PullRequest, error) {
		pr, _, err := t.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		return pr, mapError(err)
	})
	if err != nil {
		return nil, err
	}

	result := &models.PullRequest{
		Repo:       ref.RepoName(),
		Number:     ref.Number,
		Author:     pr.GetUser().GetLogin(),
		Additions:  pr.GetAdditions(),
		Deletions:  pr.GetDeletions(),
		BaseBranch: pr.GetBase().GetRef(),
		Merged:     pr.GetMerged(),
	}
	for _, label := range pr.Labels {
		result.Labels = append(result.Labels, label.GetName())
	}
	return result, nil
}

func (t *GitHubTracker) AddLabels(ctx context.Context, ref models.IssueRef, labels ...string) error {
	return retry.Do(ctx, t.policy, "add labels "+ref.String(), func(ctx context.Context) error {
		_, _, err := t.client.Issues.AddLabelsToIssue(ctx, ref.Owner, ref.Repo, ref.Number, labels)
		return mapError(err)
	})
}

func (t *GitHubTracker) AddComment(ctx context.Context, ref models.IssueRef, body string) error {
	return retry.Do(ctx, t.policy, "comment "+ref.String(), func(ctx context.Context) error {
		_, _, err := t.client.Issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Number, &github.IssueComment{
			Body: github.String(body),
		})
		return mapError(err)
	})
}

func (t *GitHubTracker) AddAssignees(ctx context.Context, ref models.IssueRef, logins ...string) error {
	return retry.Do(ctx, t.policy, "assign "+ref.String(), func(ctx context.Context) error {
		_, _, err := t.client.Issues.AddAssignees(ctx, ref.Owner, ref.Repo, ref.Number, logins)
		return mapError(err)
	})
}

// RateLimitedError is a GitHub rate limit response. It is transient and
// carries the server's backoff.
type RateLimitedError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("github rate limited (retry after %s): %v", e.Wait, e.Err)
}

func (e *RateLimitedError) RetryAfter() time.Duration { return e.Wait }

func (e *RateLimitedError) Is(target error) bool { return target == models.ErrTransient }

func (e *RateLimitedError) Unwrap() error { return e.Err }

// mapError translates go-github errors into the shared taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitedError{Wait: time.Until(rateErr.Rate.Reset.Time), Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitedError{Wait: abuseErr.GetRetryAfter(), Err: err}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			return fmt.Errorf("%w: %v", models.ErrNotFound, err)
		case status == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		case status == http.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("%w: %v", models.ErrTransient, err)
		}
		return err
	}

	// Anything else is a transport failure.
	return fmt.Errorf("%w: %v", models.ErrTransient, err)
}
