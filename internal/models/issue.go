package models

import (
	"fmt"
	"strconv"
	"strings"
)

// IssueRef identifies an issue as "owner/repo#N".
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

// ParseIssueRef parses "owner/repo#N".
func ParseIssueRef(s string) (IssueRef, error) {
	s = strings.TrimSpace(s)
	hash := strings.LastIndex(s, "#")
	if hash <= 0 || hash == len(s)-1 {
		return IssueRef{}, fmt.Errorf("%w: issue ref %q must look like owner/repo#N", ErrValidation, s)
	}
	owner, repo, err := SplitRepoName(s[:hash])
	if err != nil {
		return IssueRef{}, err
	}
	number, err := strconv.Atoi(s[hash+1:])
	if err != nil || number <= 0 {
		return IssueRef{}, fmt.Errorf("%w: issue ref %q has an invalid number", ErrValidation, s)
	}
	return IssueRef{Owner: owner, Repo: repo, Number: number}, nil
}

// NewIssueRef builds a ref from "owner/repo" and a number.
func NewIssueRef(repoName string, number int) (IssueRef, error) {
	return ParseIssueRef(fmt.Sprintf("%s#%d", repoName, number))
}

// SplitRepoName splits "owner/repo" into its parts.
func SplitRepoName(fullName string) (owner, repo string, err error) {
	slash := strings.LastIndex(fullName, "/")
	if slash <= 0 || slash == len(fullName)-1 {
		return "", "", fmt.Errorf("%w: invalid repository name format: %s", ErrValidation, fullName)
	}
	return fullName[:slash], fullName[slash+1:], nil
}

func (r IssueRef) RepoName() string {
	return r.Owner + "/" + r.Repo
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// URL returns the web URL of the issue.
func (r IssueRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s/issues/%d", r.Owner, r.Repo, r.Number)
}

// IssueState is the live state of an issue as seen by the tracker.
type IssueState struct {
	Ref    IssueRef
	Title  string
	Open   bool
	Labels []string
}

// HasLabel reports whether the issue carries label, ignoring case.
func (s IssueState) HasLabel(label string) bool {
	for _, l := range s.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Comment is an issue or pull request comment.
type Comment struct {
	ID     int64
	Author string
	Body   string
}

// PullRequest holds the fields the stats and quality gate need.
type PullRequest struct {
	Repo       string
	Number     int
	Author     string
	Additions  int
	Deletions  int
	BaseBranch string
	Merged     bool
	Labels     []string
}
