package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alimgiray/sentinel/internal/validation"
)

// Role is a rung on the contributor ladder.
type Role string

const (
	RoleApprentice Role = "Apprentice"
	RoleSentinel   Role = "Sentinel"
)

// CurrentSchemaVersion is written into newly created records.
const CurrentSchemaVersion = 1

// Contributor is one registry record. Field names follow the stored TOML layout.
type Contributor struct {
	SchemaVersion     int                `toml:"schema_version" json:"schema_version"`
	GitHub            GitHubIdentity     `toml:"github" json:"github"`
	Discord           ChatIdentity       `toml:"discord" json:"discord"`
	Wallet            WalletIdentity     `toml:"wallet" json:"wallet"`
	Stats             Stats              `toml:"stats" json:"stats"`
	Status            Status             `toml:"status" json:"status"`
	Assignments       []Assignment       `toml:"assignments" json:"assignments"`
	ManualAssignments []ManualAssignment `toml:"manual_assignments" json:"manual_assignments"`
	PRs               []PRRecord         `toml:"prs" json:"prs"`
}

type GitHubIdentity struct {
	Login string `toml:"login" json:"login"`
}

type ChatIdentity struct {
	UserID   string `toml:"user_id" json:"user_id"`
	Verified bool   `toml:"verified" json:"verified"`
}

type WalletIdentity struct {
	Address  string `toml:"address" json:"address"`
	Verified bool   `toml:"verified" json:"verified"`
}

type Stats struct {
	TotalPRs        int `toml:"total_prs" json:"total_prs"`
	AvgLinesChanged int `toml:"avg_lines_changed" json:"avg_lines_changed"`
	IssuesResolved  int `toml:"issues_resolved" json:"issues_resolved"`
	IssuesStale     int `toml:"issues_stale" json:"issues_stale"`
}

type Status struct {
	Assigned    bool `toml:"assigned" json:"assigned"`
	CurrentRole Role `toml:"current_role" json:"current_role"`
	Blocked     bool `toml:"blocked" json:"blocked"`
}

// Assignment is a deadline-tracked auto-assignment.
type Assignment struct {
	IssueURL       string    `toml:"issue_url" json:"issue_url"`
	AssignedAt     Timestamp `toml:"assigned_at" json:"assigned_at"`
	Deadline       Timestamp `toml:"deadline" json:"deadline"`
	KnightOverride bool      `toml:"knight_override" json:"knight_override"`
}

// ManualAssignment is made by a Knight and never deadline-tracked.
type ManualAssignment struct {
	IssueURL   string    `toml:"issue_url" json:"issue_url"`
	AssignedAt Timestamp `toml:"assigned_at" json:"assigned_at"`
}

type PRRecord struct {
	Repo         string   `toml:"repo" json:"repo"`
	PRNumber     int      `toml:"pr_number" json:"pr_number"`
	LinesChanged int      `toml:"lines_changed" json:"lines_changed"`
	Labels       []string `toml:"labels" json:"labels"`
}

// NewContributor creates an Apprentice record with its first pull request.
func NewContributor(login, chatID string, chatVerified bool, wallet string, first PRRecord) *Contributor {
	c := &Contributor{
		SchemaVersion:     CurrentSchemaVersion,
		GitHub:            GitHubIdentity{Login: login},
		Discord:           ChatIdentity{UserID: strings.TrimSpace(chatID), Verified: chatVerified},
		Wallet:            WalletIdentity{Address: strings.ToLower(strings.TrimSpace(wallet))},
		Status:            Status{CurrentRole: RoleApprentice},
		Assignments:       []Assignment{},
		ManualAssignments: []ManualAssignment{},
		PRs:               []PRRecord{},
	}
	if first.Repo != "" {
		_ = c.AddPR(first, true)
	}
	return c
}

// Key is the case-insensitive registry key of the record.
func (c *Contributor) Key() string {
	return validation.SanitizeLogin(c.GitHub.Login)
}

// Load is the number of open assignments, auto and manual.
func (c *Contributor) Load() int {
	return len(c.Assignments) + len(c.ManualAssignments)
}

// RecomputeAssigned derives status.assigned from the assignment lists.
func (c *Contributor) RecomputeAssigned() {
	c.Status.Assigned = c.Load() > 0
}

func (c *Contributor) IsSentinel() bool {
	return c.Status.CurrentRole == RoleSentinel
}

// HasPR reports whether (repo, number) is already in the history.
func (c *Contributor) HasPR(repo string, number int) bool {
	for _, pr := range c.PRs {
		if pr.Repo == repo && pr.PRNumber == number {
			return true
		}
	}
	return false
}

// AddPR appends a pull request to the history and refreshes the averages.
// countsTowardPromotion controls whether total_prs is incremented.
// A duplicate (repo, number) is rejected with ErrConflict and changes nothing.
func (c *Contributor) AddPR(pr PRRecord, countsTowardPromotion bool) error {
	if c.HasPR(pr.Repo, pr.PRNumber) {
		return fmt.Errorf("%w: PR %s#%d already recorded for %s", ErrConflict, pr.Repo, pr.PRNumber, c.GitHub.Login)
	}
	if pr.LinesChanged < 0 {
		pr.LinesChanged = 0
	}
	pr.Labels = normalizeLabels(pr.Labels)
	c.PRs = append(c.PRs, pr)
	if countsTowardPromotion {
		c.Stats.TotalPRs++
	}
	c.recomputeAverage()
	return nil
}

func (c *Contributor) recomputeAverage() {
	if len(c.PRs) == 0 {
		c.Stats.AvgLinesChanged = 0
		return
	}
	total := 0
	for _, pr := range c.PRs {
		total += pr.LinesChanged
	}
	c.Stats.AvgLinesChanged = total / len(c.PRs)
}

// HoldsIssue reports whether issueURL is assigned to the contributor in either list.
func (c *Contributor) HoldsIssue(issueURL string) bool {
	for _, a := range c.Assignments {
		if strings.EqualFold(a.IssueURL, issueURL) {
			return true
		}
	}
	for _, a := range c.ManualAssignments {
		if strings.EqualFold(a.IssueURL, issueURL) {
			return true
		}
	}
	return false
}

// AddAssignment appends a deadline-tracked assignment.
func (c *Contributor) AddAssignment(a Assignment) error {
	if c.HoldsIssue(a.IssueURL) {
		return fmt.Errorf("%w: %s already assigned to %s", ErrConflict, a.IssueURL, c.GitHub.Login)
	}
	c.Assignments = append(c.Assignments, a)
	c.RecomputeAssigned()
	return nil
}

// AddManualAssignment appends an untracked assignment.
func (c *Contributor) AddManualAssignment(a ManualAssignment) error {
	if c.HoldsIssue(a.IssueURL) {
		return fmt.Errorf("%w: %s already assigned to %s", ErrConflict, a.IssueURL, c.GitHub.Login)
	}
	c.ManualAssignments = append(c.ManualAssignments, a)
	c.RecomputeAssigned()
	return nil
}

// RemoveAssignment drops the auto-assignment for issueURL.
func (c *Contributor) RemoveAssignment(issueURL string) bool {
	kept := c.Assignments[:0]
	removed := false
	for _, a := range c.Assignments {
		if !removed && a.IssueURL == issueURL {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	c.Assignments = kept
	c.RecomputeAssigned()
	return removed
}

// MarkOverridden sets knight_override on the assignment for issueURL. It
// reports false when the assignment is missing or already marked.
func (c *Contributor) MarkOverridden(issueURL string) bool {
	for i := range c.Assignments {
		if c.Assignments[i].IssueURL == issueURL && !c.Assignments[i].KnightOverride {
			c.Assignments[i].KnightOverride = true
			return true
		}
	}
	return false
}

// PromoteToSentinel moves an Apprentice up the ladder. The role never moves back.
func (c *Contributor) PromoteToSentinel() error {
	if c.Status.CurrentRole == RoleSentinel {
		return fmt.Errorf("%w: %s is already a Sentinel", ErrConflict, c.GitHub.Login)
	}
	c.Status.CurrentRole = RoleSentinel
	return nil
}

// NearestDeadline returns the earliest auto-assignment deadline, if any.
func (c *Contributor) NearestDeadline() (time.Time, bool) {
	var nearest time.Time
	for _, a := range c.Assignments {
		if nearest.IsZero() || a.Deadline.Before(nearest) {
			nearest = a.Deadline.Time
		}
	}
	return nearest, !nearest.IsZero()
}

// Normalize fills defaults for optional fields and re-derives computed ones.
func (c *Contributor) Normalize() {
	if c.Status.CurrentRole == "" {
		c.Status.CurrentRole = RoleApprentice
	}
	if c.Assignments == nil {
		c.Assignments = []Assignment{}
	}
	if c.ManualAssignments == nil {
		c.ManualAssignments = []ManualAssignment{}
	}
	if c.PRs == nil {
		c.PRs = []PRRecord{}
	}
	c.RecomputeAssigned()
}

// Validate checks the record schema. Failures wrap ErrValidation.
func (c *Contributor) Validate() error {
	var problems []string

	if c.SchemaVersion < 1 {
		problems = append(problems, "missing schema_version")
	}
	if strings.TrimSpace(c.GitHub.Login) == "" {
		problems = append(problems, "missing github.login")
	}
	switch c.Status.CurrentRole {
	case RoleApprentice, RoleSentinel:
	default:
		problems = append(problems, fmt.Sprintf("invalid role: %q", c.Status.CurrentRole))
	}
	if c.Stats.TotalPRs < 0 || c.Stats.AvgLinesChanged < 0 || c.Stats.IssuesResolved < 0 || c.Stats.IssuesStale < 0 {
		problems = append(problems, "stats must not be negative")
	}
	for _, a := range c.Assignments {
		if _, err := ParseIssueRef(a.IssueURL); err != nil {
			problems = append(problems, fmt.Sprintf("assignment %q: bad issue ref", a.IssueURL))
		}
		if a.Deadline.IsZero() {
			problems = append(problems, fmt.Sprintf("assignment %q: missing deadline", a.IssueURL))
		}
	}
	for _, a := range c.ManualAssignments {
		if _, err := ParseIssueRef(a.IssueURL); err != nil {
			problems = append(problems, fmt.Sprintf("manual assignment %q: bad issue ref", a.IssueURL))
		}
	}
	seen := make(map[string]bool, len(c.PRs))
	for _, pr := range c.PRs {
		key := fmt.Sprintf("%s#%d", pr.Repo, pr.PRNumber)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate PR entry %s", key))
		}
		seen[key] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ValidationProblems splits a Validate error into its individual messages.
func ValidationProblems(err error) []string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && errors.Is(err, ErrValidation) {
		msg = msg[i+2:]
	}
	return strings.Split(msg, "; ")
}

// Clone returns a deep copy.
func (c *Contributor) Clone() *Contributor {
	out := *c
	out.Assignments = append([]Assignment(nil), c.Assignments...)
	out.ManualAssignments = append([]ManualAssignment(nil), c.ManualAssignments...)
	out.PRs = make([]PRRecord, len(c.PRs))
	for i, pr := range c.PRs {
		pr.Labels = append([]string(nil), pr.Labels...)
		out.PRs[i] = pr
	}
	return &out
}

func normalizeLabels(labels []string) []string {
	set := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := set[l]; ok {
			continue
		}
		set[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
