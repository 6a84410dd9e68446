package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyRecord = `
schema_version = 1

[github]
login = "OctoCat"

[discord]
user_id = "123456789012345678"
verified = true

[wallet]
address = "0xabcdef0123456789abcdef0123456789abcdef01"
verified = false

[stats]
total_prs = 6
avg_lines_changed = 40
issues_resolved = 2
issues_stale = 1

[status]
assigned = false
current_role = "Sentinel"
blocked = false

[[assignments]]
issue_url = "acme/widgets#12"
assigned_at = "2024-03-01T14:30:00.123456"
deadline = "2024-03-08T14:30:00.123456"
knight_override = false

[[manual_assignments]]
issue_url = "acme/widgets#99"
assigned_at = "2024-03-02T10:00:00Z"

[[prs]]
repo = "acme/widgets"
pr_number = 7
lines_changed = 40
labels = ["bug"]
`

func TestContributorDecode(t *testing.T) {
	var c Contributor
	require.NoError(t, toml.Unmarshal([]byte(legacyRecord), &c))
	c.Normalize()

	require.NoError(t, c.Validate())
	assert.Equal(t, "octocat", c.Key())
	assert.True(t, c.IsSentinel())
	assert.True(t, c.Status.Assigned, "assigned is recomputed from the lists")
	assert.Equal(t, 2, c.Load())

	require.Len(t, c.Assignments, 1)
	expected := time.Date(2024, 3, 8, 14, 30, 0, 123456000, time.UTC)
	assert.True(t, expected.Equal(c.Assignments[0].Deadline.Time))
}

func TestContributorEncodeRoundTrip(t *testing.T) {
	var c Contributor
	require.NoError(t, toml.Unmarshal([]byte(legacyRecord), &c))
	c.Normalize()

	data, err := toml.Marshal(&c)
	require.NoError(t, err)

	var again Contributor
	require.NoError(t, toml.Unmarshal(data, &again))
	again.Normalize()

	opt := cmp.Comparer(func(a, b Timestamp) bool { return a.Truncate(time.Second).Equal(b.Truncate(time.Second)) })
	if diff := cmp.Diff(&c, &again, opt); diff != "" {
		t.Errorf("record changed after encode/decode (-want +got):\n%s", diff)
	}
}

func TestAddPR(t *testing.T) {
	t.Run("average is floored over the whole history", func(t *testing.T) {
		c := NewContributor("dev", "", false, "", PRRecord{Repo: "acme/widgets", PRNumber: 1, LinesChanged: 100})
		require.NoError(t, c.AddPR(PRRecord{Repo: "acme/widgets", PRNumber: 2, LinesChanged: 50}, true))
		require.NoError(t, c.AddPR(PRRecord{Repo: "acme/widgets", PRNumber: 3, LinesChanged: 51}, true))

		assert.Equal(t, 67, c.Stats.AvgLinesChanged)
		assert.Equal(t, 3, c.Stats.TotalPRs)
	})

	t.Run("duplicate is a conflict and changes nothing", func(t *testing.T) {
		c := NewContributor("dev", "", false, "", PRRecord{Repo: "acme/widgets", PRNumber: 1, LinesChanged: 100})
		before := c.Clone()

		err := c.AddPR(PRRecord{Repo: "acme/widgets", PRNumber: 1, LinesChanged: 5}, true)
		assert.True(t, errors.Is(err, ErrConflict))
		if diff := cmp.Diff(before, c); diff != "" {
			t.Errorf("record mutated by duplicate PR (-want +got):\n%s", diff)
		}
	})

	t.Run("gated PR is recorded without counting", func(t *testing.T) {
		c := NewContributor("dev", "", false, "", PRRecord{Repo: "acme/widgets", PRNumber: 1, LinesChanged: 20})
		require.NoError(t, c.AddPR(PRRecord{Repo: "acme/widgets", PRNumber: 2, LinesChanged: 2, Labels: []string{"dependencies", "dependencies"}}, false))

		assert.Equal(t, 1, c.Stats.TotalPRs)
		assert.Equal(t, 11, c.Stats.AvgLinesChanged)
		assert.Equal(t, []string{"dependencies"}, c.PRs[1].Labels)
	})
}

func TestAssignments(t *testing.T) {
	c := NewContributor("dev", "", false, "", PRRecord{})
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	require.NoError(t, c.AddAssignment(Assignment{IssueURL: "acme/widgets#1", AssignedAt: NewTimestamp(now), Deadline: NewTimestamp(now.Add(72 * time.Hour))}))
	assert.True(t, c.Status.Assigned)

	err := c.AddManualAssignment(ManualAssignment{IssueURL: "acme/widgets#1", AssignedAt: NewTimestamp(now)})
	assert.True(t, errors.Is(err, ErrConflict))

	deadline, ok := c.NearestDeadline()
	assert.True(t, ok)
	assert.True(t, deadline.Equal(now.Add(72*time.Hour)))

	assert.True(t, c.RemoveAssignment("acme/widgets#1"))
	assert.False(t, c.RemoveAssignment("acme/widgets#1"))
	assert.False(t, c.Status.Assigned)
}

func TestPromoteToSentinel(t *testing.T) {
	c := NewContributor("dev", "", false, "", PRRecord{})
	require.NoError(t, c.PromoteToSentinel())
	assert.Equal(t, RoleSentinel, c.Status.CurrentRole)
	assert.True(t, errors.Is(c.PromoteToSentinel(), ErrConflict))
}

func TestContributorValidate(t *testing.T) {
	c := &Contributor{
		SchemaVersion: 0,
		Status:        Status{CurrentRole: "Knight"},
		Assignments:   []Assignment{{IssueURL: "not-a-ref"}},
		PRs: []PRRecord{
			{Repo: "acme/widgets", PRNumber: 1},
			{Repo: "acme/widgets", PRNumber: 1},
		},
	}

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	problems := ValidationProblems(err)
	assert.Contains(t, problems, "missing schema_version")
	assert.Contains(t, problems, "missing github.login")
	assert.Contains(t, problems, `invalid role: "Knight"`)
	assert.Contains(t, problems, "duplicate PR entry acme/widgets#1")
}

func TestOutcome(t *testing.T) {
	testCases := []struct {
		err      error
		outcome  string
		expected bool
	}{
		{nil, OutcomeOK, true},
		{ErrAlreadyExists, OutcomeAlreadyExists, true},
		{ErrNotEligible, OutcomeNotEligible, true},
		{errors.Join(errors.New("load"), ErrNotFound), OutcomeNotFound, true},
		{ErrNoneAvailable, OutcomeNoneAvailable, true},
		{ErrTransient, OutcomeTransient, false},
		{ErrCorrupt, OutcomeCorrupt, false},
		{errors.New("boom"), OutcomeError, false},
	}

	for _, tc := range testCases {
		t.Run(tc.outcome, func(t *testing.T) {
			assert.Equal(t, tc.outcome, Outcome(tc.err))
			assert.Equal(t, tc.expected, IsExpected(tc.err))
		})
	}

	assert.True(t, errors.Is(ErrAlreadyExists, ErrConflict))
	assert.True(t, errors.Is(ErrNotEligible, ErrValidation))
}
