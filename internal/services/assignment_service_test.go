package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAvailableSentinel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("none available when all busy or blocked", func(t *testing.T) {
		fx := newFixture(t)
		busy := withAssignment(sentinel("busy"), "acme/widgets#1", now, now.Add(120*time.Hour))
		blocked := sentinel("blocked")
		blocked.Status.Blocked = true
		manual := sentinel("manual")
		require.NoError(t, manual.AddManualAssignment(models.ManualAssignment{IssueURL: "acme/widgets#2", AssignedAt: models.NewTimestamp(now)}))
		fx.seed(t, busy)
		fx.seed(t, blocked)
		fx.seed(t, manual)
		fx.seed(t, apprentice("newbie"))

		svc := NewAssignmentService(fx.repo, fx.cfg)
		for i := 0; i < 5; i++ {
			_, err := svc.FindAvailableSentinel(ctx, 1)
			assert.True(t, errors.Is(err, models.ErrNoneAvailable))
		}
	})

	t.Run("single eligible sentinel always wins", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, withAssignment(sentinel("busy"), "acme/widgets#1", now, now.Add(120*time.Hour)))
		fx.seed(t, sentinel("free"))
		fx.seed(t, apprentice("newbie"))

		svc := NewAssignmentService(fx.repo, fx.cfg)
		for i := 0; i < 10; i++ {
			picked, err := svc.FindAvailableSentinel(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "free", picked.GitHub.Login)
		}
	})

	t.Run("choice stays within the eligible set", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, sentinel("alice"))
		fx.seed(t, sentinel("bob"))
		fx.seed(t, sentinel("carol"))

		svc := NewAssignmentService(fx.repo, fx.cfg, WithRand(rand.New(rand.NewSource(1))))
		seen := map[string]bool{}
		for i := 0; i < 30; i++ {
			picked, err := svc.FindAvailableSentinel(ctx, 1, "carol")
			require.NoError(t, err)
			seen[picked.GitHub.Login] = true
		}
		assert.NotContains(t, seen, "carol")
		for login := range seen {
			assert.Contains(t, []string{"alice", "bob"}, login)
		}
	})

	t.Run("higher capacity admits loaded sentinels", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, withAssignment(sentinel("busy"), "acme/widgets#1", now, now.Add(120*time.Hour)))

		svc := NewAssignmentService(fx.repo, fx.cfg)
		picked, err := svc.FindAvailableSentinel(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "busy", picked.GitHub.Login)
	})
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, sentinel("alice"))
	svc := NewAssignmentService(fx.repo, fx.cfg)

	friday := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	ref, _ := models.ParseIssueRef("acme/widgets#7")

	assignment, err := svc.Assign(ctx, "alice", ref, friday)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC).Equal(assignment.Deadline.Time))
	assert.False(t, assignment.KnightOverride)

	stored := fx.load(t, "alice")
	require.Len(t, stored.Assignments, 1)
	assert.Equal(t, "acme/widgets#7", stored.Assignments[0].IssueURL)
	assert.True(t, stored.Status.Assigned)

	_, err = svc.Assign(ctx, "alice", ref, friday)
	assert.True(t, errors.Is(err, models.ErrConflict))

	_, err = svc.Assign(ctx, "ghost", ref, friday)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	commits := fx.mem.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "Assign acme/widgets#7 to alice", commits[0].Message)
}

func TestAssignManually(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, sentinel("alice"))
	svc := NewAssignmentService(fx.repo, fx.cfg)

	ref, _ := models.ParseIssueRef("acme/widgets#9")
	_, err := svc.AssignManually(ctx, "alice", ref, time.Now())
	require.NoError(t, err)

	stored := fx.load(t, "alice")
	assert.Empty(t, stored.Assignments)
	require.Len(t, stored.ManualAssignments, 1)
	assert.True(t, stored.Status.Assigned)
}
