package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prRef = "acme/widgets#42"

func newOnboarding(fx *fixture) *OnboardingService {
	return NewOnboardingService(fx.repo, NewContributorService(fx.repo, fx.cfg), fx.tracker, fx.chat, fx.notifier(), fx.cfg)
}

func mustRef(t *testing.T, s string) models.IssueRef {
	t.Helper()
	ref, err := models.ParseIssueRef(s)
	require.NoError(t, err)
	return ref
}

func TestCheckResponseNewestFirst(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.tracker.comments[prRef] = []models.Comment{
		{ID: 5, Author: "someone-else", Body: "Discord: 999999999999999999\nWallet: " + testWallet},
		{ID: 4, Author: "Newbie", Body: "Discord: 111111111111111111\nWallet: 0x" + "1111111111111111111111111111111111111111"},
		{ID: 3, Author: "newbie", Body: "Discord: " + testChatID + "\nWallet: " + testWallet},
		{ID: 2, Author: "newbie", Body: "what do I need to send?"},
	}

	svc := newOnboarding(fx)
	response, err := svc.CheckResponse(ctx, mustRef(t, prRef), "newbie")
	require.NoError(t, err)
	assert.True(t, response.HasResponse)
	assert.Equal(t, int64(4), response.CommentID)
	assert.Equal(t, "111111111111111111", response.ChatID)

	response, err = svc.CheckResponse(ctx, mustRef(t, prRef), "stranger")
	require.NoError(t, err)
	assert.False(t, response.HasResponse)
}

func TestOnboard(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.tracker.comments[prRef] = []models.Comment{
		{ID: 1, Author: "newbie", Body: "Discord ID: " + testChatID + "\nWallet: " + testWallet},
	}
	fx.tracker.prs[prRef] = &models.PullRequest{
		Repo: "acme/widgets", Number: 42, Author: "newbie",
		Additions: 20, Deletions: 5, BaseBranch: "main", Merged: true, Labels: []string{"docs"},
	}

	result, err := newOnboarding(fx).Onboard(ctx, mustRef(t, prRef), "newbie")
	require.NoError(t, err)
	assert.True(t, result.RoleGranted)
	assert.True(t, result.SuccessPosted)
	assert.Equal(t, []string{testChatID + ":role-apprentice"}, fx.chat.granted)

	stored := fx.load(t, "newbie")
	assert.True(t, stored.Discord.Verified)
	assert.Equal(t, models.RoleApprentice, stored.Status.CurrentRole)
	require.Len(t, stored.PRs, 1)
	assert.Equal(t, 25, stored.PRs[0].LinesChanged)
	assert.ElementsMatch(t, []string{"docs", "first-time-contributor"}, stored.PRs[0].Labels)

	require.Len(t, fx.tracker.posted[prRef], 1)
	assert.Contains(t, fx.tracker.posted[prRef][0], "@newbie")

	_, err = newOnboarding(fx).Onboard(ctx, mustRef(t, prRef), "newbie")
	assert.True(t, errors.Is(err, models.ErrAlreadyExists))
}

func TestOnboardWithoutResponse(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := newOnboarding(fx).Onboard(ctx, mustRef(t, prRef), "newbie")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Empty(t, fx.mem.Commits())
}

func TestOnboardRoleGrantFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.chat.grantErr = errors.New("missing permissions")
	fx.tracker.comments[prRef] = []models.Comment{
		{ID: 1, Author: "newbie", Body: "discord " + testChatID + " wallet " + testWallet},
	}
	fx.tracker.prs[prRef] = &models.PullRequest{Repo: "acme/widgets", Number: 42, Author: "newbie", Merged: true}

	result, err := newOnboarding(fx).Onboard(ctx, mustRef(t, prRef), "newbie")
	require.NoError(t, err)
	assert.False(t, result.RoleGranted)
	assert.False(t, fx.load(t, "newbie").Discord.Verified)
}

func TestAskForInfo(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, newOnboarding(fx).AskForInfo(context.Background(), mustRef(t, prRef), "newbie"))

	require.Len(t, fx.tracker.posted[prRef], 1)
	body := fx.tracker.posted[prRef][0]
	assert.Contains(t, body, "@newbie")
	assert.Contains(t, body, "17-19 digits")
	assert.Contains(t, body, "0x followed by 40 hex characters")
}
