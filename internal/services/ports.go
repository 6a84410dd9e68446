package services

import (
	"context"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/retry"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/config"
)

// IssueTracker is the subset of the issue tracker the services use.
type IssueTracker interface {
	GetIssue(ctx context.Context, ref models.IssueRef) (*models.IssueState, error)
	// ListPRComments returns comments newest first.
	ListPRComments(ctx context.Context, ref models.IssueRef) ([]models.Comment, error)
	GetPullRequest(ctx context.Context, ref models.IssueRef) (*models.PullRequest, error)
	AddLabels(ctx context.Context, ref models.IssueRef, labels ...string) error
	AddComment(ctx context.Context, ref models.IssueRef, body string) error
	AddAssignees(ctx context.Context, ref models.IssueRef, logins ...string) error
}

// ChatPlatform is the subset of the chat platform the services use.
type ChatPlatform interface {
	GrantRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	SendDM(ctx context.Context, userID, content string) error
	SendChannelMessage(ctx context.Context, channelID, content string) error
}

// IdentityRules maps the onboarding config onto validation rules.
func IdentityRules(cfg *config.Config) validation.IdentityRules {
	return validation.IdentityRules{
		ChatIDLengthMin:     cfg.Onboarding.ChatIDLengthMin,
		ChatIDLengthMax:     cfg.Onboarding.ChatIDLengthMax,
		WalletAddressPrefix: cfg.Onboarding.WalletAddressPrefix,
		WalletAddressLength: cfg.Onboarding.WalletAddressLength,
	}
}

// QualityGates maps the quality gate config onto validation gates.
func QualityGates(cfg *config.Config) validation.QualityGates {
	return validation.QualityGates{
		AllowedMergeBranches: cfg.QualityGates.AllowedMergeBranches,
		ExcludePRLabels:      cfg.QualityGates.ExcludePRLabels,
		MinLinesForCount:     cfg.QualityGates.MinLinesForCount,
	}
}

// RetryPolicy builds the external call policy from config.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.NewPolicy(cfg.Retry.Attempts, cfg.Retry.DelaysSeconds)
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
