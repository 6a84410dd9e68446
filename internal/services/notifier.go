package services

import (
	"context"
	"fmt"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Notifier posts tracker comments and chat messages. Tracker failures are
// returned; chat failures are logged only, and a nil chat platform disables
// chat entirely.
type Notifier struct {
	tracker IssueTracker
	chat    ChatPlatform
	cfg     *config.Config
	log     *logrus.Entry
}

func NewNotifier(tracker IssueTracker, chat ChatPlatform, cfg *config.Config) *Notifier {
	return &Notifier{
		tracker: tracker,
		chat:    chat,
		cfg:     cfg,
		log:     logger.Component("notifier"),
	}
}

func (n *Notifier) dm(ctx context.Context, c *models.Contributor, content string) {
	if n.chat == nil || c.Discord.UserID == "" {
		return
	}
	if err := n.chat.SendDM(ctx, c.Discord.UserID, content); err != nil {
		n.log.WithError(err).WithField("contributor", c.GitHub.Login).Warn("Failed to send direct message")
	}
}

func (n *Notifier) channel(ctx context.Context, channelID, content string) {
	if n.chat == nil || channelID == "" {
		return
	}
	if err := n.chat.SendChannelMessage(ctx, channelID, content); err != nil {
		n.log.WithError(err).WithField("channel", channelID).Warn("Failed to send channel message")
	}
}

// AskForInfo asks a first-time contributor for their chat ID and wallet.
func (n *Notifier) AskForInfo(ctx context.Context, pr models.IssueRef, author string) error {
	return n.tracker.AddComment(ctx, pr, askForInfoMessage(author, IdentityRules(n.cfg)))
}

func (n *Notifier) OnboardingSuccess(ctx context.Context, pr models.IssueRef, author string) error {
	return n.tracker.AddComment(ctx, pr, onboardingSuccessMessage(author))
}

// DeadlineReminder comments on the issue and sends the holder a DM.
func (n *Notifier) DeadlineReminder(ctx context.Context, c *models.Contributor, ref models.IssueRef, rem validation.Remaining) error {
	if err := n.tracker.AddComment(ctx, ref, deadlineReminderMessage(c.GitHub.Login, rem, n.cfg.Labels.Override)); err != nil {
		return fmt.Errorf("failed to post deadline reminder on %s: %w", ref, err)
	}
	n.dm(ctx, c, deadlineReminderDM(ref, rem))
	return nil
}

// AnnounceAssignment assigns the issue on the tracker, adds the deadline
// label and a comment, then DMs the Sentinel.
func (n *Notifier) AnnounceAssignment(ctx context.Context, c *models.Contributor, ref models.IssueRef, a models.Assignment) error {
	if err := n.tracker.AddAssignees(ctx, ref, c.GitHub.Login); err != nil {
		return fmt.Errorf("failed to assign %s on %s: %w", c.GitHub.Login, ref, err)
	}
	if err := n.tracker.AddLabels(ctx, ref, DeadlineLabel(a)); err != nil {
		return fmt.Errorf("failed to label %s: %w", ref, err)
	}
	if err := n.tracker.AddComment(ctx, ref, assignmentMessage(c.GitHub.Login, a)); err != nil {
		return fmt.Errorf("failed to comment on %s: %w", ref, err)
	}
	n.dm(ctx, c, assignmentDM(ref, a))
	return nil
}

// AnnouncePromotion celebrates a promotion in the apprentice channel.
func (n *Notifier) AnnouncePromotion(ctx context.Context, c *models.Contributor) {
	n.channel(ctx, n.cfg.Discord.ApprenticeChannelID, promotionMessage(c))
	n.dm(ctx, c, promotionMessage(c))
}

// AnnounceApprenticeIssue shares a good first issue with Apprentices.
func (n *Notifier) AnnounceApprenticeIssue(ctx context.Context, issue *models.IssueState) {
	n.channel(ctx, n.cfg.Discord.ApprenticeChannelID, apprenticeIssueMessage(issue))
}

// Escalation labels and comments on the issue and alerts the Knights.
func (n *Notifier) Escalation(ctx context.Context, ref models.IssueRef) error {
	if err := n.tracker.AddLabels(ctx, ref, n.cfg.Labels.Escalation); err != nil {
		return fmt.Errorf("failed to label %s: %w", ref, err)
	}
	if err := n.tracker.AddComment(ctx, ref, escalationMessage()); err != nil {
		return fmt.Errorf("failed to comment on %s: %w", ref, err)
	}
	n.channel(ctx, n.cfg.Discord.KnightsChannelID, knightsAlertMessage(ref))
	return nil
}

// HealthSummary posts the run report to the Knights channel.
func (n *Notifier) HealthSummary(ctx context.Context, report *models.HealthReport) {
	n.channel(ctx, n.cfg.Discord.KnightsChannelID, healthSummaryMessage(report))
}
