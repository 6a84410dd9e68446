package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// IdentityResponse is the result of scanning a PR for the author's reply.
type IdentityResponse struct {
	HasResponse bool   `json:"has_response"`
	ChatID      string `json:"discord_id,omitempty"`
	Wallet      string `json:"wallet_address,omitempty"`
	CommentID   int64  `json:"comment_id,omitempty"`
}

// OnboardResult describes a completed onboarding.
type OnboardResult struct {
	Contributor   *models.Contributor `json:"contributor"`
	RoleGranted   bool                `json:"role_granted"`
	SuccessPosted bool                `json:"success_posted"`
}

// OnboardingService turns a first-time PR author into an Apprentice.
type OnboardingService struct {
	contributors *ContributorService
	registry     *repositories.ContributorRepository
	tracker      IssueTracker
	chat         ChatPlatform
	notifier     *Notifier
	cfg          *config.Config
	log          *logrus.Entry
}

func NewOnboardingService(
	registry *repositories.ContributorRepository,
	contributors *ContributorService,
	tracker IssueTracker,
	chat ChatPlatform,
	notifier *Notifier,
	cfg *config.Config,
) *OnboardingService {
	return &OnboardingService{
		contributors: contributors,
		registry:     registry,
		tracker:      tracker,
		chat:         chat,
		notifier:     notifier,
		cfg:          cfg,
		log:          logger.Component("onboarding"),
	}
}

// AskForInfo posts the identity request on the PR.
func (s *OnboardingService) AskForInfo(ctx context.Context, pr models.IssueRef, author string) error {
	if err := s.notifier.AskForInfo(ctx, pr, author); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"pr": pr.String(), "author": author}).Info("Posted identity request")
	return nil
}

// CheckResponse walks the PR comments newest first and returns the first
// comment by author that carries a valid chat ID and wallet.
func (s *OnboardingService) CheckResponse(ctx context.Context, pr models.IssueRef, author string) (*IdentityResponse, error) {
	comments, err := s.tracker.ListPRComments(ctx, pr)
	if err != nil {
		return nil, err
	}

	rules := IdentityRules(s.cfg)
	for _, comment := range comments {
		if !strings.EqualFold(comment.Author, author) {
			continue
		}
		identity, ok := validation.ParseIdentityResponse(comment.Body, rules)
		if !ok {
			continue
		}
		return &IdentityResponse{
			HasResponse: true,
			ChatID:      identity.ChatID,
			Wallet:      identity.Wallet,
			CommentID:   comment.ID,
		}, nil
	}
	return &IdentityResponse{HasResponse: false}, nil
}

// Onboard reads the author's reply, grants the Apprentice role, creates the
// record and thanks the author. A missing reply is models.ErrNotFound.
func (s *OnboardingService) Onboard(ctx context.Context, prRef models.IssueRef, author string) (*OnboardResult, error) {
	log := s.log.WithFields(logrus.Fields{"pr": prRef.String(), "author": author})

	exists, err := s.registry.Exists(ctx, author)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("contributor %s: %w", author, models.ErrAlreadyExists)
	}

	response, err := s.CheckResponse(ctx, prRef, author)
	if err != nil {
		return nil, err
	}
	if !response.HasResponse {
		return nil, fmt.Errorf("no identity response from %s on %s: %w", author, prRef, models.ErrNotFound)
	}

	pr, err := s.tracker.GetPullRequest(ctx, prRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", prRef, err)
	}
	lines := validation.LinesChanged(pr.Additions, pr.Deletions, s.cfg.QualityGates.MaxLinesCounted)

	result := &OnboardResult{}
	if s.chat != nil && s.cfg.Discord.ApprenticeRoleID != "" {
		if err := s.chat.GrantRole(ctx, response.ChatID, s.cfg.Discord.ApprenticeRoleID); err != nil {
			log.WithError(err).Warn("Failed to grant Apprentice role, continuing unverified")
		} else {
			result.RoleGranted = true
		}
	}

	labels := append([]string{s.cfg.Labels.FirstTimeContributor}, pr.Labels...)
	c, err := s.contributors.Create(ctx, NewContributorInput{
		Login:        author,
		ChatID:       response.ChatID,
		ChatVerified: result.RoleGranted,
		Wallet:       response.Wallet,
		Repo:         prRef.RepoName(),
		PRNumber:     prRef.Number,
		LinesChanged: lines,
		Labels:       labels,
	})
	if err != nil {
		return nil, err
	}
	result.Contributor = c

	if err := s.notifier.OnboardingSuccess(ctx, prRef, author); err != nil {
		log.WithError(err).Warn("Failed to post onboarding success message")
	} else {
		result.SuccessPosted = true
	}

	log.WithField("role_granted", result.RoleGranted).Info("Onboarded new Apprentice")
	return result, nil
}
