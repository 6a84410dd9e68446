package services

import (
	"context"
	"fmt"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// PromotionCheck explains a promotion decision.
type PromotionCheck struct {
	Login           string      `json:"login"`
	Eligible        bool        `json:"eligible"`
	CurrentRole     models.Role `json:"current_role"`
	Blocked         bool        `json:"blocked"`
	TotalPRs        int         `json:"total_prs"`
	AvgLinesChanged int         `json:"avg_lines_changed"`
	Threshold       int         `json:"threshold"`
	MinAvgLines     int         `json:"min_avg_lines"`
	Reasons         []string    `json:"reasons,omitempty"`
}

// PromotionService decides and applies Apprentice to Sentinel promotions.
type PromotionService struct {
	contributors *repositories.ContributorRepository
	chat         ChatPlatform
	cfg          *config.Config
	log          *logrus.Entry
}

func NewPromotionService(contributors *repositories.ContributorRepository, chat ChatPlatform, cfg *config.Config) *PromotionService {
	return &PromotionService{
		contributors: contributors,
		chat:         chat,
		cfg:          cfg,
		log:          logger.Component("promotion"),
	}
}

// IsEligible reports whether c may be promoted. It has no side effects.
func (s *PromotionService) IsEligible(c *models.Contributor) bool {
	return c.Status.CurrentRole == models.RoleApprentice &&
		!c.Status.Blocked &&
		c.Stats.TotalPRs >= s.cfg.Promotion.Threshold &&
		c.Stats.AvgLinesChanged >= s.cfg.Promotion.MinAvgLines
}

// Evaluate builds the explained decision for c.
func (s *PromotionService) Evaluate(c *models.Contributor) *PromotionCheck {
	check := &PromotionCheck{
		Login:           c.GitHub.Login,
		Eligible:        s.IsEligible(c),
		CurrentRole:     c.Status.CurrentRole,
		Blocked:         c.Status.Blocked,
		TotalPRs:        c.Stats.TotalPRs,
		AvgLinesChanged: c.Stats.AvgLinesChanged,
		Threshold:       s.cfg.Promotion.Threshold,
		MinAvgLines:     s.cfg.Promotion.MinAvgLines,
	}
	if c.Status.CurrentRole != models.RoleApprentice {
		check.Reasons = append(check.Reasons, fmt.Sprintf("role is %s", c.Status.CurrentRole))
	}
	if c.Status.Blocked {
		check.Reasons = append(check.Reasons, "contributor is blocked")
	}
	if c.Stats.TotalPRs < s.cfg.Promotion.Threshold {
		check.Reasons = append(check.Reasons, fmt.Sprintf("needs %d more qualifying PRs", s.cfg.Promotion.Threshold-c.Stats.TotalPRs))
	}
	if c.Stats.AvgLinesChanged < s.cfg.Promotion.MinAvgLines {
		check.Reasons = append(check.Reasons, fmt.Sprintf("average lines %d below %d", c.Stats.AvgLinesChanged, s.cfg.Promotion.MinAvgLines))
	}
	return check
}

// Check loads login and evaluates it.
func (s *PromotionService) Check(ctx context.Context, login string) (*PromotionCheck, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(c), nil
}

// Promote re-checks eligibility and makes login a Sentinel.
func (s *PromotionService) Promote(ctx context.Context, login string) (*models.Contributor, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}
	if c.IsSentinel() {
		return c, fmt.Errorf("%s is already a Sentinel: %w", c.GitHub.Login, models.ErrConflict)
	}
	if !s.IsEligible(c) {
		check := s.Evaluate(c)
		return c, fmt.Errorf("%s: %v: %w", c.GitHub.Login, check.Reasons, models.ErrNotEligible)
	}

	if err := c.PromoteToSentinel(); err != nil {
		return c, err
	}
	if err := s.contributors.Save(ctx, c, fmt.Sprintf("Promote %s to Sentinel", c.GitHub.Login)); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"contributor": c.GitHub.Login,
		"total_prs":   c.Stats.TotalPRs,
	}).Info("Promoted to Sentinel")
	return c, nil
}

// SwapChatRoles grants the Sentinel role and removes the Apprentice role.
func (s *PromotionService) SwapChatRoles(ctx context.Context, c *models.Contributor) error {
	if s.chat == nil {
		return fmt.Errorf("%w: chat platform is not configured", models.ErrValidation)
	}
	if c.Discord.UserID == "" {
		return fmt.Errorf("%w: %s has no chat user id", models.ErrValidation, c.GitHub.Login)
	}
	if err := s.chat.GrantRole(ctx, c.Discord.UserID, s.cfg.Discord.SentinelRoleID); err != nil {
		return fmt.Errorf("failed to grant Sentinel role: %w", err)
	}
	if err := s.chat.RevokeRole(ctx, c.Discord.UserID, s.cfg.Discord.ApprenticeRoleID); err != nil {
		return fmt.Errorf("failed to revoke Apprentice role: %w", err)
	}
	return nil
}
