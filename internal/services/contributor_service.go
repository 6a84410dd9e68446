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

// NewContributorInput is everything needed to create a record.
type NewContributorInput struct {
	Login        string
	ChatID       string
	ChatVerified bool
	Wallet       string
	Repo         string
	PRNumber     int
	LinesChanged int
	Labels       []string
}

// ContributorService owns record creation and PR statistics.
type ContributorService struct {
	contributors *repositories.ContributorRepository
	cfg          *config.Config
	log          *logrus.Entry
}

func NewContributorService(contributors *repositories.ContributorRepository, cfg *config.Config) *ContributorService {
	return &ContributorService{
		contributors: contributors,
		cfg:          cfg,
		log:          logger.Component("contributors"),
	}
}

// Create validates the identity and stores a new Apprentice whose history
// starts with the onboarding PR.
func (s *ContributorService) Create(ctx context.Context, in NewContributorInput) (*models.Contributor, error) {
	rules := IdentityRules(s.cfg)
	var problems []string
	if strings.TrimSpace(in.Login) == "" {
		problems = append(problems, "login is required")
	}
	if !validation.ValidateChatID(in.ChatID, rules) {
		problems = append(problems, fmt.Sprintf("invalid chat id %q", in.ChatID))
	}
	if !validation.ValidateWalletAddress(in.Wallet, rules) {
		problems = append(problems, fmt.Sprintf("invalid wallet address %q", in.Wallet))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, "; "))
	}

	var first models.PRRecord
	if in.Repo != "" && in.PRNumber > 0 {
		first = models.PRRecord{
			Repo:         in.Repo,
			PRNumber:     in.PRNumber,
			LinesChanged: in.LinesChanged,
			Labels:       in.Labels,
		}
	}

	c := models.NewContributor(in.Login, in.ChatID, in.ChatVerified, in.Wallet, first)
	c.SchemaVersion = max(s.cfg.Registry.SchemaVersion, models.CurrentSchemaVersion)
	if err := s.contributors.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.WithField("contributor", c.GitHub.Login).Info("Created contributor record")
	return c, nil
}

// UpdatePRStats appends pr to the history of login. A PR already in the
// history is a models.ErrConflict and leaves the record untouched.
func (s *ContributorService) UpdatePRStats(ctx context.Context, login string, pr models.PRRecord, countsTowardPromotion bool) (*models.Contributor, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}
	if err := c.AddPR(pr, countsTowardPromotion); err != nil {
		return c, err
	}

	message := fmt.Sprintf("Update PR stats for %s: %s#%d", c.GitHub.Login, pr.Repo, pr.PRNumber)
	if err := s.contributors.Save(ctx, c, message); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"contributor": c.GitHub.Login,
		"pr":          fmt.Sprintf("%s#%d", pr.Repo, pr.PRNumber),
		"counted":     countsTowardPromotion,
		"total_prs":   c.Stats.TotalPRs,
	}).Info("Updated PR stats")
	return c, nil
}

// PRStatsResult is the outcome of recording a merged pull request.
type PRStatsResult struct {
	Contributor *models.Contributor `json:"contributor"`
	Counted     bool                `json:"counts_toward_promotion"`
	Lines       int                 `json:"lines_changed"`
}

// RecordMergedPR applies the quality gates to pr and records it for its author.
func (s *ContributorService) RecordMergedPR(ctx context.Context, pr *models.PullRequest) (*PRStatsResult, error) {
	if !pr.Merged {
		return nil, fmt.Errorf("%w: %s#%d is not merged", models.ErrValidation, pr.Repo, pr.Number)
	}
	lines := validation.LinesChanged(pr.Additions, pr.Deletions, s.cfg.QualityGates.MaxLinesCounted)
	counted := validation.ShouldCountPRTowardPromotion(pr.Labels, lines, pr.BaseBranch, QualityGates(s.cfg))

	c, err := s.UpdatePRStats(ctx, pr.Author, models.PRRecord{
		Repo:         pr.Repo,
		PRNumber:     pr.Number,
		LinesChanged: lines,
		Labels:       pr.Labels,
	}, counted)
	if err != nil {
		return nil, err
	}
	return &PRStatsResult{Contributor: c, Counted: counted, Lines: lines}, nil
}

// SetBlocked blocks or unblocks login. Setting the current value is a
// models.ErrConflict.
func (s *ContributorService) SetBlocked(ctx context.Context, login string, blocked bool) (*models.Contributor, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}
	if c.Status.Blocked == blocked {
		return c, fmt.Errorf("%s blocked=%t already: %w", c.GitHub.Login, blocked, models.ErrConflict)
	}

	c.Status.Blocked = blocked
	verb := "Block"
	if !blocked {
		verb = "Unblock"
	}
	if err := s.contributors.Save(ctx, c, fmt.Sprintf("%s %s", verb, c.GitHub.Login)); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"contributor": c.GitHub.Login, "blocked": blocked}).Info("Updated block status")
	return c, nil
}
