package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// AssignmentService picks Sentinels for issues and records assignments.
type AssignmentService struct {
	contributors *repositories.ContributorRepository
	cfg          *config.Config

	mu  sync.Mutex
	rng *rand.Rand

	log *logrus.Entry
}

type AssignmentOption func(*AssignmentService)

// WithRand fixes the random source used to pick among eligible Sentinels.
func WithRand(rng *rand.Rand) AssignmentOption {
	return func(s *AssignmentService) {
		s.rng = rng
	}
}

func NewAssignmentService(contributors *repositories.ContributorRepository, cfg *config.Config, opts ...AssignmentOption) *AssignmentService {
	s := &AssignmentService{
		contributors: contributors,
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		log:          logger.Component("assignment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EligibleSentinels filters to unblocked Sentinels below maxConcurrent open
// assignments, leaving out the excluded logins.
func EligibleSentinels(contributors []*models.Contributor, maxConcurrent int, exclude ...string) []*models.Contributor {
	excluded := make(map[string]bool, len(exclude))
	for _, login := range exclude {
		excluded[strings.ToLower(login)] = true
	}

	var eligible []*models.Contributor
	for _, c := range contributors {
		if !c.IsSentinel() || c.Status.Blocked {
			continue
		}
		if c.Load() >= maxConcurrent {
			continue
		}
		if excluded[strings.ToLower(c.GitHub.Login)] {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// FindAvailableSentinel picks uniformly at random among eligible Sentinels.
// It returns models.ErrNoneAvailable when nobody qualifies.
func (s *AssignmentService) FindAvailableSentinel(ctx context.Context, maxConcurrent int, exclude ...string) (*models.Contributor, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = s.cfg.Sentinel.MaxConcurrent
	}

	all, err := s.contributors.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contributors: %w", err)
	}

	eligible := EligibleSentinels(all, maxConcurrent, exclude...)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%d contributors checked: %w", len(all), models.ErrNoneAvailable)
	}

	s.mu.Lock()
	picked := eligible[s.rng.Intn(len(eligible))]
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"sentinel": picked.GitHub.Login,
		"eligible": len(eligible),
	}).Info("Selected available Sentinel")
	return picked, nil
}

// Assign records a deadline-tracked assignment and persists it.
func (s *AssignmentService) Assign(ctx context.Context, login string, ref models.IssueRef, assignedAt time.Time) (*models.Assignment, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}

	assignment := models.Assignment{
		IssueURL:       ref.String(),
		AssignedAt:     models.NewTimestamp(assignedAt),
		Deadline:       models.NewTimestamp(validation.ComputeDeadline(assignedAt, s.cfg.Sentinel.DeadlineDays)),
		KnightOverride: false,
	}
	if err := c.AddAssignment(assignment); err != nil {
		return nil, err
	}

	if err := s.contributors.Save(ctx, c, fmt.Sprintf("Assign %s to %s", ref, c.GitHub.Login)); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sentinel": c.GitHub.Login,
		"issue":    ref.String(),
		"deadline": assignment.Deadline.Format(time.RFC3339),
	}).Info("Assigned issue")
	return &assignment, nil
}

// AssignManually records a Knight's assignment. It is never deadline-tracked.
func (s *AssignmentService) AssignManually(ctx context.Context, login string, ref models.IssueRef, assignedAt time.Time) (*models.ManualAssignment, error) {
	c, err := s.contributors.Load(ctx, login)
	if err != nil {
		return nil, err
	}

	assignment := models.ManualAssignment{
		IssueURL:   ref.String(),
		AssignedAt: models.NewTimestamp(assignedAt),
	}
	if err := c.AddManualAssignment(assignment); err != nil {
		return nil, err
	}

	if err := s.contributors.Save(ctx, c, fmt.Sprintf("Manually assign %s to %s", ref, c.GitHub.Login)); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"contributor": c.GitHub.Login,
		"issue":       ref.String(),
	}).Info("Recorded manual assignment")
	return &assignment, nil
}
