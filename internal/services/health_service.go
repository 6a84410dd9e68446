package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HealthService enforces assignment deadlines.
//
// Every auto-assignment is checked in this order: a failed issue fetch skips
// it; the override label marks it overridden once and suspends deadline
// checks; a closed issue frees it; a passed deadline removes it and emits a
// reassign signal; a deadline inside the warning window sends a reminder.
// Manual assignments are never checked.
type HealthService struct {
	contributors *repositories.ContributorRepository
	tracker      IssueTracker
	notifier     *Notifier
	cfg          *config.Config
	now          Clock
	log          *logrus.Entry
}

type HealthOption func(*HealthService)

// WithClock pins the time used for deadline checks.
func WithClock(now Clock) HealthOption {
	return func(s *HealthService) {
		s.now = now
	}
}

func NewHealthService(contributors *repositories.ContributorRepository, tracker IssueTracker, notifier *Notifier, cfg *config.Config, opts ...HealthOption) *HealthService {
	s := &HealthService{
		contributors: contributors,
		tracker:      tracker,
		notifier:     notifier,
		cfg:          cfg,
		now:          systemClock,
		log:          logger.Component("health"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run checks every contributor holding an auto-assignment, stages each
// changed record once and commits the whole run in one commit.
func (s *HealthService) Run(ctx context.Context) (*models.HealthReport, error) {
	report := &models.HealthReport{
		RunID:    uuid.New().String(),
		Reassign: []models.ReassignSignal{},
	}
	log := s.log.WithField("run_id", report.RunID)

	all, err := s.contributors.LoadAll(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load contributors: %w", err)
	}

	now := s.now()
	for _, c := range all {
		if len(c.Assignments) == 0 {
			continue
		}

		// Work on a copy; its share of the report only counts once staged.
		working := c.Clone()
		part := &models.HealthReport{TotalChecked: 1}
		if s.checkContributor(ctx, working, now, part) {
			if err := s.contributors.Stage(ctx, working); err != nil {
				log.WithError(err).WithField("contributor", c.GitHub.Login).Error("Failed to stage contributor, changes dropped")
				part.Discard()
			}
		}
		report.Merge(part)
	}

	message := fmt.Sprintf("Health check: freed %d, reassigned %d", report.Freed, report.Reassigned)
	committed, err := s.contributors.Commit(ctx, message)
	if err != nil {
		return report, fmt.Errorf("failed to commit health check: %w", err)
	}
	report.Committed = committed

	log.WithFields(logrus.Fields{
		"checked":    report.TotalChecked,
		"freed":      report.Freed,
		"reassigned": report.Reassigned,
		"overridden": report.Overridden,
		"warned":     report.Warned,
		"skipped":    report.Skipped,
		"committed":  committed,
	}).Info("Health check completed")
	return report, nil
}

// checkContributor applies the state machine to each auto-assignment of c
// and reports whether c changed.
func (s *HealthService) checkContributor(ctx context.Context, c *models.Contributor, now time.Time, report *models.HealthReport) bool {
	log := s.log.WithField("contributor", c.GitHub.Login)
	changed := false

	snapshot := append([]models.Assignment(nil), c.Assignments...)
	for _, a := range snapshot {
		entry := log.WithField("issue", a.IssueURL)

		ref, err := models.ParseIssueRef(a.IssueURL)
		if err != nil {
			entry.WithError(err).Warn("Skipping assignment with unreadable issue ref")
			report.Skipped++
			continue
		}

		issue, err := s.tracker.GetIssue(ctx, ref)
		if err != nil {
			entry.WithError(err).Warn("Failed to fetch issue, skipping this cycle")
			report.Skipped++
			continue
		}

		if issue.HasLabel(s.cfg.Labels.Override) {
			if c.MarkOverridden(a.IssueURL) {
				entry.Info("Knight override detected, deadline tracking paused")
				report.Overridden++
				changed = true
			}
			continue
		}

		if !issue.Open {
			c.RemoveAssignment(a.IssueURL)
			c.Stats.IssuesResolved++
			report.Freed++
			changed = true
			entry.Info("Issue closed, Sentinel freed")
			continue
		}

		remaining := validation.TimeRemaining(a.Deadline.Time, now)
		if remaining.Overdue {
			c.RemoveAssignment(a.IssueURL)
			c.Stats.IssuesStale++
			report.Reassigned++
			report.Reassign = append(report.Reassign, models.ReassignSignal{
				Issue:          a.IssueURL,
				PreviousHolder: c.GitHub.Login,
			})
			changed = true
			entry.WithField("overdue_by", (-remaining.Delta).Round(time.Minute).String()).Info("Deadline passed, issue released for reassignment")
			continue
		}

		if remaining.Hours <= s.cfg.Sentinel.WarningHours {
			if s.notifier == nil {
				continue
			}
			if err := s.notifier.DeadlineReminder(ctx, c, ref, remaining); err != nil {
				entry.WithError(err).Warn("Failed to send deadline reminder")
				continue
			}
			report.Warned++
			entry.WithField("hours_remaining", remaining.Hours).Info("Deadline reminder sent")
		}
	}

	if changed {
		c.RecomputeAssigned()
	}
	return changed
}
