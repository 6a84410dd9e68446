package services

import (
	"context"
	"errors"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// DispatchResult records where one issue went.
type DispatchResult struct {
	Issue     string            `json:"issue"`
	Sentinel  string            `json:"sentinel,omitempty"`
	Escalated bool              `json:"escalated"`
	Deadline  *models.Timestamp `json:"deadline,omitempty"`
}

// DispatchService hands issues to available Sentinels and escalates to the
// Knights when nobody is free.
type DispatchService struct {
	assignments *AssignmentService
	notifier    *Notifier
	cfg         *config.Config
	now         Clock
	log         *logrus.Entry
}

func NewDispatchService(assignments *AssignmentService, notifier *Notifier, cfg *config.Config, now Clock) *DispatchService {
	if now == nil {
		now = systemClock
	}
	return &DispatchService{
		assignments: assignments,
		notifier:    notifier,
		cfg:         cfg,
		now:         now,
		log:         logger.Component("dispatch"),
	}
}

// AssignIssue picks a Sentinel outside exclude and assigns ref. With nobody
// available the issue is escalated.
func (s *DispatchService) AssignIssue(ctx context.Context, ref models.IssueRef, exclude ...string) (*DispatchResult, error) {
	result := &DispatchResult{Issue: ref.String()}
	log := s.log.WithField("issue", ref.String())

	sentinel, err := s.assignments.FindAvailableSentinel(ctx, s.cfg.Sentinel.MaxConcurrent, exclude...)
	if errors.Is(err, models.ErrNoneAvailable) {
		result.Escalated = true
		if err := s.notifier.Escalation(ctx, ref); err != nil {
			return result, err
		}
		log.Info("No Sentinel available, escalated")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	assignment, err := s.assignments.Assign(ctx, sentinel.GitHub.Login, ref, s.now())
	if err != nil {
		return nil, err
	}
	result.Sentinel = sentinel.GitHub.Login
	result.Deadline = &assignment.Deadline

	// The record is already committed; tracker failures from here on are
	// reported but do not undo the assignment.
	if err := s.notifier.AnnounceAssignment(ctx, sentinel, ref, *assignment); err != nil {
		log.WithError(err).Warn("Assignment recorded but tracker update failed")
	}
	return result, nil
}

// Dispatch reassigns every issue the health check released and counts
// escalations on the report.
func (s *DispatchService) Dispatch(ctx context.Context, report *models.HealthReport) []DispatchResult {
	results := make([]DispatchResult, 0, len(report.Reassign))
	for _, signal := range report.Reassign {
		log := s.log.WithField("issue", signal.Issue)

		ref, err := models.ParseIssueRef(signal.Issue)
		if err != nil {
			log.WithError(err).Warn("Cannot reassign unreadable issue ref")
			continue
		}

		result, err := s.AssignIssue(ctx, ref, signal.PreviousHolder)
		if err != nil {
			log.WithError(err).Error("Failed to reassign issue")
			continue
		}
		if result.Escalated {
			report.Escalated++
		}
		results = append(results, *result)
	}
	return results
}
