package services

import (
	"context"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Route is where a newly labelled issue goes.
type Route string

const (
	RouteApprentices Route = "apprentices"
	RouteSkip        Route = "skip"
	RouteSentinel    Route = "sentinel"
)

// RouteDecision is the result of routing one issue.
type RouteDecision struct {
	Issue    string          `json:"issue,omitempty"`
	Route    Route           `json:"route"`
	Dispatch *DispatchResult `json:"dispatch,omitempty"`
}

// RoutingService sends new issues to Apprentices, a Sentinel or nobody.
type RoutingService struct {
	tracker  IssueTracker
	notifier *Notifier
	cfg      *config.Config
	log      *logrus.Entry
}

func NewRoutingService(tracker IssueTracker, notifier *Notifier, cfg *config.Config) *RoutingService {
	return &RoutingService{
		tracker:  tracker,
		notifier: notifier,
		cfg:      cfg,
		log:      logger.Component("routing"),
	}
}

func normalizeLabel(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}

func hasLabel(labels []string, want string) bool {
	want = normalizeLabel(want)
	for _, label := range labels {
		if normalizeLabel(label) == want {
			return true
		}
	}
	return false
}

// Route decides from labels alone. Triage beats good-first-issue.
func (s *RoutingService) Route(labels []string) Route {
	if hasLabel(labels, s.cfg.Labels.TriageNeeded) {
		return RouteSkip
	}
	if hasLabel(labels, s.cfg.Labels.GoodFirstIssue) {
		return RouteApprentices
	}
	return RouteSentinel
}

// RouteIssue fetches the issue, routes it and, when announce is set,
// announces apprentice issues. Sentinel issues go to dispatch when given.
func (s *RoutingService) RouteIssue(ctx context.Context, ref models.IssueRef, announce bool, dispatch *DispatchService) (*RouteDecision, error) {
	issue, err := s.tracker.GetIssue(ctx, ref)
	if err != nil {
		return nil, err
	}

	decision := &RouteDecision{Issue: ref.String(), Route: s.Route(issue.Labels)}
	s.log.WithFields(logrus.Fields{"issue": ref.String(), "route": decision.Route}).Info("Routed issue")

	switch decision.Route {
	case RouteApprentices:
		if announce {
			s.notifier.AnnounceApprenticeIssue(ctx, issue)
		}
	case RouteSentinel:
		if dispatch != nil {
			result, err := dispatch.AssignIssue(ctx, ref)
			if err != nil {
				return decision, err
			}
			decision.Dispatch = result
		}
	}
	return decision, nil
}

// Escalate hands an issue to the Knights.
func (s *RoutingService) Escalate(ctx context.Context, ref models.IssueRef) error {
	if err := s.notifier.Escalation(ctx, ref); err != nil {
		return err
	}
	s.log.WithField("issue", ref.String()).Info("Escalated issue to Knights")
	return nil
}
