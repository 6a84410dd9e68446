package services

import (
	"context"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/alimgiray/sentinel/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// HealthCycleResult is a health report plus what dispatch did with it.
type HealthCycleResult struct {
	Report     *models.HealthReport `json:"report"`
	Dispatched []DispatchResult     `json:"dispatched,omitempty"`
}

// HealthCycle runs a health check and acts on the report: reassigns
// released issues, posts the summary and records metrics. Nil dependencies
// switch the matching step off.
type HealthCycle struct {
	health   *HealthService
	dispatch *DispatchService
	notifier *Notifier
	metrics  *metrics.Manager
	now      Clock
	log      *logrus.Entry
}

func NewHealthCycle(health *HealthService, dispatch *DispatchService, notifier *Notifier, m *metrics.Manager) *HealthCycle {
	return &HealthCycle{
		health:   health,
		dispatch: dispatch,
		notifier: notifier,
		metrics:  m,
		now:      systemClock,
		log:      logger.Component("health-cycle"),
	}
}

func (c *HealthCycle) Run(ctx context.Context) (*HealthCycleResult, error) {
	report, err := c.health.Run(ctx)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ObserveFailedRun()
		}
		return &HealthCycleResult{Report: report}, err
	}

	result := &HealthCycleResult{Report: report}
	if c.dispatch != nil && len(report.Reassign) > 0 {
		result.Dispatched = c.dispatch.Dispatch(ctx, report)
	}
	if c.notifier != nil && (report.Changed() || report.Escalated > 0) {
		c.notifier.HealthSummary(ctx, report)
	}
	if c.metrics != nil {
		c.metrics.ObserveHealthRun(report, c.now())
	}

	c.log.WithFields(logrus.Fields{
		"run_id":     report.RunID,
		"dispatched": len(result.Dispatched),
		"escalated":  report.Escalated,
	}).Info("Health cycle finished")
	return result, nil
}
