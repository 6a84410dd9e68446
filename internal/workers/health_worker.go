package workers

import (
	"context"
	"time"

	"github.com/alimgiray/sentinel/internal/services"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// HealthCycleRunner runs one health check cycle.
type HealthCycleRunner interface {
	Run(ctx context.Context) (*services.HealthCycleResult, error)
}

// HealthCheckWorker runs the health cycle on a fixed interval. Runs never
// overlap: the next tick is only read after the current run returns.
type HealthCheckWorker struct {
	*BaseWorker
	cycle    HealthCycleRunner
	interval time.Duration
	log      *logrus.Entry
}

func NewHealthCheckWorker(workerID string, cycle HealthCycleRunner, interval time.Duration) *HealthCheckWorker {
	return &HealthCheckWorker{
		BaseWorker: NewBaseWorker(workerID),
		cycle:      cycle,
		interval:   interval,
		log:        logger.Component("worker").WithField("worker_id", workerID),
	}
}

// Start runs a cycle immediately and then once per interval
func (w *HealthCheckWorker) Start(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)
	w.log.WithField("interval", w.interval.String()).Info("Health check worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Health check worker stopping due to context cancellation")
			return ctx.Err()
		case <-w.StopChan:
			w.log.Info("Health check worker stopping")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *HealthCheckWorker) runOnce(ctx context.Context) {
	result, err := w.cycle.Run(ctx)
	w.recordRun(time.Now().UTC(), err)
	if err != nil {
		w.log.WithError(err).Error("Health check cycle failed")
		return
	}
	w.log.WithFields(logrus.Fields{
		"run_id":     result.Report.RunID,
		"reassigned": result.Report.Reassigned,
		"freed":      result.Report.Freed,
	}).Info("Health check cycle completed")
}
