package workers

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// WorkerManager owns the background workers of the serve command. All of
// them share one context derived from the parent passed at construction.
type WorkerManager struct {
	workers []Worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Entry
}

func NewWorkerManager(parent context.Context, workers ...Worker) *WorkerManager {
	ctx, cancel := context.WithCancel(parent)
	return &WorkerManager{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.Component("workers"),
	}
}

// StartAll launches each worker on its own goroutine and returns at once.
func (wm *WorkerManager) StartAll() {
	for _, w := range wm.workers {
		wm.wg.Add(1)
		go wm.supervise(w)
	}
	wm.log.WithField("count", len(wm.workers)).Info("Started workers")
}

func (wm *WorkerManager) supervise(w Worker) {
	defer wm.wg.Done()
	err := w.Start(wm.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		wm.log.WithError(err).WithField("worker_id", w.GetWorkerID()).Error("Worker exited with error")
	}
}

// StopAll cancels the shared context, stops every worker and blocks until
// their goroutines have returned.
func (wm *WorkerManager) StopAll() {
	wm.cancel()
	for _, w := range wm.workers {
		if err := w.Stop(); err != nil {
			wm.log.WithError(err).WithField("worker_id", w.GetWorkerID()).Warn("Failed to stop worker")
		}
	}
	wm.wg.Wait()
	wm.log.WithField("count", len(wm.workers)).Info("Workers stopped")
}

// GetWorkerStatus returns a snapshot per worker, ordered by id.
func (wm *WorkerManager) GetWorkerStatus() []WorkerStatus {
	statuses := make([]WorkerStatus, 0, len(wm.workers))
	for _, w := range wm.workers {
		statuses = append(statuses, w.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
