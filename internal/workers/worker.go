package workers

import (
	"context"
	"sync"
	"time"
)

// Worker is a long-running background loop owned by a WorkerManager.
type Worker interface {
	// Start blocks until ctx is done or Stop is called.
	Start(ctx context.Context) error
	Stop() error
	GetWorkerID() string
	Status() WorkerStatus
}

// WorkerStatus is a snapshot of a worker, served by the status API.
type WorkerStatus struct {
	ID        string     `json:"id"`
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// BaseWorker tracks the lifecycle and run history shared by all workers.
type BaseWorker struct {
	WorkerID string
	StopChan chan struct{}

	mu       sync.Mutex
	status   WorkerStatus
	stopOnce sync.Once
}

func NewBaseWorker(workerID string) *BaseWorker {
	return &BaseWorker{
		WorkerID: workerID,
		StopChan: make(chan struct{}),
		status:   WorkerStatus{ID: workerID},
	}
}

func (w *BaseWorker) GetWorkerID() string {
	return w.WorkerID
}

func (w *BaseWorker) setRunning(running bool) {
	w.mu.Lock()
	w.status.Running = running
	w.mu.Unlock()
}

// recordRun stores the outcome of one unit of work finished at.
func (w *BaseWorker) recordRun(at time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Runs++
	w.status.LastRun = &at
	w.status.LastError = ""
	if err != nil {
		w.status.Failures++
		w.status.LastError = err.Error()
	}
}

// Stop signals the worker loop to return. Calling it again is a no-op.
func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		close(w.StopChan)
	})
	return nil
}

func (w *BaseWorker) IsRunning() bool {
	return w.Status().Running
}

func (w *BaseWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	if s.LastRun != nil {
		at := *s.LastRun
		s.LastRun = &at
	}
	return s
}
