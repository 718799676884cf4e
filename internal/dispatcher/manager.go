package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"jobgraph/internal/config"
	"jobgraph/internal/logging"
	"jobgraph/internal/transport"
)

// Manager runs one independent worker per configured dispatcher job.
type Manager struct {
	workers []*Worker
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a worker for every job in cfg.Dispatcher.Jobs.
func NewManager(cfg *config.Config, store Store, dialer *transport.Dialer, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("dispatcher manager requires config")
	}
	if len(cfg.Dispatcher.Jobs) == 0 {
		return nil, errors.New("no dispatcher jobs configured")
	}
	m := &Manager{logger: logging.NewComponentLogger(logger, "dispatcher")}
	for _, dispatchJob := range cfg.Dispatcher.Jobs {
		w, err := NewWorker(cfg, dispatchJob, store, dialer, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", dispatchJob.Name, err)
		}
		m.workers = append(m.workers, w)
	}
	return m, nil
}

// Workers returns the managed workers.
func (m *Manager) Workers() []*Worker {
	return append([]*Worker(nil), m.workers...)
}

// Start acquires every worker's EntryPoint lock and starts the workers. If
// any lock is held elsewhere nothing is started.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("dispatcher already running")
	}

	acquired := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		if err := w.acquire(); err != nil {
			for _, held := range acquired {
				held.release()
			}
			return err
		}
		acquired = append(acquired, w)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(m.workers))
	for _, w := range m.workers {
		go func(w *Worker) {
			defer m.wg.Done()
			defer w.release()
			w.serve(runCtx)
		}(w)
	}
	m.logger.Info("dispatcher started",
		logging.Int("workers", len(m.workers)),
		logging.String(logging.FieldEventType, "dispatcher_start"),
	)
	return nil
}

// Stop cancels the workers and waits for them to finish their current job.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("dispatcher stopped", logging.String(logging.FieldEventType, "dispatcher_stop"))
}

// Status returns a snapshot of every worker.
func (m *Manager) Status() []WorkerStatus {
	out := make([]WorkerStatus, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.Status())
	}
	return out
}
