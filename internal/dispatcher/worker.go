package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"jobgraph/internal/config"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
	"jobgraph/internal/textutil"
	"jobgraph/internal/transport"
)

// Store executes operations against the remote store.
type Store interface {
	Execute(ctx context.Context, op ops.Operation, out any) error
}

// Option configures a Worker.
type Option func(*Worker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(w *Worker) {
		if exec != nil {
			w.exec = exec
		}
	}
}

// WithFetcher injects a custom artifact fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(w *Worker) {
		if fetcher != nil {
			w.fetcher = fetcher
		}
	}
}

// WithReconnectBackoff overrides the configured reconnect backoff.
func WithReconnectBackoff(initial, maxInterval time.Duration) Option {
	return func(w *Worker) {
		if initial > 0 {
			w.reconnect = initial
		}
		if maxInterval >= w.reconnect {
			w.maxReconnect = maxInterval
		}
	}
}

// Worker dispatches jobs requested on one EntryPoint.
type Worker struct {
	cfg    *config.Config
	job    config.DispatchJob
	store  Store
	dialer *transport.Dialer
	logger *slog.Logger

	exec         Executor
	fetcher      Fetcher
	reconnect    time.Duration
	maxReconnect time.Duration
	lock         *flock.Flock

	state     atomic.Int32
	processed atomic.Int64
	failed    atomic.Int64
	sessions  atomic.Int64

	mu      sync.Mutex
	lastErr error
}

// NewWorker constructs a worker for the dispatcher job bound to one
// EntryPoint.
func NewWorker(cfg *config.Config, dispatchJob config.DispatchJob, store Store, dialer *transport.Dialer, logger *slog.Logger, opts ...Option) (*Worker, error) {
	if cfg == nil || store == nil || dialer == nil {
		return nil, errors.New("dispatcher worker requires config, store, and dialer")
	}
	if strings.TrimSpace(dispatchJob.EntryPoint) == "" {
		return nil, services.Wrap(services.ErrMissingTemplateID, "dispatcher", "new worker", "entry point identifier is required", nil)
	}
	name := dispatchJob.Name
	if name == "" {
		name = dispatchJob.EntryPoint
	}
	w := &Worker{
		cfg:    cfg,
		job:    dispatchJob,
		store:  store,
		dialer: dialer,
		logger: logging.NewComponentLogger(logger, "dispatcher").With(
			logging.String("job", name),
			logging.String(logging.FieldEntryPoint, dispatchJob.EntryPoint),
		),
		exec:         commandExecutor{},
		fetcher:      URLFetcher{Client: http.DefaultClient},
		reconnect:    time.Duration(cfg.Dispatcher.ReconnectInterval) * time.Second,
		maxReconnect: time.Duration(cfg.Dispatcher.MaxReconnectInterval) * time.Second,
		lock:         flock.New(filepath.Join(cfg.Paths.StateDir, "dispatch-"+textutil.PathSegment(dispatchJob.EntryPoint, "entrypoint")+".lock")),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.reconnect <= 0 {
		w.reconnect = time.Second
	}
	if w.maxReconnect < w.reconnect {
		w.maxReconnect = w.reconnect
	}
	return w, nil
}

// Name returns the configured job name.
func (w *Worker) Name() string {
	if w.job.Name != "" {
		return w.job.Name
	}
	return w.job.EntryPoint
}

// State returns the current channel state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(next State) {
	prev := State(w.state.Swap(int32(next)))
	if prev != next {
		w.logger.Debug("dispatcher state changed",
			logging.String(logging.FieldState, next.String()),
			logging.String("previous_state", prev.String()),
			logging.String(logging.FieldEventType, "dispatcher_state"),
		)
	}
}

// Run acquires the EntryPoint lock and dispatches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	w.serve(ctx)
	return nil
}

func (w *Worker) acquire() error {
	if err := os.MkdirAll(filepath.Dir(w.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another dispatcher is already serving entry point %s (lock %s)", w.job.EntryPoint, w.lock.Path())
	}
	return nil
}

func (w *Worker) release() {
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release dispatcher lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatcher_lock_release_failed"),
		)
	}
}

// serve is the supervised subscription loop.
func (w *Worker) serve(ctx context.Context) {
	defer w.setState(StateStopped)
	backoff := w.reconnect
	for {
		reachedListening, err := w.session(ctx)
		if ctx.Err() != nil {
			return
		}
		w.setState(StateDisconnected)
		w.setLastError(err)
		if reachedListening {
			backoff = w.reconnect
		}
		logging.WarnWithContext(w.logger, "subscription lost; resubscribing", "dispatcher_resubscribe",
			logging.Error(err),
			logging.Duration("retry_in", backoff),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check that the remote store is reachable"),
			logging.String(logging.FieldImpact, "job requests are not picked up until the channel is restored"),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.maxReconnect {
			backoff = w.maxReconnect
		}
	}
}

// session runs one channel lifetime and reports whether it got as far as
// listening for events.
func (w *Worker) session(ctx context.Context) (bool, error) {
	w.setState(StateDisconnected)
	conn, err := w.dialer.Dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	w.setState(StateAwaitAck)

	if err := conn.AwaitAck(ctx); err != nil {
		return false, err
	}
	op, err := ops.SubscribeRequests(w.job.EntryPoint)
	if err != nil {
		return false, err
	}
	id, err := conn.Start(op)
	if err != nil {
		return false, err
	}
	w.sessions.Add(1)
	w.setState(StateListening)
	w.logger.Info("listening for job requests",
		logging.String(logging.FieldCorrelationID, id),
		logging.String(logging.FieldEventType, "dispatcher_listening"),
	)

	for {
		event, err := conn.Next(ctx)
		if err != nil {
			return true, err
		}
		var payload ops.RequestEvent
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.Identifier == "" {
			logging.WarnWithContext(w.logger, "ignoring job request without identifier", "dispatcher_bad_event",
				logging.String("payload", string(event.Data)),
				logging.String(logging.FieldImpact, "the request is not processed"),
			)
			continue
		}
		w.setState(StateProcessing)
		outcome := w.ProcessJob(ctx, payload.Identifier)
		w.recordOutcome(outcome)
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		w.setState(StateListening)
	}
}

func (w *Worker) recordOutcome(outcome Outcome) {
	switch {
	case outcome.Skipped:
	case outcome.Status.Terminal() && outcome.Err == nil:
		w.processed.Add(1)
	case outcome.Err != nil:
		w.failed.Add(1)
		w.setLastError(outcome.Err)
	}
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
}

// WorkerStatus is a snapshot of a worker's counters.
type WorkerStatus struct {
	Name       string
	EntryPoint string
	State      State
	Sessions   int64
	Processed  int64
	Failed     int64
	LastError  string
}

// Status returns a snapshot of the worker.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	lastErr := ""
	if w.lastErr != nil {
		lastErr = w.lastErr.Error()
	}
	w.mu.Unlock()
	return WorkerStatus{
		Name:       w.Name(),
		EntryPoint: w.job.EntryPoint,
		State:      w.State(),
		Sessions:   w.sessions.Load(),
		Processed:  w.processed.Load(),
		Failed:     w.failed.Load(),
		LastError:  lastErr,
	}
}
