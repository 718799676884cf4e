package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"jobgraph/internal/job"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
)

// statusGuard writes status updates for one job instance and refuses any
// update that would move the status backwards or past a terminal value.
type statusGuard struct {
	w          *Worker
	instanceID string
	current    job.Status
}

func newStatusGuard(w *Worker, instanceID string, current job.Status) *statusGuard {
	return &statusGuard{w: w, instanceID: instanceID, current: current}
}

func (g *statusGuard) transition(ctx context.Context, next job.Status, errText *string) error {
	if !g.current.CanTransition(next) {
		return fmt.Errorf("refusing status change %s -> %s", g.current, next)
	}
	op, err := ops.UpdateStatus(g.instanceID, next, errText)
	if err != nil {
		return err
	}
	if next.Terminal() {
		// The terminal write survives cancellation of the worker.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), terminalUpdateTimeout)
		defer cancel()
	}
	if err := g.w.store.Execute(ctx, op, nil); err != nil {
		return err
	}
	g.current = next
	return nil
}

// fail writes Failed with a readable message derived from cause and returns
// the resulting status.
func (g *statusGuard) fail(ctx context.Context, logger *slog.Logger, cause error) job.Status {
	message := services.Details(cause).Message
	if message == "" {
		message = cause.Error()
	}
	if err := g.transition(ctx, job.StatusFailed, &message); err != nil {
		logging.ErrorWithContext(logger, "failed to mark job failed", "job_status_write_failed",
			logging.Error(err),
			logging.String("cause", cause.Error()),
			logging.String(logging.FieldErrorHint, "set the job status manually in the store"),
		)
		return g.current
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(cause),
		logging.ErrorKind(cause),
		logging.String(logging.FieldErrorHint, "inspect the command output and the job inputs"),
	)
	return job.StatusFailed
}
