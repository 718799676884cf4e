package requester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobgraph/internal/config"
	"jobgraph/internal/job"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
)

// Store executes operations against the remote store.
type Store interface {
	Execute(ctx context.Context, op ops.Operation, out any) error
}

// Option configures a Requester.
type Option func(*Requester)

// WithPolling overrides the configured poll cadence.
func WithPolling(initial, maxInterval time.Duration, multiplier float64) Option {
	return func(r *Requester) {
		if initial > 0 {
			r.interval = initial
		}
		if maxInterval > 0 {
			r.maxInterval = maxInterval
		}
		if multiplier >= 1 {
			r.multiplier = multiplier
		}
	}
}

// WithDeadline overrides the configured wait deadline.
func WithDeadline(deadline time.Duration) Option {
	return func(r *Requester) {
		if deadline > 0 {
			r.deadline = deadline
		}
	}
}

// Requester submits job requests and polls their status.
type Requester struct {
	store  Store
	logger *slog.Logger

	interval    time.Duration
	maxInterval time.Duration
	multiplier  float64
	deadline    time.Duration
}

// Request binds inputs to a template.
type Request struct {
	Template job.Template
	Nodes    []job.NodeBinding
	Values   []job.ValueBinding
}

// Result describes the last observed state of a job instance.
type Result struct {
	InstanceID string
	Status     job.Status
	// RawStatus is the status string as the store reported it.
	RawStatus string
	Error     string
	Artifact  *job.Artifact
	Polls     int
	Elapsed   time.Duration
}

// New constructs a requester from the [requester] config section.
func New(cfg *config.Config, store Store, logger *slog.Logger, opts ...Option) (*Requester, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("requester requires config and store")
	}
	r := &Requester{
		store:       store,
		logger:      logging.NewComponentLogger(logger, "requester"),
		interval:    time.Duration(cfg.Requester.PollInterval) * time.Second,
		maxInterval: time.Duration(cfg.Requester.PollMaxInterval) * time.Second,
		multiplier:  cfg.Requester.PollMultiplier,
		deadline:    time.Duration(cfg.Requester.Deadline) * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = time.Second
	}
	if r.maxInterval < r.interval {
		r.maxInterval = r.interval
	}
	if r.multiplier < 1 {
		r.multiplier = 1
	}
	if r.deadline <= 0 {
		return nil, services.Wrap(services.ErrValidation, "requester", "new", "a positive deadline is required", nil)
	}
	return r, nil
}

// Submit validates req locally and creates the job instance. It returns the
// new instance identifier.
func (r *Requester) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.Template.ValidateValues(req.Values); err != nil {
		return "", err
	}
	op, err := ops.RequestControlAction(req.Template, req.Nodes, req.Values)
	if err != nil {
		return "", err
	}
	var created ops.Created
	if err := r.store.Execute(ctx, op, &created); err != nil {
		return "", fmt.Errorf("request job: %w", err)
	}
	if created.Identifier == "" {
		return "", services.Wrap(services.ErrProtocolViolation, "requester", "request job", "reply carried no job identifier", nil)
	}
	logging.WithContext(services.WithJobID(ctx, created.Identifier), r.logger).Info("job requested",
		logging.String(logging.FieldEntryPoint, req.Template.EntryPointID),
		logging.String("template_id", req.Template.ID),
		logging.String(logging.FieldStatus, job.ParseStatus(created.ActionStatus).String()),
		logging.String(logging.FieldEventType, "job_requested"),
	)
	return created.Identifier, nil
}

// Status reads the current status of a job instance once.
func (r *Requester) Status(ctx context.Context, instanceID string) (Result, error) {
	var node ops.InstanceNode
	if err := r.store.Execute(ctx, ops.QueryStatus(instanceID), &node); err != nil {
		return Result{InstanceID: instanceID}, fmt.Errorf("read job status: %w", err)
	}
	inst := node.Instance()
	return Result{
		InstanceID: instanceID,
		Status:     inst.Status,
		RawStatus:  node.ActionStatus,
		Error:      inst.Error,
		Artifact:   inst.Result,
	}, nil
}

// Wait polls the job until its status is Completed, Failed or unrecognized.
// Transient read failures are retried. When the deadline passes first the
// last observed result is returned with ErrTimeout.
func (r *Requester) Wait(ctx context.Context, instanceID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()
	logger := logging.WithContext(services.WithJobID(ctx, instanceID), r.logger)

	start := time.Now()
	interval := r.interval
	last := Result{InstanceID: instanceID}
	polls := 0
	for {
		res, err := r.Status(ctx, instanceID)
		polls++
		switch {
		case err == nil:
			last = res
		case ctx.Err() != nil:
			return r.finish(last, polls, start), r.waitError(ctx, last)
		case errors.Is(err, services.ErrTransient):
			logging.WarnWithContext(logger, "status read failed; retrying", "job_poll_retry",
				logging.Error(err),
				logging.Duration("retry_in", interval),
				logging.String(logging.FieldErrorHint, "check that the remote store is reachable"),
				logging.String(logging.FieldImpact, "job status is stale until the next read"),
			)
		default:
			return r.finish(last, polls, start), err
		}

		if err == nil && !res.Status.Pending() {
			if res.Status == job.StatusUnknown {
				logging.WarnWithContext(logger, "job reported an unrecognized status", "job_status_unknown",
					logging.String(logging.FieldStatus, res.RawStatus),
					logging.String(logging.FieldErrorHint, "check the job in the remote store"),
					logging.String(logging.FieldImpact, "polling stopped before a terminal status"),
				)
			}
			return r.finish(last, polls, start), nil
		}

		select {
		case <-ctx.Done():
			return r.finish(last, polls, start), r.waitError(ctx, last)
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * r.multiplier)
		if interval > r.maxInterval {
			interval = r.maxInterval
		}
	}
}

// Run submits req and waits for the job to finish.
func (r *Requester) Run(ctx context.Context, req Request) (Result, error) {
	id, err := r.Submit(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return r.Wait(ctx, id)
}

func (r *Requester) finish(res Result, polls int, start time.Time) Result {
	res.Polls = polls
	res.Elapsed = time.Since(start)
	return res
}

func (r *Requester) waitError(ctx context.Context, last Result) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return services.Wrap(services.ErrTimeout, "requester", "wait",
		fmt.Sprintf("job %s still %s after %s", last.InstanceID, last.Status, r.deadline), ctx.Err())
}
