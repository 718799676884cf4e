package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobgraph/internal/job"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
	"jobgraph/internal/textutil"
)

// terminalUpdateTimeout bounds the final status write, which is sent even
// after the worker's context has been cancelled.
const terminalUpdateTimeout = 30 * time.Second

// Outcome reports what ProcessJob did with one job instance.
type Outcome struct {
	InstanceID string
	Status     job.Status
	Result     *job.Artifact
	Skipped    bool
	Err        error
}

// ProcessJob handles one job instance end to end. Jobs that are not
// Accepted are skipped. A job whose required inputs are missing is left
// Accepted unless fail_on_invalid_binding is set.
func (w *Worker) ProcessJob(ctx context.Context, instanceID string) Outcome {
	ctx = services.WithJobID(services.WithEntryPoint(ctx, w.job.EntryPoint), instanceID)
	logger := logging.WithContext(ctx, w.logger)
	outcome := Outcome{InstanceID: instanceID}

	var node ops.InstanceNode
	if err := w.store.Execute(ctx, ops.QueryInstance(instanceID), &node); err != nil {
		outcome.Err = fmt.Errorf("read job: %w", err)
		w.logFailure(logger, "failed to read job", outcome.Err)
		return outcome
	}
	inst := node.Instance()
	outcome.Status = inst.Status
	if inst.Status != job.StatusAccepted {
		outcome.Skipped = true
		logger.Info("skipping job that is not accepted",
			logging.String(logging.FieldStatus, inst.Status.String()),
			logging.String(logging.FieldEventType, "job_skipped"),
		)
		return outcome
	}
	if inst.TemplateID == "" {
		outcome.Err = services.Wrap(services.ErrMissingTemplateID, "dispatcher", "read job", "job has no template reference", nil)
		w.logFailure(logger, "job has no template", outcome.Err)
		return outcome
	}

	var tmplNode ops.TemplateNode
	if err := w.store.Execute(ctx, ops.QueryTemplate(inst.TemplateID), &tmplNode); err != nil {
		outcome.Err = fmt.Errorf("read template: %w", err)
		w.logFailure(logger, "failed to read job template", outcome.Err)
		return outcome
	}
	tmpl := tmplNode.Template(w.job.EntryPoint)

	inputs, err := tmpl.Partition(inst.Bound)
	if err != nil {
		outcome.Err = err
		if !w.cfg.Dispatcher.FailOnInvalidBinding {
			logging.WarnWithContext(logger, "job inputs incomplete; leaving job untouched", "job_inputs_incomplete",
				logging.Error(err),
				logging.ErrorKind(err),
				logging.String(logging.FieldErrorHint, "re-request the job with every required input bound"),
				logging.String(logging.FieldImpact, "job stays accepted and is not processed"),
			)
			return outcome
		}
		g := newStatusGuard(w, instanceID, job.StatusAccepted)
		outcome.Status = g.fail(ctx, logger, err)
		return outcome
	}

	g := newStatusGuard(w, instanceID, job.StatusAccepted)
	if err := g.transition(ctx, job.StatusRunning, nil); err != nil {
		outcome.Err = fmt.Errorf("mark running: %w", err)
		w.logFailure(logger, "failed to mark job running", outcome.Err)
		return outcome
	}
	outcome.Status = job.StatusRunning
	logger.Info("job started", logging.String(logging.FieldEventType, "job_start"))

	start := time.Now()
	result, runErr := w.runGuarded(ctx, logger, instanceID, tmpl, inputs)
	if runErr != nil {
		outcome.Err = runErr
		outcome.Status = g.fail(ctx, logger, runErr)
		return outcome
	}
	outcome.Result = result
	if err := g.transition(ctx, job.StatusCompleted, nil); err != nil {
		outcome.Err = fmt.Errorf("mark completed: %w", err)
		outcome.Status = g.fail(ctx, logger, outcome.Err)
		return outcome
	}
	outcome.Status = job.StatusCompleted
	logger.Info("job completed",
		logging.String("result_id", result.ID),
		logging.String("content_url", result.ContentURL),
		logging.Duration("duration", time.Since(start)),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	return outcome
}

// runGuarded runs the processing steps and converts a panic into an error
// so the caller still writes a terminal status.
func (w *Worker) runGuarded(ctx context.Context, logger *slog.Logger, instanceID string, tmpl job.Template, inputs job.Inputs) (result *job.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job processing panicked: %v", r)
		}
	}()
	return w.run(ctx, logger, instanceID, tmpl, inputs)
}

func (w *Worker) run(ctx context.Context, logger *slog.Logger, instanceID string, tmpl job.Template, inputs job.Inputs) (*job.Artifact, error) {
	jobDir := textutil.PathSegment(instanceID, "job")
	downloadDir := filepath.Join(w.cfg.Paths.DownloadDir, jobDir)

	values := make(map[string]string, len(tmpl.Properties)+len(tmpl.Values)+1)
	for _, slot := range tmpl.Properties {
		values[slot.Name] = ""
	}
	for _, slot := range tmpl.Values {
		values[slot.Name] = inputs.Values[slot.Name]
	}

	for _, slot := range tmpl.Properties {
		artifact, ok := inputs.Nodes[slot.Name]
		if !ok {
			continue
		}
		dest := filepath.Join(downloadDir, localName(slot.Name, artifact))
		written, err := w.fetcher.Fetch(ctx, artifact, dest)
		if err != nil {
			return nil, fmt.Errorf("fetch input %q: %w", slot.Name, err)
		}
		values[slot.Name] = written.Path
		logger.Debug("input downloaded",
			logging.String("slot", slot.Name),
			logging.String("path", written.Path),
			logging.Int64("bytes", written.Bytes),
			logging.String("sha256", written.SHA256),
		)
	}

	outputName := instanceID
	if w.job.OutputSlot != "" {
		if v := strings.TrimSpace(inputs.Values[w.job.OutputSlot]); v != "" {
			outputName = v
		}
	}
	outputName = textutil.FileName(outputName)
	if outputName == "" {
		outputName = jobDir
	}
	relOutput := filepath.Join(jobDir, outputName)
	outputPath := filepath.Join(w.cfg.Paths.OutputDir, relOutput)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	values[OutputPlaceholder] = outputPath

	binary, args, err := BuildCommand(w.job.Command, values)
	if err != nil {
		return nil, err
	}
	if err := w.execute(ctx, logger, binary, args); err != nil {
		return nil, err
	}
	info, err := os.Stat(outputPath)
	if err != nil || info.IsDir() {
		return nil, services.Wrap(services.ErrExternalTool, "dispatcher", "run command",
			fmt.Sprintf("%s produced no output at %s", binary, outputPath), err)
	}

	create, err := ops.CreateArtifact(ops.ArtifactInput{
		Type:       job.ArtifactType(w.job.OutputType),
		Name:       outputName,
		ContentURL: w.cfg.PublicURL(relOutput),
		Format:     w.job.OutputFormat,
	})
	if err != nil {
		return nil, err
	}
	var created ops.Created
	if err := w.store.Execute(ctx, create, &created); err != nil {
		return nil, fmt.Errorf("create result artifact: %w", err)
	}
	link, err := ops.LinkResult(instanceID, created.Identifier)
	if err != nil {
		return nil, err
	}
	if err := w.store.Execute(ctx, link, nil); err != nil {
		return nil, fmt.Errorf("link result artifact: %w", err)
	}
	return &job.Artifact{
		ID:         created.Identifier,
		Type:       job.ArtifactType(w.job.OutputType),
		Name:       outputName,
		Source:     w.cfg.PublicURL(relOutput),
		ContentURL: w.cfg.PublicURL(relOutput),
		Format:     w.job.OutputFormat,
	}, nil
}

func (w *Worker) execute(ctx context.Context, logger *slog.Logger, binary string, args []string) error {
	if timeout := time.Duration(w.cfg.Dispatcher.CommandTimeout) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Info("running command",
		logging.String("binary", binary),
		logging.String("args", strings.Join(args, " ")),
		logging.String(logging.FieldEventType, "command_start"),
	)
	var tail []string
	err := w.exec.Run(ctx, binary, args, func(line string) {
		logger.Debug("command output", logging.String("line", line))
		tail = append(tail, line)
		if len(tail) > 5 {
			tail = tail[1:]
		}
	})
	if err != nil {
		msg := fmt.Sprintf("%s failed", binary)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("%s timed out", binary)
		}
		if len(tail) > 0 {
			msg += " (" + strings.Join(tail, " | ") + ")"
		}
		return services.Wrap(services.ErrExternalTool, "dispatcher", "run command", msg, err)
	}
	return nil
}

func (w *Worker) logFailure(logger *slog.Logger, msg string, err error) {
	logging.ErrorWithContext(logger, msg, "job_failed",
		logging.Error(err),
		logging.ErrorKind(err),
		logging.String(logging.FieldErrorHint, "check the remote store and the job definition"),
	)
}
