package dispatcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"jobgraph/internal/job"
	"jobgraph/internal/services"
	"jobgraph/internal/testsupport"
)

func TestProcessJobRunsCommandAndPublishesResult(t *testing.T) {
	f := newFixture(t)
	exec := &fileExecutor{timeline: f.timeline}
	w := f.worker(t, exec)

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Err != nil {
		t.Fatalf("ProcessJob error: %v", outcome.Err)
	}
	if outcome.Status != job.StatusCompleted {
		t.Fatalf("status = %v, want completed", outcome.Status)
	}
	if outcome.Result == nil || outcome.Result.ID != "doc-1" {
		t.Fatalf("unexpected result %+v", outcome.Result)
	}
	wantURL := "https://files.example.test/output/ca-1/song.mid"
	if outcome.Result.ContentURL != wantURL {
		t.Fatalf("content url = %q, want %q", outcome.Result.ContentURL, wantURL)
	}

	want := []string{
		"query:instance",
		"query:template",
		"status:ActiveActionStatus",
		"download:/a.mp3",
		"execute:transcribe",
		"create:artifact",
		"link:result",
		"status:CompletedActionStatus",
	}
	if got := f.timeline.list(); !reflect.DeepEqual(got, want) {
		t.Fatalf("timeline = %v\nwant %v", got, want)
	}

	inputPath := filepath.Join(f.cfg.Paths.DownloadDir, "ca-1", "input-a.mp3")
	outputPath := filepath.Join(f.cfg.Paths.OutputDir, "ca-1", "song.mid")
	wantArgs := []string{"--in", inputPath, "--out", outputPath, "--name", "song.mid"}
	if exec.binary != "transcribe" || !reflect.DeepEqual(exec.args, wantArgs) {
		t.Fatalf("command = %s %v, want transcribe %v", exec.binary, exec.args, wantArgs)
	}
	if exec.input != "audio-bytes" {
		t.Fatalf("command read %q from input", exec.input)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	created := f.store.DocumentsFor("CreateDigitalDocument")
	if len(created) != 1 {
		t.Fatalf("expected one artifact creation, got %d", len(created))
	}
	for _, fragment := range []string{`contentUrl: "` + wantURL + `"`, `format: "audio/midi"`, `name: "song.mid"`} {
		if !strings.Contains(created[0], fragment) {
			t.Fatalf("artifact document missing %s:\n%s", fragment, created[0])
		}
	}
	link := f.store.DocumentsFor("MergeControlActionResult")
	if len(link) != 1 || !strings.Contains(link[0], `"ca-1"`) || !strings.Contains(link[0], `"doc-1"`) {
		t.Fatalf("unexpected result link %v", link)
	}
}

func TestProcessJobSkipsJobsThatAreNotAccepted(t *testing.T) {
	for _, status := range []string{"ActiveActionStatus", "CompletedActionStatus", "FailedActionStatus"} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t)
			f.setInstance("ca-1", status, f.content.URL+"/a.mp3", "song.mid")
			exec := &fileExecutor{timeline: f.timeline}
			w := f.worker(t, exec)

			outcome := w.ProcessJob(context.Background(), "ca-1")
			if !outcome.Skipped {
				t.Fatalf("expected job to be skipped, got %+v", outcome)
			}
			if got := f.timeline.list(); !reflect.DeepEqual(got, []string{"query:instance"}) {
				t.Fatalf("timeline = %v", got)
			}
		})
	}
}

func TestProcessJobLeavesIncompleteJobUntouched(t *testing.T) {
	f := newFixture(t)
	f.setInstance("ca-1", "PotentialActionStatus", "", "song.mid")
	exec := &fileExecutor{timeline: f.timeline}
	w := f.worker(t, exec)

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if !errors.Is(outcome.Err, services.ErrMissingRequiredValue) {
		t.Fatalf("expected missing value error, got %v", outcome.Err)
	}
	if outcome.Status != job.StatusAccepted {
		t.Fatalf("status = %v, want accepted", outcome.Status)
	}
	if statuses := f.timeline.statuses(); len(statuses) != 0 {
		t.Fatalf("expected no status updates, got %v", statuses)
	}
	if exec.binary != "" {
		t.Fatal("command should not run")
	}
}

func TestProcessJobFailsIncompleteJobWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.cfg.Dispatcher.FailOnInvalidBinding = true
	f.setInstance("ca-1", "PotentialActionStatus", "", "song.mid")
	w := f.worker(t, &fileExecutor{timeline: f.timeline})

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if got := f.timeline.statuses(); !reflect.DeepEqual(got, []string{"FailedActionStatus"}) {
		t.Fatalf("statuses = %v", got)
	}
	if !strings.Contains(f.lastError(), "input") {
		t.Fatalf("failure message should name the slot, got %q", f.lastError())
	}
}

func TestProcessJobMarksCommandFailure(t *testing.T) {
	f := newFixture(t)
	exec := &fileExecutor{timeline: f.timeline, err: errCommand}
	w := f.worker(t, exec)

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if !errors.Is(outcome.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", outcome.Err)
	}
	if got := f.timeline.statuses(); !reflect.DeepEqual(got, []string{"ActiveActionStatus", "FailedActionStatus"}) {
		t.Fatalf("statuses = %v", got)
	}
	msg := f.lastError()
	if !strings.Contains(msg, "transcribe failed") || !strings.Contains(msg, "model not found") {
		t.Fatalf("failure message = %q", msg)
	}
	if len(f.store.DocumentsFor("CreateDigitalDocument")) != 0 {
		t.Fatal("no artifact should be created for a failed job")
	}
}

func TestProcessJobMarksFailedWhenCompletedWriteIsRejected(t *testing.T) {
	f := newFixture(t)
	f.rejectStatus = "CompletedActionStatus"
	w := f.worker(t, &fileExecutor{timeline: f.timeline})

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if !errors.Is(outcome.Err, services.ErrRemoteOperation) {
		t.Fatalf("expected remote operation error, got %v", outcome.Err)
	}
	want := []string{"ActiveActionStatus", "CompletedActionStatus", "FailedActionStatus"}
	if got := f.timeline.statuses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	msg := f.lastError()
	if !strings.Contains(msg, "mark completed") || !strings.Contains(msg, "status write rejected") {
		t.Fatalf("failure message = %q", msg)
	}
}

func TestProcessJobMarksMissingOutput(t *testing.T) {
	f := newFixture(t)
	w := f.worker(t, &fileExecutor{timeline: f.timeline, noOutput: true})

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if !strings.Contains(f.lastError(), "produced no output") {
		t.Fatalf("failure message = %q", f.lastError())
	}
}

func TestProcessJobRecoversPanics(t *testing.T) {
	f := newFixture(t)
	w := f.worker(t, &fileExecutor{timeline: f.timeline, panicMsg: "boom"})

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if got := f.timeline.statuses(); !reflect.DeepEqual(got, []string{"ActiveActionStatus", "FailedActionStatus"}) {
		t.Fatalf("statuses = %v", got)
	}
	if !strings.Contains(f.lastError(), "boom") {
		t.Fatalf("failure message = %q", f.lastError())
	}
}

func TestProcessJobMarksDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.setInstance("ca-1", "PotentialActionStatus", f.content.URL+"/missing.mp3", "song.mid")
	exec := &fileExecutor{timeline: f.timeline}
	w := f.worker(t, exec)

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if exec.binary != "" {
		t.Fatal("command should not run without its input")
	}
}

func TestProcessJobWritesTerminalStatusAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	exec := &cancellingExecutor{cancel: cancel}
	w := f.worker(t, exec)

	outcome := w.ProcessJob(ctx, "ca-1")
	if outcome.Status != job.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if got := f.timeline.statuses(); !reflect.DeepEqual(got, []string{"ActiveActionStatus", "FailedActionStatus"}) {
		t.Fatalf("statuses = %v", got)
	}
}

// cancellingExecutor cancels the job context and reports the interruption
// the way an interrupted command would.
type cancellingExecutor struct {
	cancel context.CancelFunc
}

func (e *cancellingExecutor) Run(ctx context.Context, _ string, _ []string, _ func(string)) error {
	e.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestProcessJobReportsUnreadableJob(t *testing.T) {
	f := newFixture(t)
	f.store.Handle("ControlAction", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: []any{}}
	})
	w := f.worker(t, &fileExecutor{timeline: f.timeline})

	outcome := w.ProcessJob(context.Background(), "ca-1")
	if !errors.Is(outcome.Err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", outcome.Err)
	}
	if len(f.store.DocumentsFor("UpdateControlAction")) != 0 {
		t.Fatal("no status should be written for an unreadable job")
	}
}
