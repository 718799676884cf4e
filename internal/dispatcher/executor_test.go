package dispatcher_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"jobgraph/internal/dispatcher"
	"jobgraph/internal/job"
	"jobgraph/internal/services"
	"jobgraph/internal/testsupport"
)

func TestBuildCommand(t *testing.T) {
	values := map[string]string{
		"input":       "/tmp/in/input-a.mp3",
		"lang":        "",
		"output_path": "/tmp/out/song.mid",
	}
	binary, args, err := dispatcher.BuildCommand("transcribe --in={input} {lang} -o {output_path}", values)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	if binary != "transcribe" {
		t.Fatalf("binary = %q", binary)
	}
	want := []string{"--in=/tmp/in/input-a.mp3", "-o", "/tmp/out/song.mid"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
}

func TestBuildCommandRejectsUnknownPlaceholder(t *testing.T) {
	_, _, err := dispatcher.BuildCommand("tool {missing} {other}", map[string]string{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing, other") {
		t.Fatalf("error should list placeholders: %v", err)
	}
}

func TestBuildCommandRejectsEmptyCommand(t *testing.T) {
	for _, tmpl := range []string{"", "   ", "{blank}"} {
		if _, _, err := dispatcher.BuildCommand(tmpl, map[string]string{"blank": ""}); err == nil {
			t.Fatalf("expected error for %q", tmpl)
		}
	}
}

func TestURLFetcherCopiesFileURLs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.bin")
	sum := testsupport.WriteFile(t, src, 70_000)
	dest := filepath.Join(dir, "nested", "copy.bin")

	written, err := dispatcher.URLFetcher{}.Fetch(context.Background(), job.Artifact{Source: "file://" + src}, dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if written.Path != dest || written.Bytes != 70_000 || written.SHA256 != sum {
		t.Fatalf("unexpected result %+v", written)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() != 70_000 {
		t.Fatalf("copy = %v, %v", info, err)
	}
}

func TestURLFetcherRejectsUnsupportedScheme(t *testing.T) {
	_, err := dispatcher.URLFetcher{}.Fetch(context.Background(), job.Artifact{Source: "ftp://example.test/a.mp3"}, filepath.Join(t.TempDir(), "a"))
	if !errors.Is(err, services.ErrUnsupportedValue) {
		t.Fatalf("expected unsupported value, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if dispatcher.StateAwaitAck.String() != "await_ack" || dispatcher.State(99).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}

func TestCommandExecutorStreamsOutputLines(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var lines []string
	err := dispatcher.CommandExecutor.Run(context.Background(), "sh", []string{"-c", "echo one; echo two >&2; printf three"},
		func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := strings.Join(lines, ",")
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output lines = %v, missing %q", lines, want)
		}
	}
}

func TestCommandExecutorTimeoutKillsDescendants(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// The background sleep inherits stdout and outlives the shell's own wait.
	err := dispatcher.CommandExecutor.Run(ctx, "sh", []string{"-c", "sleep 30 & echo started; wait"}, nil)
	if err == nil {
		t.Fatal("expected an error after the timeout")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Run returned after %s, want prompt return after the timeout", elapsed)
	}
}
