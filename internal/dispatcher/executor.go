package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"jobgraph/internal/services"
)

// OutputPlaceholder is replaced with the local output path in commands.
const OutputPlaceholder = "output_path"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// outputWaitDelay bounds how long Run waits for output after the command
// exits or its context ends; descendants that inherit stdout or stderr
// cannot hold Run open past it.
const outputWaitDelay = 5 * time.Second

type commandExecutor struct{}

// Run starts the command in its own process group. Cancelling ctx kills the
// whole group.
func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = outputWaitDelay

	var mu sync.Mutex
	emit := func(line string) {
		if onOutput == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onOutput(line)
	}
	stdout := &lineWriter{emit: emit}
	stderr := &lineWriter{emit: emit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	err := cmd.Wait()
	stdout.flush()
	stderr.flush()
	if err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

// lineWriter splits written bytes into lines.
type lineWriter struct {
	emit func(string)
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// BuildCommand splits template on whitespace and substitutes {name}
// placeholders from values. A placeholder naming a key absent from values is
// an error; an argument that becomes empty is dropped.
func BuildCommand(template string, values map[string]string) (string, []string, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return "", nil, services.Wrap(services.ErrValidation, "dispatcher", "build command", "command is empty", nil)
	}
	var missing []string
	args := make([]string, 0, len(fields))
	for _, field := range fields {
		arg := placeholderPattern.ReplaceAllStringFunc(field, func(match string) string {
			key := match[1 : len(match)-1]
			value, ok := values[key]
			if !ok {
				missing = append(missing, key)
			}
			return value
		})
		if arg == "" {
			continue
		}
		args = append(args, arg)
	}
	if len(missing) > 0 {
		return "", nil, services.Wrap(services.ErrValidation, "dispatcher", "build command",
			fmt.Sprintf("command references unknown placeholder(s): %s", strings.Join(missing, ", ")), nil)
	}
	if len(args) == 0 {
		return "", nil, services.Wrap(services.ErrValidation, "dispatcher", "build command", "command is empty after substitution", nil)
	}
	return args[0], args[1:], nil
}
