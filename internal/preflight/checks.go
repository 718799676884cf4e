package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"jobgraph/internal/config"
	"jobgraph/internal/deps"
	"jobgraph/internal/ops"
	"jobgraph/internal/transport"
)

// Doer sends one document over the request/response channel.
type Doer interface {
	Do(ctx context.Context, document string) (*transport.Response, error)
}

// Dialer opens the duplex channel.
type Dialer interface {
	Dial(ctx context.Context) (*transport.Conn, error)
}

const checkTimeout = 10 * time.Second

// CheckStore sends the smallest valid query to the request/response endpoint.
func CheckStore(ctx context.Context, endpoint string, client Doer) Result {
	const name = "Remote store"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	reply, err := client.Do(checkCtx, ops.Ping())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", endpoint, summarizeError(err))}
	}
	if reply.StatusCode >= 300 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: HTTP %d)", endpoint, reply.StatusCode)}
	}
	if len(reply.Errors) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", endpoint, reply.Errors[0].Message)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", endpoint)}
}

// CheckSubscriptions opens the duplex channel and waits for the handshake
// acknowledgement.
func CheckSubscriptions(ctx context.Context, endpoint string, dialer Dialer) Result {
	const name = "Subscription channel"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	conn, err := dialer.Dial(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", endpoint, summarizeError(err))}
	}
	defer conn.Close()
	if err := conn.AwaitAck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", endpoint, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (acknowledged)", endpoint)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckJobBinaries resolves the binary of every configured dispatcher job.
// Both the dispatch command and the CLI preflight command use this to avoid
// duplicating the requirements list.
func CheckJobBinaries(cfg *config.Config) []deps.Status {
	requirements := make([]deps.Requirement, 0, len(cfg.Dispatcher.Jobs))
	for _, job := range cfg.Dispatcher.Jobs {
		name := job.Name
		if name == "" {
			name = job.EntryPoint
		}
		requirements = append(requirements, deps.CommandRequirement(name, job.Command))
	}
	return deps.CheckBinaries(requirements)
}

// summarizeError produces a human-readable summary for connectivity failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (store unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (store unreachable)"
	}
	return err.Error()
}
