package preflight

import (
	"context"
	"fmt"

	"jobgraph/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
// The subscription channel and job binaries are only checked when
// dispatcher jobs are configured.
func RunAll(ctx context.Context, cfg *config.Config, client Doer, dialer Dialer) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if client != nil {
		results = append(results, CheckStore(ctx, cfg.HTTPEndpoint(), client))
	}
	if len(cfg.Dispatcher.Jobs) == 0 {
		return results
	}
	if dialer != nil {
		results = append(results, CheckSubscriptions(ctx, cfg.WebsocketEndpoint(), dialer))
	}
	for _, status := range CheckJobBinaries(cfg) {
		r := Result{Name: fmt.Sprintf("Job %s", status.Name), Passed: status.Available}
		if status.Available {
			r.Detail = status.Path
		} else {
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}
