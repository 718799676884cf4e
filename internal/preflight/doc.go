// Package preflight provides readiness checks for the remote store and the
// local resources a dispatcher depends on.
//
// The CLI "jobgraph preflight" command runs RunAll; "jobgraph dispatch" runs
// it before starting workers and refuses to start when a check fails.
package preflight
