// Package requester submits job requests against a registered template and
// follows them to a terminal status.
//
// Required literal values are validated before anything is sent, so a request
// with a missing value never reaches the remote store. Polling backs off
// exponentially between status reads and always runs under a deadline; a job
// that stays Accepted or Running past it yields services.ErrTimeout.
package requester
