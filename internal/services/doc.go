// Package services defines shared utilities consumed by the job dispatcher,
// the requester and the transport layer.
//
// Key responsibilities:
//   - Context helpers that stamp JobInstance IDs, EntryPoint IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is and rendered as a human-readable job error.
//
// Use these helpers when wiring new job logic so operational behaviour (error
// handling, observability) stays uniform across the client.
package services
