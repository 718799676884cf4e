// Package logging builds the slog loggers used by the client, the dispatcher
// and the CLI.
//
// Two formats are supported. "console" writes one line per record with the
// component and job identifier lifted into the line header; "json" writes
// one object per record. WithContext copies the job, entry point and
// correlation identifiers carried by a context onto a logger.
package logging
