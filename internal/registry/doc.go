// Package registry records the remote identifiers of registered job
// templates in a local SQLite database so registration can be re-run
// without creating duplicates, and so requests can be validated without a
// network round trip.
package registry
