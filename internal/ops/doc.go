// Package ops composes operation documents for the remote store.
//
// An Operation names one remote call, its argument fields and the fields the
// caller wants back. Document wraps it in one of the three envelopes
// (mutation, query, subscription). The archetype constructors fix the shape
// of each kind of call; the job builders in jobs.go and artifacts.go apply
// them to the job lifecycle nodes.
package ops
