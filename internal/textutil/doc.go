// Package textutil turns remote identifiers and artifact names into local
// path components.
//
// Identifiers and names arrive from the remote store and from download URLs,
// so neither can be trusted to be a single, safe path element.
package textutil
