// Package wire converts typed values into the literal text of the remote
// store's operation language.
//
// Value is a closed sum type: String, Number, Bool, Enum, List and Object.
// Enum tokens are emitted verbatim and unquoted, strings are quoted with
// JSON-compatible escaping (non-ASCII runes become \u escapes), numbers are
// decimal literals and booleans are lowercase. Fields keeps argument order
// exactly as the caller built it; fields holding Unset are skipped, which is
// how partial updates omit absent values without dropping legitimate zero
// values.
//
// No field-name validation is performed; callers own the schema.
package wire
