// Package config loads, normalizes, and validates the jobgraph TOML
// configuration.
//
// The file is resolved from an explicit path, the JOBGRAPH_CONFIG environment
// variable, ~/.config/jobgraph/config.toml, or ./jobgraph.toml, in that order.
// The resulting *Config is built once and passed explicitly to the transport,
// dispatcher and requester constructors; nothing in the module reads
// configuration from package-level state.
package config
