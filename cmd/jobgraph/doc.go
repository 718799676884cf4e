// Command jobgraph registers job templates in a remote metadata store,
// requests jobs against them and runs the dispatcher that processes them.
//
// Configuration is read from --config, then $JOBGRAPH_CONFIG, then
// ~/.config/jobgraph/config.toml, then ./jobgraph.toml. Run
// "jobgraph config init" to write a sample.
package main
