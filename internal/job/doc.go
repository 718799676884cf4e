// Package job models the job lifecycle records kept in the remote store.
//
// A Template is the ControlAction definition attached to an EntryPoint: it
// declares node-reference input slots (Property) and literal input slots
// (PropertyValueSpecification). An Instance is one request against a template
// and carries its Status, bound inputs, result Artifact and error text.
//
// Status values travel under two vocabularies: the enumerated action status
// tokens (PotentialActionStatus, ActiveActionStatus, ...) and informal
// lowercase strings ("accepted", "running", "complete"). Neither is treated as
// authoritative; ParseStatus accepts both through one named mapping and
// transitions are checked to be monotonic.
package job
