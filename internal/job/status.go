package job

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the lifecycle state of a JobInstance.
type Status int

const (
	StatusUnknown Status = iota
	StatusAccepted
	StatusRunning
	StatusCompleted
	StatusFailed
)

// ActionStatus is the enumerated status token written to the remote store.
type ActionStatus string

const (
	ActionPotential ActionStatus = "PotentialActionStatus"
	ActionActive    ActionStatus = "ActiveActionStatus"
	ActionCompleted ActionStatus = "CompletedActionStatus"
	ActionFailed    ActionStatus = "FailedActionStatus"
)

type statusName struct {
	status   Status
	action   ActionStatus
	informal []string
}

// statusNames maps each status onto both vocabularies. The first informal
// spelling is the one emitted by Informal.
var statusNames = []statusName{
	{status: StatusAccepted, action: ActionPotential, informal: []string{"accepted", "potential"}},
	{status: StatusRunning, action: ActionActive, informal: []string{"running", "active"}},
	{status: StatusCompleted, action: ActionCompleted, informal: []string{"complete", "completed", "finished"}},
	{status: StatusFailed, action: ActionFailed, informal: []string{"failed", "error"}},
}

// ParseStatus resolves either vocabulary, case-insensitively. Unrecognized
// values return StatusUnknown.
func ParseStatus(value string) Status {
	value = strings.TrimSpace(value)
	for _, name := range statusNames {
		if strings.EqualFold(value, string(name.action)) {
			return name.status
		}
		for _, informal := range name.informal {
			if strings.EqualFold(value, informal) {
				return name.status
			}
		}
	}
	return StatusUnknown
}

// ActionStatus returns the enumerated token for s, or "" for StatusUnknown.
func (s Status) ActionStatus() ActionStatus {
	for _, name := range statusNames {
		if name.status == s {
			return name.action
		}
	}
	return ""
}

// Informal returns the lowercase informal spelling of s.
func (s Status) Informal() string {
	for _, name := range statusNames {
		if name.status == s {
			return name.informal[0]
		}
	}
	return "unknown"
}

func (s Status) String() string {
	return s.Informal()
}

// Label returns a title-cased label for display.
func (s Status) Label() string {
	return cases.Title(language.English).String(s.Informal())
}

// Terminal reports whether s is Completed or Failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Pending reports whether a requester should keep polling.
func (s Status) Pending() bool {
	return s == StatusAccepted || s == StatusRunning
}

// CanTransition reports whether moving from s to next keeps the status
// sequence a subsequence of Accepted, Running, {Completed | Failed}.
func (s Status) CanTransition(next Status) bool {
	if s == StatusUnknown || next == StatusUnknown {
		return false
	}
	if s.Terminal() {
		return false
	}
	return next > s
}
