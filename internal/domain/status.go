// Package domain defines the persistence models and closed value sets of the
// e-SIC request lifecycle. This file holds the request status variant and the
// transition table, which is the single source of truth for which lifecycle
// events are legal from which state.
package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event is not permitted from the
// request's current status. The request is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the lifecycle state of a records request.
type Status string

const (
	StatusPending            Status = "pending"
	StatusInProgress         Status = "in_progress"
	StatusResponded          Status = "responded"
	StatusExtensionRequested Status = "extension_requested"
	StatusUnderAppeal        Status = "under_appeal"
	StatusArchived           Status = "archived"
)

// AllStatuses lists every status in lifecycle order. Statistics and reports
// iterate over it so that absent statuses still show a zero count.
var AllStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusResponded,
	StatusExtensionRequested,
	StatusUnderAppeal,
	StatusArchived,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Open reports whether the request is still awaiting a substantive answer.
// Only open requests are subject to deadline alerts.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusExtensionRequested
}

// Answered reports whether the request counts towards the response rate.
func (s Status) Answered() bool {
	return s == StatusResponded || s == StatusUnderAppeal || s == StatusArchived
}

// Terminal reports whether no further event is accepted.
func (s Status) Terminal() bool { return s == StatusArchived }

// Event is a lifecycle stimulus applied to a request.
type Event string

const (
	EventStartProcessing  Event = "start_processing"
	EventRespond          Event = "respond"
	EventRequestExtension Event = "request_extension"
	EventFileAppeal       Event = "file_appeal"
	EventDecideAppeal     Event = "decide_appeal"
	EventArchive          Event = "archive"
	// EventSubmit only appears in the audit trail; it creates the request.
	EventSubmit Event = "submit"
)

// transitions maps (from, event) to the resulting status. Anything missing is
// rejected with ErrInvalidTransition.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventStartProcessing:  StatusInProgress,
		EventRespond:          StatusResponded,
		EventRequestExtension: StatusExtensionRequested,
	},
	StatusInProgress: {
		EventRespond:          StatusResponded,
		EventRequestExtension: StatusExtensionRequested,
	},
	StatusExtensionRequested: {
		EventRespond: StatusResponded,
	},
	StatusResponded: {
		EventFileAppeal: StatusUnderAppeal,
		EventArchive:    StatusArchived,
	},
	StatusUnderAppeal: {
		EventDecideAppeal: StatusResponded,
	},
	StatusArchived: {},
}

// Next returns the status reached by applying ev to from.
func Next(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
}

// CanApply reports whether ev is legal from s.
func CanApply(s Status, ev Event) bool {
	_, ok := transitions[s][ev]
	return ok
}

// SourcesOf returns every status from which ev is legal, in lifecycle order.
// Repositories use it to build the guard of a conditional status update.
func SourcesOf(ev Event) []Status {
	var out []Status
	for _, s := range AllStatuses {
		if CanApply(s, ev) {
			out = append(out, s)
		}
	}
	return out
}
