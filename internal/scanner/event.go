package scanner

import (
	"time"

	"github.com/google/uuid"
)

const (
	// EventInfo carries a human readable status message
	EventInfo EventKind = iota

	// EventError is terminal; Err holds the cause
	EventError

	// EventData carries the PSD vector of one step
	EventData

	// EventComplete is terminal and follows the last step
	EventComplete
)

type EventKind int

func (k EventKind) String() string {
	switch k {
	case EventInfo:
		return "info"
	case EventError:
		return "error"
	case EventData:
		return "data"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Terminal reports whether no event follows this kind.
func (k EventKind) Terminal() bool {
	return k == EventError || k == EventComplete
}

// Event is published by a running scan. Every scan emits exactly one
// terminal event, last, and then closes the channel.
type Event struct {
	Kind   EventKind
	ScanID uuid.UUID
	Time   time.Time

	Step            int   // Step index, Data only
	Steps           int   // Number of steps in the sweep
	CenterFrequency int64 // Center frequency of the step in Hz, Data only

	// PSD holds one log power value per bin in ascending frequency order.
	// The slice belongs to the receiver.
	PSD []float64

	Message string // Info and Error
	Err     error  // Error only
}
