// Package fetchstate implements a request-state controller: it issues an
// asynchronous request on demand, tracks an idle/pending/resolved/failed
// lifecycle and exposes the latest transformed result as snapshots.
package fetchstate

// Status discriminates the cases of State.
type Status int

// Lifecycle cases. The zero value is StatusIdle.
const (
	StatusIdle Status = iota
	StatusPending
	StatusResolved
	StatusFailed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a controller. Data is meaningful only when
// Status is StatusResolved; Message and Err only when it is StatusFailed.
type State[T any] struct {
	Status  Status
	Data    T
	Message string
	Err     error

	// gen is the generation of the trigger that owns the state, rev counts
	// applied transitions and closed marks a torn down controller.
	gen    uint64
	rev    uint64
	closed bool
}

// Idle reports whether no request has been made or the state was reset.
func (s State[T]) Idle() bool { return s.Status == StatusIdle }

// Pending reports whether a request is in flight.
func (s State[T]) Pending() bool { return s.Status == StatusPending }

// Resolved reports whether the latest request succeeded.
func (s State[T]) Resolved() bool { return s.Status == StatusResolved }

// Failed reports whether the latest request failed.
func (s State[T]) Failed() bool { return s.Status == StatusFailed }

// Settled reports whether the latest request has completed either way.
func (s State[T]) Settled() bool { return s.Resolved() || s.Failed() }

// Generation returns the trigger generation the state belongs to. It is
// zero before the first trigger.
func (s State[T]) Generation() uint64 { return s.gen }
