package fetchstate

type actionKind int

const (
	actionSend actionKind = iota
	actionSuccess
	actionError
	actionReset
	actionClose
)

type action[T any] struct {
	kind actionKind
	gen  uint64
	data T
	err  error
	// stale allows a completion from an older generation to land.
	stale bool
}

// reduce applies one controller action. Every applied transition bumps
// rev; dropped actions return the state untouched so subscribers are not
// notified.
func reduce[T any](state State[T], a action[T]) State[T] {
	if state.closed {
		return state
	}

	switch a.kind {
	case actionSend:
		if a.gen < state.gen {
			// A newer trigger already moved the state to pending.
			return state
		}

		return State[T]{Status: StatusPending, gen: a.gen, rev: state.rev + 1}
	case actionSuccess, actionError:
		if a.gen != state.gen && !a.stale {
			return state
		}

		next := State[T]{gen: state.gen, rev: state.rev + 1}
		if a.kind == actionSuccess {
			next.Status = StatusResolved
			next.Data = a.data
		} else {
			next.Status = StatusFailed
			next.Message = messageOf(a.err)
			next.Err = a.err
		}

		return next
	case actionReset:
		if a.gen < state.gen {
			return state
		}

		return State[T]{gen: a.gen, rev: state.rev + 1}
	case actionClose:
		state.closed = true
		return state
	}

	return state
}

func sameRevision[T any](prev, next State[T]) bool {
	return prev.rev == next.rev
}
