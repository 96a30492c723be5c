// Package store provides a small reducer-driven state container.
//
// A Store holds one value of state S. The only way to change it is to
// Dispatch an action A, which runs the reducer and notifies subscribers
// with the new state.
package store

import "sync"

// Reducer computes the next state from the current state and an action.
// Reducers must not mutate the state they receive.
type Reducer[S, A any] func(state S, action A) S

// Listener is called with the new state after every notifying dispatch.
type Listener[S any] func(state S)

// Option configures a Store using the functional options pattern.
type Option[S any] func(*config[S])

type config[S any] struct {
	equal func(prev, next S) bool
}

// WithEqual sets the comparison used to decide whether a dispatch changed
// the state. Subscribers are not notified when equal reports true.
// Without it every dispatch notifies.
func WithEqual[S any](equal func(prev, next S) bool) Option[S] {
	return func(c *config[S]) {
		c.equal = equal
	}
}

type subscription[S any] struct {
	id       uint64
	listener Listener[S]
}

// Store is a reducer-driven state container safe for concurrent use.
type Store[S, A any] struct {
	reducer Reducer[S, A]
	equal   func(prev, next S) bool

	mu     sync.Mutex
	state  S
	subs   []subscription[S]
	nextID uint64
}

// New creates a store with the given reducer and initial state.
func New[S, A any](reducer Reducer[S, A], initial S, opts ...Option[S]) *Store[S, A] {
	cfg := &config[S]{}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store[S, A]{
		reducer: reducer,
		equal:   cfg.equal,
		state:   initial,
	}
}

// State returns the current state.
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Dispatch applies the action and returns the resulting state.
// Listeners run on the calling goroutine after the lock is released, in
// subscription order, so they may read the store or dispatch again.
func (s *Store[S, A]) Dispatch(action A) S {
	s.mu.Lock()
	prev := s.state
	next := s.reducer(prev, action)
	s.state = next

	if s.equal != nil && s.equal(prev, next) {
		s.mu.Unlock()
		return next
	}

	subs := make([]subscription[S], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.listener(next)
	}

	return next
}

// Subscribe registers a listener and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (s *Store[S, A]) Subscribe(listener Listener[S]) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[S]{id: id, listener: listener})

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}
