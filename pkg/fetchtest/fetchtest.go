// Package fetchtest provides transports and helpers for testing
// descriptors and controllers without a network.
package fetchtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// DefaultTimeout bounds how long the Must helpers wait for a state to settle.
const DefaultTimeout = 5 * time.Second

// Replay answers every request with the same response and records what it
// was sent. The zero value answers 200 with an empty body.
type Replay struct {
	Status int
	Body   string
	Err    error

	mu   sync.Mutex
	seen []fetchstate.Request
}

// Respond returns a Replay answering status and body.
func Respond(status int, body string) *Replay {
	return &Replay{Status: status, Body: body}
}

// Fail returns a Replay failing every request with err.
func Fail(err error) *Replay {
	return &Replay{Err: err}
}

// Do implements fetchstate.Transport.
//
//nolint:gocritic // Request is passed by value through the transport chain
func (r *Replay) Do(_ context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
	r.mu.Lock()
	r.seen = append(r.seen, req)
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	status := r.Status
	if status == 0 {
		status = 200
	}

	return &fetchstate.Response{StatusCode: status, Raw: []byte(r.Body)}, nil
}

// Requests returns every request received so far.
func (r *Replay) Requests() []fetchstate.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]fetchstate.Request(nil), r.seen...)
}

// Last returns the most recent request, or the zero Request.
func (r *Replay) Last() fetchstate.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.seen) == 0 {
		return fetchstate.Request{}
	}

	return r.seen[len(r.seen)-1]
}

// MustSettle runs d on a fresh controller and fails the test unless the
// state settles within DefaultTimeout.
//
//nolint:gocritic // Descriptor is copied by the controller anyway
func MustSettle[T any](t testing.TB, transport fetchstate.Transport, d fetchstate.Descriptor[T]) fetchstate.State[T] {
	t.Helper()

	c := fetchstate.NewController[T](transport)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	state := c.Do(ctx, d)
	if !state.Settled() {
		t.Fatalf("%s %s did not settle: %s", d.Request.Method, d.Request.Path, state.Status)
	}

	return state
}

// MustResolve is MustSettle failing the test unless the state resolved.
//
//nolint:gocritic // Descriptor is copied by the controller anyway
func MustResolve[T any](t testing.TB, transport fetchstate.Transport, d fetchstate.Descriptor[T]) T {
	t.Helper()

	state := MustSettle(t, transport, d)
	if !state.Resolved() {
		t.Fatalf("%s %s failed: %s", d.Request.Method, d.Request.Path, state.Message)
	}

	return state.Data
}

// MustFail is MustSettle failing the test unless the state failed. It
// returns the user-facing message.
//
//nolint:gocritic // Descriptor is copied by the controller anyway
func MustFail[T any](t testing.TB, transport fetchstate.Transport, d fetchstate.Descriptor[T]) string {
	t.Helper()

	state := MustSettle(t, transport, d)
	if !state.Failed() {
		t.Fatalf("%s %s unexpectedly resolved", d.Request.Method, d.Request.Path)
	}

	return state.Message
}
