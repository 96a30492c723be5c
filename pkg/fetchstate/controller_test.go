package fetchstate_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type film struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	OpeningText string `json:"openingText"`
	ReleaseDate string `json:"releaseDate"`
}

type swapiFilms struct {
	Results []struct {
		EpisodeID    int    `json:"episode_id"`
		Title        string `json:"title"`
		OpeningCrawl string `json:"opening_crawl"`
		ReleaseDate  string `json:"release_date"`
	} `json:"results"`
}

func filmsDescriptor() fetchstate.Descriptor[[]film] {
	return fetchstate.Descriptor[[]film]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: "/api/films/"},
		Transform: fetchstate.JSON(func(raw swapiFilms) ([]film, error) {
			films := make([]film, 0, len(raw.Results))
			for _, r := range raw.Results {
				films = append(films, film{
					ID:          r.EpisodeID,
					Title:       r.Title,
					OpeningText: r.OpeningCrawl,
					ReleaseDate: r.ReleaseDate,
				})
			}
			return films, nil
		}),
	}
}

// filmsAt is filmsDescriptor for another path, so overlapping requests can
// be told apart by gatedTransport.
func filmsAt(path string) fetchstate.Descriptor[[]film] {
	d := filmsDescriptor()
	d.Request.Path = path
	return d
}

// gatedTransport blocks every request until release is called with the
// response for its path.
type gatedTransport struct {
	mu    sync.Mutex
	calls map[string]chan result
}

type result struct {
	resp *fetchstate.Response
	err  error
}

func (g *gatedTransport) Do(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
	ch := make(chan result, 1)
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]chan result)
	}
	g.calls[req.Path] = ch
	g.mu.Unlock()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, fetchstate.NewTransportError(req, ctx.Err())
	}
}

func (g *gatedTransport) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.calls) >= n
	}, time.Second, time.Millisecond)
}

func (g *gatedTransport) release(t *testing.T, path string, resp *fetchstate.Response, err error) {
	t.Helper()
	g.mu.Lock()
	ch, ok := g.calls[path]
	g.mu.Unlock()
	require.True(t, ok, "no request to %s", path)
	ch <- result{resp: resp, err: err}
}

func staticTransport(status int, body string) fetchstate.Transport {
	return fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
		return &fetchstate.Response{StatusCode: status, Headers: http.Header{}, Raw: []byte(body)}, nil
	})
}

func TestController_InitialStateIsIdle(t *testing.T) {
	c := fetchstate.NewController[[]film](staticTransport(http.StatusOK, `{}`))

	state := c.Snapshot()
	assert.True(t, state.Idle())
	assert.Equal(t, "idle", state.Status.String())
	assert.Zero(t, state.Generation())
}

func TestController_TriggerIsPendingBeforeTransportResolves(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport)

	done := c.Trigger(context.Background(), filmsDescriptor())
	assert.True(t, c.Snapshot().Pending(), "state must be pending synchronously")

	transport.waitCalls(t, 1)
	assert.True(t, c.Snapshot().Pending())

	transport.release(t, "/api/films/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[]}`)}, nil)
	<-done
	assert.True(t, c.Snapshot().Resolved())
}

func TestController_ResolvesFilmsScenario(t *testing.T) {
	body := `{"results":[{"episode_id":1,"title":"A","opening_crawl":"...","release_date":"2000-01-01"}]}`
	c := fetchstate.NewController[[]film](staticTransport(http.StatusOK, body))

	var states []fetchstate.State[[]film]
	c.Subscribe(func(s fetchstate.State[[]film]) { states = append(states, s) })

	state := c.Do(context.Background(), filmsDescriptor())

	require.True(t, state.Resolved())
	want := []film{{ID: 1, Title: "A", OpeningText: "...", ReleaseDate: "2000-01-01"}}
	if diff := cmp.Diff(want, state.Data); diff != "" {
		t.Errorf("resolved data mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, states, 2, "one pending and exactly one resolved transition")
	assert.True(t, states[0].Pending())
	assert.True(t, states[1].Resolved())
}

func TestController_Failures(t *testing.T) {
	tests := []struct {
		name      string
		transport fetchstate.Transport
		desc      fetchstate.Descriptor[[]film]
		message   string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "server_error_without_body_uses_default_message",
			transport: staticTransport(http.StatusInternalServerError, ""),
			desc:      filmsDescriptor(),
			message:   "Something went wrong",
			check: func(t *testing.T, err error) {
				var serverErr *fetchstate.ServerError
				require.ErrorAs(t, err, &serverErr)
				assert.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)
			},
		},
		{
			name:      "server_error_with_message",
			transport: staticTransport(http.StatusBadRequest, `{"error":{"message":"EMAIL_EXISTS"}}`),
			desc: func() fetchstate.Descriptor[[]film] {
				d := filmsDescriptor()
				d.ErrorMessage = fetchstate.MessageAt("error", "message")
				return d
			}(),
			message: "EMAIL_EXISTS",
			check: func(t *testing.T, err error) {
				assert.True(t, fetchstate.IsServerError(err))
			},
		},
		{
			name:      "server_error_with_unparseable_body",
			transport: staticTransport(http.StatusNotFound, `<html>`),
			desc: func() fetchstate.Descriptor[[]film] {
				d := filmsDescriptor()
				d.ErrorMessage = fetchstate.MessageAt("error", "message")
				return d
			}(),
			message: "Something went wrong",
		},
		{
			name: "transport_error",
			transport: fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
				return nil, errors.New("dial tcp: no such host")
			}),
			desc:    filmsDescriptor(),
			message: "request GET /api/films/ failed: dial tcp: no such host",
			check: func(t *testing.T, err error) {
				assert.True(t, fetchstate.IsTransportError(err))
			},
		},
		{
			name:      "malformed_payload",
			transport: staticTransport(http.StatusOK, `{"results": 12}`),
			desc:      filmsDescriptor(),
			check: func(t *testing.T, err error) {
				assert.True(t, fetchstate.IsTransformError(err))
			},
		},
		{
			name:      "panicking_transform",
			transport: staticTransport(http.StatusOK, `{}`),
			desc: fetchstate.Descriptor[[]film]{
				Request: fetchstate.Request{Path: "/boom"},
				Transform: func([]byte) ([]film, error) {
					panic("boom")
				},
			},
			message: "transforming response: panic: boom",
			check: func(t *testing.T, err error) {
				assert.True(t, fetchstate.IsTransformError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fetchstate.NewController[[]film](tt.transport)

			state := c.Do(context.Background(), tt.desc)

			require.True(t, state.Failed())
			assert.Nil(t, state.Data)
			if tt.message != "" {
				assert.Equal(t, tt.message, state.Message)
			} else {
				assert.NotEmpty(t, state.Message)
			}
			if tt.check != nil {
				tt.check(t, state.Err)
			}
		})
	}
}

func TestController_RetriggerRestartsLifecycle(t *testing.T) {
	var mu sync.Mutex
	status := http.StatusInternalServerError
	transport := fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		return &fetchstate.Response{StatusCode: status, Raw: []byte(`{"results":[{"episode_id":4,"title":"B"}]}`)}, nil
	})
	c := fetchstate.NewController[[]film](transport)

	state := c.Do(context.Background(), filmsDescriptor())
	require.True(t, state.Failed())

	mu.Lock()
	status = http.StatusOK
	mu.Unlock()

	var sawPending bool
	unsubscribe := c.Subscribe(func(s fetchstate.State[[]film]) {
		if s.Pending() {
			sawPending = true
			assert.Empty(t, s.Message, "pending must discard the previous error")
			assert.NoError(t, s.Err)
		}
	})
	defer unsubscribe()

	state = c.Do(context.Background(), filmsDescriptor())
	assert.True(t, sawPending)
	require.True(t, state.Resolved())
	assert.Empty(t, state.Message)
	assert.Equal(t, 4, state.Data[0].ID)

}

func TestController_StaleCompletionsAreDropped(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport)

	first := c.Trigger(context.Background(), filmsAt("/api/films/1/"))
	second := c.Trigger(context.Background(), filmsAt("/api/films/2/"))
	transport.waitCalls(t, 2)

	transport.release(t, "/api/films/2/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[{"episode_id":2}]}`)}, nil)
	<-second
	require.True(t, c.Snapshot().Resolved())

	transport.release(t, "/api/films/1/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[{"episode_id":1}]}`)}, nil)
	<-first

	state := c.Snapshot()
	require.True(t, state.Resolved())
	assert.Equal(t, 2, state.Data[0].ID, "older completion must not overwrite the newer one")
	assert.Equal(t, uint64(2), state.Generation())
}

func TestController_WithStaleWritesLastCompletionWins(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport, fetchstate.WithStaleWrites())

	first := c.Trigger(context.Background(), filmsAt("/api/films/1/"))
	second := c.Trigger(context.Background(), filmsAt("/api/films/2/"))
	transport.waitCalls(t, 2)

	transport.release(t, "/api/films/2/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[{"episode_id":2}]}`)}, nil)
	<-second
	transport.release(t, "/api/films/1/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[{"episode_id":1}]}`)}, nil)
	<-first

	assert.Equal(t, 1, c.Snapshot().Data[0].ID)
}

func TestController_ResetDropsInflight(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport)

	done := c.Trigger(context.Background(), filmsDescriptor())
	transport.waitCalls(t, 1)

	c.Reset()
	assert.True(t, c.Snapshot().Idle())

	transport.release(t, "/api/films/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[]}`)}, nil)
	<-done
	assert.True(t, c.Snapshot().Idle())
}

func TestController_CloseCancelsInflight(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport)

	calls := 0
	c.Subscribe(func(fetchstate.State[[]film]) { calls++ })

	done := c.Trigger(context.Background(), filmsDescriptor())
	transport.waitCalls(t, 1)

	c.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not cancel the in-flight request")
	}

	assert.True(t, c.Snapshot().Pending(), "canceled completion must not be written")
	assert.Equal(t, 1, calls)

	again := c.Trigger(context.Background(), filmsDescriptor())
	<-again
	assert.Equal(t, 1, calls, "trigger after close is a no-op")
	c.Close()
}

type step struct {
	status fetchstate.Status
	gen    uint64
}

func TestController_SubscribersSeeTransitionsInOrder(t *testing.T) {
	transport := &gatedTransport{}
	c := fetchstate.NewController[[]film](transport)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var (
		mu    sync.Mutex
		steps []step
	)
	c.Subscribe(func(s fetchstate.State[[]film]) {
		if s.Resolved() && s.Generation() == 1 {
			close(entered)
			<-unblock
		}
		mu.Lock()
		steps = append(steps, step{status: s.Status, gen: s.Generation()})
		mu.Unlock()
	})
	lastStep := func() step {
		mu.Lock()
		defer mu.Unlock()
		return steps[len(steps)-1]
	}

	first := c.Trigger(context.Background(), filmsAt("/api/films/1/"))
	transport.waitCalls(t, 1)
	transport.release(t, "/api/films/1/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[]}`)}, nil)
	<-entered

	// Lands while the subscriber is still busy with the first result.
	second := c.Trigger(context.Background(), filmsAt("/api/films/2/"))
	require.True(t, c.Snapshot().Pending())

	close(unblock)
	<-first
	assert.Equal(t, step{status: fetchstate.StatusPending, gen: 2}, lastStep())

	transport.waitCalls(t, 2)
	transport.release(t, "/api/films/2/", &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[]}`)}, nil)
	<-second

	state := c.Snapshot()
	assert.Equal(t, step{status: state.Status, gen: state.Generation()}, lastStep())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []step{
		{status: fetchstate.StatusPending, gen: 1},
		{status: fetchstate.StatusResolved, gen: 1},
		{status: fetchstate.StatusPending, gen: 2},
		{status: fetchstate.StatusResolved, gen: 2},
	}, steps)
}

func TestController_SubscriberMayTrigger(t *testing.T) {
	c := fetchstate.NewController[[]film](staticTransport(http.StatusOK, `{"results":[]}`))

	var (
		mu    sync.Mutex
		steps []step
	)
	c.Subscribe(func(s fetchstate.State[[]film]) {
		mu.Lock()
		steps = append(steps, step{status: s.Status, gen: s.Generation()})
		mu.Unlock()

		if s.Resolved() && s.Generation() == 1 {
			c.Trigger(context.Background(), filmsDescriptor())
		}
	})

	<-c.Trigger(context.Background(), filmsDescriptor())

	resolved := step{status: fetchstate.StatusResolved, gen: 2}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return steps[len(steps)-1] == resolved
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []step{
		{status: fetchstate.StatusPending, gen: 1},
		{status: fetchstate.StatusResolved, gen: 1},
	}, steps[:2])
	// The pending state of the second request may be superseded before the
	// subscriber gets to it.
	assert.LessOrEqual(t, len(steps), 4)
}

func TestController_Timeout(t *testing.T) {
	c := fetchstate.NewController[[]film](&gatedTransport{}, fetchstate.WithTimeout(20*time.Millisecond))

	state := c.Do(context.Background(), filmsDescriptor())

	require.True(t, state.Failed())
	assert.ErrorIs(t, state.Err, context.DeadlineExceeded)
}

func TestController_CallerContextCancellation(t *testing.T) {
	c := fetchstate.NewController[[]film](&gatedTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	done := c.Trigger(ctx, filmsDescriptor())
	cancel()
	<-done

	state := c.Snapshot()
	require.True(t, state.Failed())
	assert.ErrorIs(t, state.Err, context.Canceled)
}

func TestController_DescriptorIsCopied(t *testing.T) {
	seen := make(chan string, 1)
	transport := fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
		seen <- req.Headers["X-Test"]
		return &fetchstate.Response{StatusCode: http.StatusOK, Raw: []byte(`{"results":[]}`)}, nil
	})
	c := fetchstate.NewController[[]film](transport)

	d := filmsDescriptor()
	d.Request.Headers = map[string]string{"X-Test": "before"}
	done := c.Trigger(context.Background(), d)
	d.Request.Headers["X-Test"] = "after"
	<-done

	assert.Equal(t, "before", <-seen)
}

func TestController_DefaultTransformDecodesJSON(t *testing.T) {
	c := fetchstate.NewController[map[string]int](staticTransport(http.StatusOK, `{"a":1}`))

	state := c.Do(context.Background(), fetchstate.Descriptor[map[string]int]{
		Request: fetchstate.Request{Path: "/counts"},
	})

	require.True(t, state.Resolved())
	assert.Equal(t, map[string]int{"a": 1}, state.Data)
}

func TestController_ConcurrentTriggers(t *testing.T) {
	c := fetchstate.NewController[[]film](staticTransport(http.StatusOK, `{"results":[]}`))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-c.Trigger(context.Background(), filmsDescriptor())
		}()
	}
	wg.Wait()

	state := c.Snapshot()
	assert.True(t, state.Resolved())
	assert.Equal(t, uint64(20), state.Generation())
}
