package fetchtest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay(t *testing.T) {
	r := Respond(http.StatusCreated, `{"name":"k1"}`)
	assert.Equal(t, fetchstate.Request{}, r.Last())

	resp, err := r.Do(context.Background(), fetchstate.Request{Method: http.MethodPost, Path: "/quotes.json"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name":"k1"}`, string(resp.Raw))

	_, err = r.Do(context.Background(), fetchstate.Request{Path: "/quotes.json"})
	require.NoError(t, err)

	assert.Len(t, r.Requests(), 2)
	assert.Equal(t, "/quotes.json", r.Last().Path)
	assert.Equal(t, "", r.Last().Method)

	t.Run("zero_value", func(t *testing.T) {
		resp, err := (&Replay{}).Do(context.Background(), fetchstate.Request{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("fail", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Fail(boom).Do(context.Background(), fetchstate.Request{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestMustHelpers(t *testing.T) {
	ok := fetchstate.Descriptor[string]{Request: fetchstate.Request{Path: "/name"}}

	state := MustSettle(t, Respond(http.StatusOK, `"max"`), ok)
	assert.True(t, state.Resolved())

	assert.Equal(t, "max", MustResolve(t, Respond(http.StatusOK, `"max"`), ok))

	failing := fetchstate.Descriptor[string]{
		Request:      fetchstate.Request{Path: "/name"},
		ErrorMessage: fetchstate.MessageAt("error"),
	}
	assert.Equal(t, "Permission denied", MustFail(t, Respond(http.StatusUnauthorized, `{"error":"Permission denied"}`), failing))
}
