package client

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
)

// handlerRoundTripper serves requests through an http.Handler using a
// response recorder, so a client can talk to a server without a socket.
type handlerRoundTripper struct {
	handler http.Handler
}

// RoundTrip implements http.RoundTripper.
func (rt *handlerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	recorder := httptest.NewRecorder()
	rt.handler.ServeHTTP(recorder, req)

	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	result := recorder.Result()
	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, err
	}
	result.Body = io.NopCloser(bytes.NewReader(body))
	result.Request = req

	return result, nil
}

// NewInProcess creates a client whose requests are served by handler.
// Relative paths are resolved against http://in-process.
func NewInProcess(handler http.Handler, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL("http://in-process"), WithHandler(handler)}, opts...)

	return New(opts...)
}
