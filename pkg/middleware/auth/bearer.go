package auth

import (
	"context"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Bearer returns transport middleware that sends the token returned by
// source as an Authorization header. Requests go out unchanged while
// source returns "" or when they already carry the header.
func Bearer(source func() string) fetchstate.Middleware {
	return func(next fetchstate.Transport) fetchstate.Transport {
		return fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
			token := source()
			if token == "" {
				return next.Do(ctx, req)
			}
			if _, ok := req.Headers[authorizationHeader]; ok {
				return next.Do(ctx, req)
			}

			headers := make(map[string]string, len(req.Headers)+1)
			for k, v := range req.Headers {
				headers[k] = v
			}
			headers[authorizationHeader] = bearerPrefix + token
			req.Headers = headers

			return next.Do(ctx, req)
		})
	}
}
