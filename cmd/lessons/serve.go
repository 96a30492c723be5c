package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pavelpascari/fetchstate/pkg/middleware/auth"
	"github.com/pavelpascari/fetchstate/pkg/middleware/ratelimit"
	"github.com/pavelpascari/fetchstate/pkg/mockapi"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lesson backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			listener, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), a, listener)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on")

	return cmd
}

// newBackend builds the lesson backend from the server and auth config.
func newBackend(a *app) *mockapi.Server {
	secret := a.cfg.Auth.TokenSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	tokens := auth.NewJWTMiddleware([]byte(secret), auth.WithTokenExpiry(a.cfg.Auth.TokenTTL))

	opts := []mockapi.Option{mockapi.WithLogger(a.logger), mockapi.WithTokens(tokens)}
	if n := a.cfg.Server.RequestsPerMinute; n > 0 {
		opts = append(opts, mockapi.WithRateLimit(ratelimit.PerMinute(n)))
	}

	return mockapi.New(opts...)
}

// serve runs the backend on listener until ctx is done.
func serve(ctx context.Context, a *app, listener net.Listener) error {
	srv := &http.Server{
		Handler:           newBackend(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Serving lessons API", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	a.logger.Info("Lessons API stopped")

	return nil
}
