package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pavelpascari/fetchstate/internal/config"
	"github.com/pavelpascari/fetchstate/pkg/client"
	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/pavelpascari/fetchstate/pkg/middleware/auth"
	"github.com/pavelpascari/fetchstate/pkg/middleware/observability"
	"github.com/pavelpascari/fetchstate/pkg/session"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// app is the state shared by the commands of one invocation.
type app struct {
	configPath string
	baseURL    string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	forms  *forms.Validator
	out    io.Writer
	errOut io.Writer
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, forms: forms.New()}

	root := &cobra.Command{
		Use:           "lessons",
		Short:         "Run the lesson backend and fetch from it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Base URL of the lesson backend")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newServeCommand(a),
		newOpenAPICommand(a),
		newFilmsCommand(a),
		newMoviesCommand(a),
		newTasksCommand(a),
		newQuotesCommand(a),
		newQuoteCommand(a),
		newCommentsCommand(a),
		newAddQuoteCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newPasswdCommand(a),
	)

	return root
}

// load reads the config. Flags win over the file and the environment.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Client.BaseURL = a.baseURL
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logging.Logger(a.errOut)

	return nil
}

// transport builds the request pipeline: logging outermost, then tracing,
// metrics and the bearer token of sess when given.
func (a *app) transport(sess *session.Session) (fetchstate.Transport, error) {
	metrics, err := observability.Metrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("creating metrics middleware: %w", err)
	}

	middleware := []fetchstate.Middleware{
		observability.Logging(a.logger, observability.WithLogLevel(slog.LevelDebug)),
		observability.Tracing(otel.GetTracerProvider(), otel.GetTextMapPropagator()),
		metrics,
	}
	if sess != nil {
		middleware = append(middleware, auth.Bearer(sess.Token))
	}

	c := client.New(
		client.WithBaseURL(a.cfg.Client.BaseURL),
		client.WithTimeout(a.cfg.Client.Timeout),
	)

	return fetchstate.Chain(c, middleware...), nil
}

// session opens the session store and restores a saved sign-in. The
// returned close must be called when done.
func (a *app) session() (*session.Session, func(), error) {
	path := a.cfg.Session.Path
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, fmt.Errorf("locating session store: %w", err)
		}
		path = filepath.Join(dir, "fetchstate", "session.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating session directory: %w", err)
	}

	store, err := session.OpenBoltStore(path)
	if err != nil {
		return nil, nil, err
	}

	sess := session.New(store, session.WithLogger(a.logger))
	if _, err := sess.Restore(); err != nil {
		sess.Close()
		_ = store.Close()
		return nil, nil, err
	}

	return sess, func() {
		sess.Close()
		if err := store.Close(); err != nil {
			a.logger.Warn("Closing session store failed", "error", err)
		}
	}, nil
}

// check validates a form before it is sent.
func (a *app) check(form interface{}) error {
	result, err := a.forms.Check(form)
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	names := make([]string, 0, len(result.Messages))
	for name := range result.Messages {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, result.Messages[name])
	}

	return errors.New(strings.Join(messages, " "))
}

// settle prints the data of a resolved state as JSON, or returns the
// message of a failed one.
func settle[T any](a *app, state fetchstate.State[T]) error {
	switch {
	case state.Resolved():
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(state.Data)
	case state.Failed():
		a.logger.Debug("Request failed", "error", state.Err)
		return errors.New(state.Message)
	default:
		return fmt.Errorf("request did not settle: %s", state.Status)
	}
}
