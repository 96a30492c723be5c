// Package session keeps the signed-in user's token, persists it through a
// Store and logs out automatically when the token expires.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store keys.
const (
	TokenKey          = "token"
	ExpirationTimeKey = "expirationTime"
)

// MinRemaining is the least lifetime a stored token must have left for
// Restore to keep it.
const MinRemaining = time.Minute

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source. Expiry timers still run on wall time.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger sets the logger for login, logout and expiry events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithOnExpire registers fn to run after the session logged out because
// its token expired.
func WithOnExpire(fn func()) Option {
	return func(s *Session) {
		s.onExpire = fn
	}
}

// Session is the authentication state of one user. The zero value is not
// usable; create sessions with New.
type Session struct {
	store    Store
	now      func() time.Time
	logger   *slog.Logger
	onExpire func()

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	timer     *time.Timer
	// gen identifies the current login so an expiring timer of an earlier
	// login leaves a newer one alone.
	gen uint64
}

// New creates a logged-out session persisted in store.
func New(store Store, opts ...Option) *Session {
	s := &Session{
		store:  store,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login stores token and schedules a logout at expiresAt.
func (s *Session) Login(token string, expiresAt time.Time) error {
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(TokenKey, token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	if err := s.store.Set(ExpirationTimeKey, expiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		err = fmt.Errorf("storing expiration time: %w", err)
		if rmErr := s.store.Remove(TokenKey); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("removing token: %w", rmErr))
		}
		return err
	}

	s.start(token, expiresAt)
	s.logger.Info("logged in", slog.Time("expires_at", expiresAt))

	return nil
}

// Logout forgets the token and cancels the pending expiry.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logout()
}

// Restore loads a stored token. Tokens with MinRemaining or less left are
// removed instead. It reports whether the session is logged in afterwards.
func (s *Session) Restore() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.store.Get(TokenKey)
	if errors.Is(err, ErrNoKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading token: %w", err)
	}

	var expiresAt time.Time
	raw, err := s.store.Get(ExpirationTimeKey)
	switch {
	case err == nil:
		expiresAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			s.logger.Warn("discarding stored token", slog.String("reason", "unreadable expiration time"))
			return false, s.logout()
		}
	case errors.Is(err, ErrNoKey):
		return false, s.logout()
	default:
		return false, fmt.Errorf("reading expiration time: %w", err)
	}

	remaining := expiresAt.Sub(s.now())
	if remaining <= MinRemaining {
		s.logger.Info("discarding stored token", slog.Duration("remaining", remaining))
		return false, s.logout()
	}

	s.start(token, expiresAt)
	s.logger.Info("session restored", slog.Duration("remaining", remaining))

	return true, nil
}

// Token returns the current token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

// IsLoggedIn reports whether the session holds a token.
func (s *Session) IsLoggedIn() bool {
	return s.Token() != ""
}

// ExpiresAt returns the expiry of the current token.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expiresAt
}

// Close cancels the pending expiry without touching the store, so the
// session can be restored later.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimer()
	s.gen++
}

// start must be called with s.mu held.
func (s *Session) start(token string, expiresAt time.Time) {
	s.stopTimer()
	s.gen++
	s.token = token
	s.expiresAt = expiresAt

	gen := s.gen
	s.timer = time.AfterFunc(expiresAt.Sub(s.now()), func() { s.expire(gen) })
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	err := s.logout()
	onExpire := s.onExpire
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("logging out expired session", slog.Any("error", err))
	} else {
		s.logger.Info("session expired")
	}
	if onExpire != nil {
		onExpire()
	}
}

// logout must be called with s.mu held.
func (s *Session) logout() error {
	s.stopTimer()
	s.gen++
	s.token = ""
	s.expiresAt = time.Time{}

	if err := s.store.Remove(TokenKey); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	if err := s.store.Remove(ExpirationTimeKey); err != nil {
		return fmt.Errorf("removing expiration time: %w", err)
	}

	return nil
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ExpiryFromToken reads the exp claim of a JWT without verifying it.
func ExpiryFromToken(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}

	return exp.Time, nil
}
