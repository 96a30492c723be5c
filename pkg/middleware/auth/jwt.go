// Package auth issues and validates the ID tokens of the lesson backend and
// attaches them to outgoing requests.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors
var (
	ErrTokenMissing     = errors.New("authentication token missing")
	ErrTokenInvalid     = errors.New("authentication token invalid")
	ErrTokenExpired     = errors.New("authentication token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// User is the account an ID token was issued for.
type User struct {
	ID    string `json:"localId"`
	Email string `json:"email"`
}

type contextKey string

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// UserContextKey is the context key HTTPMiddleware stores the *User under.
const UserContextKey contextKey = "user"

// UserFromContext returns the user stored by HTTPMiddleware.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(UserContextKey).(*User)
	return user, ok
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret        []byte
	SigningMethod jwt.SigningMethod
	TokenExpiry   time.Duration
	Issuer        string
	Now           func() time.Time
}

// JWTMiddleware issues tokens and guards handlers with them.
type JWTMiddleware struct {
	config JWTConfig
}

// JWTOption configures JWT middleware
type JWTOption func(*JWTConfig)

// WithSigningMethod sets the HMAC method tokens are signed with.
func WithSigningMethod(method jwt.SigningMethod) JWTOption {
	return func(c *JWTConfig) {
		c.SigningMethod = method
	}
}

// WithTokenExpiry sets the lifetime of issued tokens
func WithTokenExpiry(expiry time.Duration) JWTOption {
	return func(c *JWTConfig) {
		c.TokenExpiry = expiry
	}
}

// WithIssuer sets the iss claim of issued tokens. Validation then requires it.
func WithIssuer(issuer string) JWTOption {
	return func(c *JWTConfig) {
		c.Issuer = issuer
	}
}

// WithClock sets the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) JWTOption {
	return func(c *JWTConfig) {
		c.Now = now
	}
}

// NewJWTMiddleware creates a new JWT middleware with the given secret and options
func NewJWTMiddleware(secret []byte, opts ...JWTOption) *JWTMiddleware {
	config := JWTConfig{
		Secret:        secret,
		SigningMethod: jwt.SigningMethodHS256,
		TokenExpiry:   1 * time.Hour,
		Now:           time.Now,
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &JWTMiddleware{config: config}
}

// GetConfig returns the middleware configuration
func (m *JWTMiddleware) GetConfig() JWTConfig {
	return m.config
}

// Issue signs an ID token for user and returns it with its expiry.
func (m *JWTMiddleware) Issue(user *User) (string, time.Time, error) {
	now := m.config.Now()
	expiresAt := now.Add(m.config.TokenExpiry).Truncate(time.Second)

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"sub":     user.ID,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}

	signed, err := m.signToken(jwt.NewWithClaims(m.config.SigningMethod, claims))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ExtractToken returns the bearer token of the Authorization header.
func (m *JWTMiddleware) ExtractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		return "", false
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", false
	}

	return token, true
}

// ValidateToken validates a JWT token and returns claims
func (m *JWTMiddleware) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.config.SigningMethod.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := m.config.SigningMethod.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method: %v", m.config.SigningMethod.Alg())
		}
		return m.config.Secret, nil
	}, parserOpts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// Authenticate validates tokenString and returns the user it was issued for.
func (m *JWTMiddleware) Authenticate(tokenString string) (*User, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return userFromClaims(claims)
}

// HTTPMiddleware returns HTTP middleware that rejects requests without a
// valid token and stores the user in the request context.
func (m *JWTMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := m.ExtractToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "MISSING_ID_TOKEN")
				return
			}

			user, err := m.Authenticate(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, ErrorCode(err))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrorCode maps a validation error to the identity-toolkit error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "MISSING_ID_TOKEN"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	default:
		return "INVALID_ID_TOKEN"
	}
}

// signToken signs token with the shared secret.
func (m *JWTMiddleware) signToken(token *jwt.Token) (string, error) {
	if _, ok := m.config.SigningMethod.(*jwt.SigningMethodHMAC); !ok {
		return "", fmt.Errorf("unsupported signing method: %v", m.config.SigningMethod.Alg())
	}
	return token.SignedString(m.config.Secret)
}

// writeError writes an error body in the shape clients read messages from.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	})
}

// userFromClaims reads the user of a validated token. user_id wins over sub.
func userFromClaims(claims jwt.MapClaims) (*User, error) {
	userID, ok := claims["user_id"].(string)
	if !ok {
		if sub, ok := claims["sub"].(string); ok {
			userID = sub
		} else {
			return nil, ErrInvalidClaims
		}
	}

	email, _ := claims["email"].(string)

	return &User{
		ID:    userID,
		Email: email,
	}, nil
}
