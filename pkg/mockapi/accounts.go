package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/middleware/auth"
	"golang.org/x/crypto/bcrypt"
)

// Accounts endpoints, named after the identity toolkit operations.
const (
	SignUpPath         = "/v1/accounts:signUp"
	SignInPath         = "/v1/accounts:signInWithPassword"
	ChangePasswordPath = "/v1/accounts:update"
	LookupPath         = "/v1/accounts:lookup"
)

// MinPasswordLength is the shortest password the accounts API accepts.
const MinPasswordLength = 6

// BearerAuth names the security scheme of token guarded routes.
const BearerAuth = "bearerAuth"

type account struct {
	localID      string
	email        string
	passwordHash []byte
}

type passwordRequest struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password"`
	IDToken           string `json:"idToken,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken,omitempty"`
}

type tokenResponse struct {
	IDToken   string `json:"idToken"`
	Email     string `json:"email"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"`
}

type accountResponse struct {
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	IDToken   string `json:"idToken,omitempty"`
	ExpiresIn string `json:"expiresIn,omitempty"`
}

func (s *Server) registerAccounts() {
	identity := []HandlerOption{
		WithErrorMapper(IdentityErrors{}),
		WithStatusCode(http.StatusOK),
		WithTags("accounts"),
	}

	POST(s.router, SignUpPath, HandlerFunc[passwordRequest, tokenResponse](s.signUp),
		append(identity, WithSummary("Create an account"))...)
	POST(s.router, SignInPath, HandlerFunc[passwordRequest, tokenResponse](s.signIn),
		append(identity, WithSummary("Sign in with email and password"))...)
	POST(s.router, ChangePasswordPath, HandlerFunc[passwordRequest, accountResponse](s.changePassword),
		append(identity, WithSummary("Change the password of the idToken account"))...)
	GET(s.router, LookupPath, HandlerFunc[struct{}, accountResponse](s.lookup),
		append(identity,
			WithSummary("Get the account of the bearer token"),
			WithSecurity(BearerAuth),
			WithMiddleware(s.tokens.HTTPMiddleware()),
		)...)
}

//nolint:gocritic // passwordRequest is the decoded request body
func (s *Server) signUp(_ context.Context, req passwordRequest) (tokenResponse, error) {
	email := normalizeEmail(req.Email)
	if err := s.checkEmail(email); err != nil {
		return tokenResponse{}, err
	}
	if err := checkPassword(req.Password); err != nil {
		return tokenResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return tokenResponse{}, err
	}

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		return tokenResponse{}, NewAccountError(CodeEmailExists)
	}
	acc := &account{localID: s.newID(), email: email, passwordHash: hash}
	s.accounts[email] = acc
	s.mu.Unlock()

	return s.issue(acc.localID, acc.email)
}

//nolint:gocritic // passwordRequest is the decoded request body
func (s *Server) signIn(_ context.Context, req passwordRequest) (tokenResponse, error) {
	email := normalizeEmail(req.Email)
	if err := s.checkEmail(email); err != nil {
		return tokenResponse{}, err
	}
	if req.Password == "" {
		return tokenResponse{}, NewAccountError(CodeMissingPassword)
	}

	s.mu.Lock()
	acc, ok := s.accounts[email]
	var found account
	if ok {
		found = *acc
	}
	s.mu.Unlock()

	if !ok {
		return tokenResponse{}, NewAccountError(CodeEmailNotFound)
	}
	// Every attempt takes a slot before the password is compared; a
	// successful one gives all of them back.
	if !s.attempts.Allow(email) {
		return tokenResponse{}, NewAccountError(CodeTooManyAttempts)
	}
	if err := bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)); err != nil {
		return tokenResponse{}, NewAccountError(CodeInvalidPassword)
	}
	s.attempts.Reset(email)

	return s.issue(found.localID, found.email)
}

//nolint:gocritic // passwordRequest is the decoded request body
func (s *Server) changePassword(_ context.Context, req passwordRequest) (accountResponse, error) {
	user, err := s.tokens.Authenticate(req.IDToken)
	if err != nil {
		return accountResponse{}, NewAccountError(auth.ErrorCode(err))
	}
	if err := checkPassword(req.Password); err != nil {
		return accountResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return accountResponse{}, err
	}

	acc, err := s.account(user.ID)
	if err != nil {
		return accountResponse{}, err
	}

	s.mu.Lock()
	acc.passwordHash = hash
	s.mu.Unlock()

	resp := accountResponse{LocalID: acc.localID, Email: acc.email}
	if req.ReturnSecureToken {
		token, err := s.issue(acc.localID, acc.email)
		if err != nil {
			return accountResponse{}, err
		}
		resp.IDToken, resp.ExpiresIn = token.IDToken, token.ExpiresIn
	}

	return resp, nil
}

func (s *Server) lookup(ctx context.Context, _ struct{}) (accountResponse, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return accountResponse{}, NewAccountError("MISSING_ID_TOKEN")
	}

	acc, err := s.account(user.ID)
	if err != nil {
		return accountResponse{}, err
	}

	return accountResponse{LocalID: acc.localID, Email: acc.email}, nil
}

// account finds an account by local id.
func (s *Server) account(localID string) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.localID == localID {
			return acc, nil
		}
	}

	return nil, NewAccountError(CodeUserNotFound)
}

func (s *Server) issue(localID, email string) (tokenResponse, error) {
	token, _, err := s.tokens.Issue(&auth.User{ID: localID, Email: email})
	if err != nil {
		return tokenResponse{}, fmt.Errorf("issuing token: %w", err)
	}

	return tokenResponse{
		IDToken:   token,
		Email:     email,
		LocalID:   localID,
		ExpiresIn: strconv.Itoa(int(s.tokens.GetConfig().TokenExpiry / time.Second)),
	}, nil
}

func (s *Server) checkEmail(email string) error {
	if email == "" {
		return NewAccountError(CodeMissingEmail)
	}
	if !s.validator.Rule("email")(email) {
		return NewAccountError(CodeInvalidEmail)
	}
	return nil
}

func checkPassword(password string) error {
	if password == "" {
		return NewAccountError(CodeMissingPassword)
	}
	if len([]rune(password)) < MinPasswordLength {
		return NewAccountError(CodeWeakPassword)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
