package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// AuthFailedMessage is shown when the accounts backend gives no reason.
const AuthFailedMessage = "Authentication Failed!"

// Account endpoints, named after the identity toolkit operations.
const (
	SignUpPath         = "/v1/accounts:signUp"
	SignInPath         = "/v1/accounts:signInWithPassword"
	ChangePasswordPath = "/v1/accounts:update"
	LookupPath         = "/v1/accounts:lookup"
)

// Credentials is the result of signing up or in.
type Credentials struct {
	IDToken   string
	Email     string
	LocalID   string
	ExpiresIn time.Duration
}

// Account is the signed-in user.
type Account struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type passwordBody struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password"`
	IDToken           string `json:"idToken,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	IDToken   string `json:"idToken"`
	Email     string `json:"email"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"`
}

// SignUp creates an account.
func SignUp(email, password string) fetchstate.Descriptor[Credentials] {
	return credentials(SignUpPath, passwordBody{Email: email, Password: password, ReturnSecureToken: true})
}

// SignIn signs in with email and password.
func SignIn(email, password string) fetchstate.Descriptor[Credentials] {
	return credentials(SignInPath, passwordBody{Email: email, Password: password, ReturnSecureToken: true})
}

// ChangePassword sets a new password for the account idToken belongs to.
func ChangePassword(idToken, password string) fetchstate.Descriptor[Account] {
	return fetchstate.Descriptor[Account]{
		Request: fetchstate.Request{
			Method: http.MethodPost,
			Path:   ChangePasswordPath,
			Body:   passwordBody{IDToken: idToken, Password: password},
		},
		ErrorMessage: accountsMessage,
	}
}

// Lookup returns the account of the bearer token sent with the request.
func Lookup() fetchstate.Descriptor[Account] {
	return fetchstate.Descriptor[Account]{
		Request:      fetchstate.Request{Method: http.MethodGet, Path: LookupPath},
		ErrorMessage: accountsMessage,
	}
}

func credentials(path string, body passwordBody) fetchstate.Descriptor[Credentials] {
	return fetchstate.Descriptor[Credentials]{
		Request: fetchstate.Request{Method: http.MethodPost, Path: path, Body: body},
		Transform: fetchstate.JSON(func(raw tokenResponse) (Credentials, error) {
			if raw.IDToken == "" {
				return Credentials{}, errors.New("missing idToken")
			}
			seconds, err := strconv.Atoi(raw.ExpiresIn)
			if err != nil {
				return Credentials{}, errors.New("invalid expiresIn")
			}
			return Credentials{
				IDToken:   raw.IDToken,
				Email:     raw.Email,
				LocalID:   raw.LocalID,
				ExpiresIn: time.Duration(seconds) * time.Second,
			}, nil
		}),
		ErrorMessage: accountsMessage,
	}
}

func accountsMessage(payload []byte) string {
	if msg := fetchstate.MessageAt("error", "message")(payload); msg != "" {
		return msg
	}
	return AuthFailedMessage
}
