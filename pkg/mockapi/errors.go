package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/pavelpascari/fetchstate/pkg/forms"
)

// RequestError is a request that could not be read.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// NotFoundError is a missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// AccountError is a rejected accounts call. Code is the identity toolkit
// reason, e.g. EMAIL_EXISTS.
type AccountError struct {
	Status int
	Code   string
}

func (e *AccountError) Error() string {
	return e.Code
}

// NewAccountError creates a 400 accounts error.
func NewAccountError(code string) *AccountError {
	return &AccountError{Status: http.StatusBadRequest, Code: code}
}

// Identity toolkit reasons.
const (
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeInvalidPassword = "INVALID_PASSWORD"
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeMissingEmail    = "MISSING_EMAIL"
	CodeMissingPassword = "MISSING_PASSWORD"
	CodeWeakPassword    = "WEAK_PASSWORD : Password should be at least 6 characters"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeTooManyAttempts = "TOO_MANY_ATTEMPTS_TRY_LATER"
)

// DatabaseErrors writes realtime-database style bodies: {"error": "..."}.
type DatabaseErrors struct{}

type databaseError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MapError maps err to a status and body.
func (DatabaseErrors) MapError(err error) (int, interface{}) {
	var valErr *forms.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, databaseError{Error: firstMessage(valErr.Fields), Fields: valErr.Fields}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, databaseError{Error: reqErr.Message}
	}

	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, databaseError{Error: nfErr.Error()}
	}

	return http.StatusInternalServerError, databaseError{Error: "Internal server error"}
}

// IdentityErrors writes identity toolkit style bodies:
// {"error": {"code": 400, "message": "EMAIL_EXISTS"}}.
type IdentityErrors struct{}

type identityError struct {
	Error identityErrorBody `json:"error"`
}

type identityErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MapError maps err to a status and body.
func (IdentityErrors) MapError(err error) (int, interface{}) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"

	var accErr *AccountError
	var reqErr *RequestError
	var valErr *forms.ValidationError
	switch {
	case errors.As(err, &accErr):
		status, code = accErr.Status, accErr.Code
	case errors.As(err, &reqErr), errors.As(err, &valErr):
		status, code = http.StatusBadRequest, CodeInvalidArgument
	}

	return status, identityError{Error: identityErrorBody{Code: status, Message: code}}
}

// CatalogErrors writes films catalog style bodies: {"detail": "..."}.
type CatalogErrors struct{}

type catalogError struct {
	Detail string `json:"detail"`
}

// MapError maps err to a status and body.
func (CatalogErrors) MapError(err error) (int, interface{}) {
	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, catalogError{Detail: "Not found"}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, catalogError{Detail: reqErr.Message}
	}

	return http.StatusInternalServerError, catalogError{Detail: "Internal server error"}
}

// firstMessage returns the message of the first field by name.
func firstMessage(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return "Validation failed"
	}
	return fields[names[0]]
}
