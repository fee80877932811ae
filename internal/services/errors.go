package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Error is a failure the caller can act on, carrying its HTTP status
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound builds a 404 error
func NotFound(format string, args ...interface{}) error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadRequest builds a 400 error
func BadRequest(format string, args ...interface{}) error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a 409 error
func Conflict(format string, args ...interface{}) error {
	return &Error{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a 401 error
func Unauthorized(format string, args ...interface{}) error {
	return &Error{Status: http.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// TooManyRequests builds a 429 error
func TooManyRequests(format string, args ...interface{}) error {
	return &Error{Status: http.StatusTooManyRequests, Message: fmt.Sprintf(format, args...)}
}

// Postgres SQLSTATE codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// AsError maps err onto an *Error when possible. Driver constraint
// violations become client errors.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return &Error{Status: http.StatusConflict, Message: "Resource already exists"}, true
		case pqForeignKeyViolation:
			return &Error{Status: http.StatusBadRequest, Message: "Invalid reference id"}, true
		}
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
