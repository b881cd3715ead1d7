package billingapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by StatusError.
var (
	// ErrRejected matches every non-2xx response.
	ErrRejected = errors.New("billing api rejected request")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("billing api resource not found")
	// ErrUnprocessable matches 422 validation failures.
	ErrUnprocessable = errors.New("billing api validation failed")
	// ErrServer matches 5xx responses.
	ErrServer = errors.New("billing api server error")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("billingapi: %s %s returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("billingapi: %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Is maps the status code onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrUnprocessable:
		return e.Code == http.StatusUnprocessableEntity
	case ErrServer:
		return e.Code >= 500
	}
	return false
}
