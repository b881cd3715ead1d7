package httpx

import (
	"errors"
	"net/http"
)

// ErrValidation marks malformed request input.
var ErrValidation = errors.New("validation failed")

// ErrorMapping ties a sentinel error to a problem response.
type ErrorMapping struct {
	Err    error
	Status int
	Title  string
}

// RespondError writes the problem for the first mapping err matches. Detail
// carries err's message for client errors only; unmatched errors become an
// opaque 500.
func RespondError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	mappings = append(mappings, ErrorMapping{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"})
	for _, m := range mappings {
		if !errors.Is(err, m.Err) {
			continue
		}
		detail := ""
		if m.Status < 500 {
			detail = err.Error()
		}
		Problem(w, m.Status, m.Title, detail)
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
