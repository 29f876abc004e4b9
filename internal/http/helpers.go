package http

import (
	"net/http"
	"strings"

	"github.com/charles-997/budge/internal/log"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// writeError answers with the status mapped from err. Server side failures
// are logged with the request logger; client errors are logged by the trace
// middleware only.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
	}
	resp.Write(w)
}
