package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"podium/pkg/platform/httputil"
)

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: code, ErrorDescription: description})
}

// routePattern labels metrics with the matched chi pattern, not the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
