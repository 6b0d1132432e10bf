package testutil

import (
	"net/http"
	"time"

	id "podium/pkg/domain"
	"podium/pkg/requestcontext"
)

// WithAdmin marks the request as coming from an authenticated admin, as the
// admin middleware would.
func WithAdmin(req *http.Request, adminID id.AdminID) *http.Request {
	return req.WithContext(requestcontext.WithAdminID(req.Context(), adminID))
}

// WithRequestTime pins requestcontext.Now for the request.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

// WithClientIP sets the client address the rate limiter and audit log see.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "testutil"))
}
