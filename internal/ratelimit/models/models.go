// Package models holds rate limit results, keys and response bodies.
package models

import (
	"strings"
	"time"
)

// RateLimitResult is the outcome of one limiter check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the API response when a limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// SanitizeKeySegment escapes the ':' delimiter so user-controlled segments
// cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewSubmitKey is the bucket key for public submissions from one client.
func NewSubmitKey(clientIP string) string {
	return "ratelimit:submit:" + SanitizeKeySegment(clientIP)
}
