package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

// APIError contains details about a failed GitHub request.
// It unwraps to exactly one profile sentinel (ErrProfileNotFound, ErrUnauthorized,
// ErrRateLimited, ErrUpstream) plus the transport error that caused it, if any.
//
//nolint:govet // fieldalignment: intentional layout for readability
type APIError struct {
	StatusCode     int       // HTTP status, 0 for GraphQL-level or network failures
	Type           string    // GraphQL error type, e.g. NOT_FOUND
	Message        string    // Provider message
	RateLimitReset time.Time // Zero unless GitHub sent X-Ratelimit-Reset

	kind  error
	cause error
}

func (e *APIError) Error() string {
	switch {
	case errors.Is(e.kind, profile.ErrRateLimited) && !e.RateLimitReset.IsZero():
		return fmt.Sprintf("GitHub API rate limited (resets at %s): %s", e.RateLimitReset.Format(time.RFC3339), e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("GitHub API error %d: %s", e.StatusCode, e.Message)
	case e.Type != "":
		return fmt.Sprintf("GitHub GraphQL error %s: %s", e.Type, e.Message)
	default:
		return "GitHub API request failed: " + e.Message
	}
}

// Unwrap exposes the taxonomy sentinel and the underlying cause to errors.Is/As.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func upstreamError(msg string, cause error) *APIError {
	return &APIError{Message: msg, kind: profile.ErrUpstream, cause: cause}
}

// statusKind maps an HTTP status to the error taxonomy.
func statusKind(code int, body string) error {
	switch code {
	case http.StatusUnauthorized:
		return profile.ErrUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		return profile.ErrRateLimited
	}
	if strings.Contains(body, "Bad credentials") {
		return profile.ErrUnauthorized
	}
	return profile.ErrUpstream
}

// graphQLError is one entry of a GraphQL response's errors array.
type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// typeKind maps GitHub's GraphQL error types. Returns nil for unknown types.
func typeKind(t string) error {
	switch t {
	case "NOT_FOUND":
		return profile.ErrProfileNotFound
	case "RATE_LIMITED", "FORBIDDEN":
		return profile.ErrRateLimited
	case "UNAUTHENTICATED":
		return profile.ErrUnauthorized
	default:
		return nil
	}
}

// messageKind is a best-effort fallback for errors that carry no type.
func messageKind(msg string) error {
	switch {
	case strings.Contains(msg, "Could not resolve to a User"), strings.Contains(msg, "NOT_FOUND"):
		return profile.ErrProfileNotFound
	case strings.Contains(msg, "Bad credentials"):
		return profile.ErrUnauthorized
	default:
		return profile.ErrUpstream
	}
}

// classifyGraphQL converts a non-empty GraphQL errors array into an APIError.
// Typed errors win over message matching.
func classifyGraphQL(errs []graphQLError) *APIError {
	for _, e := range errs {
		if kind := typeKind(e.Type); kind != nil {
			return &APIError{Type: e.Type, Message: e.Message, kind: kind}
		}
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	msg := strings.Join(msgs, "; ")
	return &APIError{Type: errs[0].Type, Message: msg, kind: messageKind(msg)}
}

// isRetryableError returns true for transient failures. Classified provider answers
// (auth, quota, not found) are never retried.
func isRetryableError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case 0:
		// Transport failures carry a cause; GraphQL-level errors do not.
		return apiErr.cause != nil && errors.Is(apiErr.kind, profile.ErrUpstream)
	default:
		return false
	}
}
