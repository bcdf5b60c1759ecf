package llm

import (
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed backend call. Expected, recoverable API
// failures are folded into the query result contract instead of being
// propagated as errors.
type ErrorKind int

const (
	ErrKindGeneric ErrorKind = iota
	ErrKindAuthentication
	ErrKindInvalidRequest
	ErrKindRateLimited
	ErrKindConnection
)

// Classify maps a go-openai error onto the engine's error taxonomy. Errors
// without an HTTP status (transport failures, timeouts) count as connection
// failures.
func Classify(err error) ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return ErrKindConnection
		}
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return ErrKindConnection
}

func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrKindAuthentication
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrKindInvalidRequest
	case http.StatusTooManyRequests:
		return ErrKindRateLimited
	default:
		return ErrKindGeneric
	}
}

// Describe renders a failed backend call as the natural-language error text
// surfaced in place of the assistant response.
func Describe(err error) string {
	switch Classify(err) {
	case ErrKindAuthentication:
		return "The backend rejected the credentials: " + err.Error()
	case ErrKindInvalidRequest:
		return "The backend rejected the request: " + err.Error()
	case ErrKindRateLimited:
		return "The backend is rate limiting requests, please try again later: " + err.Error()
	case ErrKindConnection:
		return "Could not reach the backend: " + err.Error()
	default:
		return "The backend call failed: " + err.Error()
	}
}
