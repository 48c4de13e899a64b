package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed request for the UI layer.
type ErrorKind int

const (
	// KindUnauthorized is a 401. Handled internally by the auth client and
	// never surfaced to page code directly.
	KindUnauthorized ErrorKind = iota

	// KindValidation is a 4xx other than 401; the server-provided detail is
	// meaningful to the user.
	KindValidation

	// KindServer is a 5xx.
	KindServer

	// KindNetwork means no response was received at all.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// APIError is a classified request failure carrying the human-readable
// message extracted from the response body.
type APIError struct {
	Kind      ErrorKind
	Status    int // 0 for network errors
	Message   string
	Body      []byte
	RequestID string
	Err       error // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a classified 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// errorBody is the structured error payload the console backend returns.
// Either field may be present depending on the failing layer.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// extractMessage pulls a human-readable message out of a failed response
// body: prefer a structured detail/message field, otherwise fall back to the
// serialized body.
func extractMessage(status int, body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return http.StatusText(status)
}

func classifyResponse(status int, body []byte, requestID string) *APIError {
	apiErr := &APIError{
		Status:    status,
		Message:   extractMessage(status, body),
		Body:      body,
		RequestID: requestID,
	}
	switch {
	case status == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case status >= 500:
		apiErr.Kind = KindServer
	default:
		apiErr.Kind = KindValidation
	}
	return apiErr
}

func networkError(err error, requestID string) *APIError {
	return &APIError{
		Kind:      KindNetwork,
		Message:   err.Error(),
		RequestID: requestID,
		Err:       err,
	}
}
