package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// ErrRemote is matched by every APIError
var ErrRemote = errors.New("remote call failed")

// APIError describes a failed CRM call. Body keeps the raw response detail so
// callers can log it the way the CRM reported it.
type APIError struct {
	Endpoint      string
	StatusCode    int
	Message       string
	Category      string
	CorrelationID string
	Body          string
	Err           error
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, msg)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	return target == ErrRemote
}

// Retryable reports whether the CRM refused the request before acting on it.
// Only a rate limit qualifies; a 5xx may arrive after the records were written.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether a failed create is safe to send again
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// ResponseBody returns the raw CRM response detail carried by err, if any
func ResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}

// newAPIError builds an APIError from a non-2xx response, pulling the
// CRM's standard error envelope out of the body when present.
func newAPIError(endpoint string, resp *resty.Response) *APIError {
	apiErr := &APIError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode(),
		Message:    resp.Status(),
		Body:       string(resp.Body()),
	}

	var envelope struct {
		Status        string `json:"status"`
		Message       string `json:"message"`
		Category      string `json:"category"`
		CorrelationID string `json:"correlationId"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
		apiErr.Category = envelope.Category
		apiErr.CorrelationID = envelope.CorrelationID
	}

	return apiErr
}
