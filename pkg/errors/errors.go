// Package errors defines common error types used throughout the Salesforce API wrapper.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// ErrNotLoggedIn is returned when an operation needs a session and none is set.
var ErrNotLoggedIn = errors.New("not logged in")

// ErrNoMoreRecords is returned by iterators once every record has been read.
var ErrNoMoreRecords = errors.New("no more records available")

// ConfigError indicates a problem with the client configuration or with
// caller-supplied arguments.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates an authentication failure: a token endpoint error body,
// a SOAP fault, or a failure to reach the login endpoint.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// ErrorCode is the OAuth2 "error" value or the SOAP faultcode
	ErrorCode string
	// Description is the OAuth2 "error_description" value or the SOAP faultstring
	Description string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

// TokenError returns the decoded token endpoint error body.
func (e *AuthError) TokenError() types.TokenErrorResponse {
	return types.TokenErrorResponse{Error: e.ErrorCode, ErrorDescription: e.Description}
}

func (e *AuthError) Error() string {
	parts := []string{}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.ErrorCode != "" {
		parts = append(parts, e.ErrorCode)
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if e.ErrorCode == "" && e.Description == "" && e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 0 {
		return "auth error"
	}
	return "auth error: " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted when the client is not ready.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
	// Err is usually ErrNotLoggedIn
	Err error
}

func (e *StateError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("state error: %s", msg)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// RequestError indicates the HTTP round trip itself failed.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response body could not be deserialized.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from Salesforce carrying its error list.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Errors holds every entry Salesforce returned. Endpoints that return a
	// single error object produce a one-element slice.
	Errors []types.ErrorResponse
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("salesforce API error (status %d)", e.StatusCode)
	}
	msgs := make([]string, len(e.Errors))
	for i, er := range e.Errors {
		msgs[i] = er.String()
	}
	return fmt.Sprintf("salesforce API error (status %d): %s", e.StatusCode, strings.Join(msgs, "; "))
}

// HasCode reports whether any returned error carries the given errorCode.
func (e *APIError) HasCode(code string) bool {
	for _, er := range e.Errors {
		if er.ErrorCode == code {
			return true
		}
	}
	return false
}
