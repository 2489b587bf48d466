package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/glestaris/ice/pkg/types"
)

// APIError is the single error kind returned by registry calls. StatusCode
// is zero when no response was received.
type APIError struct {
	StatusCode int
	Reason     string
	Body       []byte
	Err        error
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"_error"`
	Issues types.Issues `json:"_issues"`
}

func (e *APIError) Error() string {
	if issues := e.Issues(); e.IsValidation() && len(issues) > 0 {
		return "Validation error: " + issues.String()
	}
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Reason, e.Err)
		}
		return e.Reason
	}
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Reason)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the registry answered 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsValidation reports whether the registry rejected the document
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}

// Issues returns the per-field validation issues carried by the body
func (e *APIError) Issues() types.Issues {
	var body errorBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return nil
	}
	return body.Issues
}

// IsNotFound reports whether err is an APIError for a missing document
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// newResponseError builds an APIError from a non-2xx response
func newResponseError(code int, body []byte) *APIError {
	reason := http.StatusText(code)
	var decoded errorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		reason = decoded.Error.Message
	}
	return &APIError{StatusCode: code, Reason: reason, Body: body}
}
