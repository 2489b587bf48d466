package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/glestaris/ice/pkg/types"
)

// Status values of the _status envelope field
const (
	StatusOK  = "OK"
	StatusErr = "ERR"
)

type (
	// HTTPResponse is a wrapper for http.ResponseWriter which provides access
	// to several convenience methods
	HTTPResponse struct {
		http.ResponseWriter
	}

	// ErrorBody is the envelope of every error response
	ErrorBody struct {
		Status string       `json:"_status"`
		Error  ErrorDetails `json:"_error"`
		Issues types.Issues `json:"_issues,omitempty"`
	}

	// ErrorDetails carries the HTTP code and a human readable reason
	ErrorDetails struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	// CreatedBody is returned by successful POSTs
	CreatedBody struct {
		Status  string    `json:"_status"`
		ID      string    `json:"_id"`
		Created time.Time `json:"_created"`
		Updated time.Time `json:"_updated"`
		ETag    string    `json:"_etag"`
	}

	// ListBody wraps collection responses
	ListBody[T any] struct {
		Items []T `json:"_items"`
	}
)

// JSON writes appropriate headers and JSON body to the http response
func (hr HTTPResponse) JSON(code int, obj any) {
	hr.Header().Set("Content-Type", "application/json")
	hr.WriteHeader(code)
	_ = json.NewEncoder(hr).Encode(obj)
}

// JSONError writes an error envelope with the given code and message
func (hr HTTPResponse) JSONError(code int, message string) {
	hr.JSON(code, ErrorBody{
		Status: StatusErr,
		Error:  ErrorDetails{Code: code, Message: message},
	})
}

// JSONIssues writes a 422 validation failure listing every issue
func (hr HTTPResponse) JSONIssues(issues types.Issues) {
	code := http.StatusUnprocessableEntity
	hr.JSON(code, ErrorBody{
		Status: StatusErr,
		Error:  ErrorDetails{Code: code, Message: "Insertion failure: 1 document(s) contain(s) error(s)"},
		Issues: issues,
	})
}

// JSONCreated writes the 201 envelope for a freshly stored document
func (hr HTTPResponse) JSONCreated(doc types.Document) {
	meta := doc.Meta()
	hr.JSON(http.StatusCreated, CreatedBody{
		Status:  StatusOK,
		ID:      meta.ID,
		Created: meta.Created,
		Updated: meta.Updated,
		ETag:    meta.ETag,
	})
}

// Text writes a plain text body
func (hr HTTPResponse) Text(code int, body string) {
	hr.Header().Set("Content-Type", "text/plain; charset=utf-8")
	hr.WriteHeader(code)
	_, _ = hr.Write([]byte(body))
}
