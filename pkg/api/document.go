package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/glestaris/ice/pkg/types"
)

const maxBodyBytes = 1 << 20

var errNotObject = errors.New("request body must be a JSON object")

// decodeDocument reads the request body as a single JSON object
func decodeDocument(r *http.Request) (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNotObject
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotObject
		}
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if doc == nil {
		return nil, errNotObject
	}
	return doc, nil
}

// where is an equality filter over the transport form of a document
type where map[string]any

// parseWhere reads the optional ?where={"field": value} query parameter
func parseWhere(r *http.Request) (where, error) {
	raw := r.URL.Query().Get("where")
	if raw == "" {
		return nil, nil
	}
	var w where
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("where must be a JSON object: %w", err)
	}
	return w, nil
}

// sessionID returns the session_id filter when it is a plain string
func (w where) sessionID() (string, bool) {
	id, ok := w["session_id"].(string)
	return id, ok
}

func (w where) matches(doc types.Document) (bool, error) {
	if len(w) == 0 {
		return true, nil
	}
	fields, err := types.ToDocument(doc)
	if err != nil {
		return false, err
	}
	for key, want := range w {
		got := fields[key]
		if key == types.FieldID {
			got = doc.Meta().ID
		}
		if !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}
