package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("backend: not found")
	ErrConflict   = errors.New("backend: conflict")
	ErrForbidden  = errors.New("backend: forbidden")
	ErrNoHearts   = errors.New("backend: no hearts left")
	ErrValidation = errors.New("backend: validation failed")
)

// APIError is a failed backend call. Fields holds field-level messages keyed
// by field name.
type APIError struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("backend: %d %s", e.Status, msg)
	}
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return fmt.Sprintf("backend: %d %s (%s)", e.Status, msg, strings.Join(parts, "; "))
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrValidation:
		return e.Status == http.StatusBadRequest && len(e.Fields) > 0
	}
	return false
}

func notFound(kind, id string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

func invalid(fields map[string][]string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: "invalid request", Fields: fields}
}

// decodeError reads the REST error envelope: a "message", "error" or "detail"
// string plus any other key holding field messages.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if len(apiErr.Message) > 200 {
			apiErr.Message = apiErr.Message[:200]
		}
		return apiErr
	}

	for _, key := range []string{"message", "error", "detail"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		var s string
		if json.Unmarshal(v, &s) == nil && apiErr.Message == "" {
			apiErr.Message = s
		}
	}

	for key, v := range raw {
		var list []string
		if json.Unmarshal(v, &list) == nil {
			addField(apiErr, key, list...)
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			addField(apiErr, key, s)
		}
	}
	return apiErr
}

func addField(e *APIError, key string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[key] = append(e.Fields[key], msgs...)
}
