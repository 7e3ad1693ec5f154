package backend

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantFields map[string][]string
	}{
		{"message", 400, `{"message":"bad things"}`, "bad things", nil},
		{"error key", 403, `{"error":"nope"}`, "nope", nil},
		{"detail key", 404, `{"detail":"Not found."}`, "Not found.", nil},
		{"field errors", 400, `{"title":["This field is required."],"price":"must be positive"}`, "",
			map[string][]string{"title": {"This field is required."}, "price": {"must be positive"}}},
		{"non json", 502, "<html>Bad Gateway</html>", "<html>Bad Gateway</html>", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := decodeError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, tt.wantFields, e.Fields)
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	assert.True(t, errors.Is(&APIError{Status: http.StatusNotFound}, ErrNotFound))
	assert.True(t, errors.Is(&APIError{Status: http.StatusConflict}, ErrConflict))
	assert.True(t, errors.Is(&APIError{Status: http.StatusForbidden}, ErrForbidden))
	assert.True(t, errors.Is(invalid(map[string][]string{"a": {"b"}}), ErrValidation))
	assert.False(t, errors.Is(&APIError{Status: http.StatusBadRequest}, ErrValidation))
	assert.False(t, errors.Is(&APIError{Status: http.StatusInternalServerError}, ErrNotFound))
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "backend: 404 Not Found", (&APIError{Status: 404}).Error())
	e := &APIError{Status: 400, Message: "invalid", Fields: map[string][]string{"b": {"x"}, "a": {"y", "z"}}}
	assert.Equal(t, "backend: 400 invalid (a: y, z; b: x)", e.Error())
}
