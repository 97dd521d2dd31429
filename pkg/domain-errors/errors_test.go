package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCodes(t *testing.T) {
	base := New(CodeNotFound, "event not found")
	wrapped := Wrap(base, CodeInternal, "lookup failed")

	assert.True(t, Is(wrapped, CodeInternal))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeConflict))
}

func TestIsIgnoresForeignErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CodeInternal))
	assert.False(t, Is(nil, CodeInternal))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad date")))
	assert.Equal(t, CodeConflict, CodeOf(fmt.Errorf("outer: %w", New(CodeConflict, "dup"))))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:       http.StatusBadRequest,
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeForbidden:        http.StatusForbidden,
		CodeNotFound:         http.StatusNotFound,
		CodeConflict:         http.StatusConflict,
		CodeCapacityExceeded: http.StatusConflict,
		CodeDeadlinePassed:   http.StatusConflict,
		CodeNotRegistered:    http.StatusBadRequest,
		CodeWrongDay:         http.StatusBadRequest,
		CodeUpstream:         http.StatusBadGateway,
		CodeInternal:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "event is full", MessageOf(New(CodeCapacityExceeded, "event is full")))
	assert.Equal(t, "internal server error", MessageOf(errors.New("boom")))
}
