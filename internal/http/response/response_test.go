package response

import (
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	JSON(w, http.StatusOK, map[string]string{"name": "test"}, logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	env := decode(t, w)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.Success)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Error)
	assert.Empty(t, env.Code)
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, []int{1, 2}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   domainerrors.Code
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad", nil) }, http.StatusBadRequest, domainerrors.CodeValidation},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "who", nil) }, http.StatusUnauthorized, domainerrors.CodeUnauthorized},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone", nil) }, http.StatusNotFound, domainerrors.CodeNotFound},
		{"rate limited", func(w http.ResponseWriter) { TooManyRequests(w, "slow", nil) }, http.StatusTooManyRequests, domainerrors.CodeRateLimited},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom", nil) }, http.StatusInternalServerError, domainerrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, string(tt.code), env.Code)
			assert.NotEmpty(t, env.Error)
			assert.Nil(t, env.Data)
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("loading image: %w", domainerrors.ValidationWithDetails("bad box", map[string]string{"field": "width"}))

	HandleError(w, err, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, string(domainerrors.CodeValidation), env.Code)
	assert.Equal(t, "bad box", env.Error)
	assert.Equal(t, map[string]any{"field": "width"}, env.Details)
}

func TestHandleError_UnknownErrorIsOpaque(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	HandleError(w, fmt.Errorf("disk on fire"), logger)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, string(domainerrors.CodeInternal), env.Code)
	assert.NotContains(t, env.Error, "disk")
}

func TestFromError_Conflict(t *testing.T) {
	status, env := FromError(domainerrors.Conflict("tag would become its own ancestor"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)
	assert.Equal(t, EnvelopeVersion, env.Version)
}
