package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelpulse/internal/panel"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(httptest.NewRecorder().Body, nil)), false)
}

func doHandle(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/capture", nil)

	h.HandleError(rec, req, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleErrorEngineSentinels(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid window", panel.ErrInvalidWindow, http.StatusBadRequest, TypeInvalidWindow},
		{"invalid dimension", panel.ErrInvalidDimension, http.StatusBadRequest, TypeInvalidDimension},
		{"missing parameter", panel.ErrMissingParameter, http.StatusBadRequest, TypeMissingParameter},
		{"store unavailable", fmt.Errorf("%w: disk", panel.ErrStoreUnavailable), http.StatusServiceUnavailable, TypeStoreUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doHandle(t, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
		})
	}
}

func TestHandleErrorAPIError(t *testing.T) {
	rec, body := doHandle(t, ErrValidation("issuer_id", "required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	assert.NotNil(t, body["details"])
}

func TestProblemDetailsMarshalIncludesExtensions(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad", "detail", "/x").
		WithExtension("error_code", "VALIDATION_FAILED")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	assert.Equal(t, "detail", body["detail"])
}

func TestNotFoundHandler(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)

	h.NotFound(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
