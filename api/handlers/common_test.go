package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/soundsort/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *types.Error
		expectedStatus int
	}{
		{"validation", types.ValidationError("fbank must be 2-D, got 3 dims"), http.StatusBadRequest},
		{"stack", types.StackError("item 2 has 512 frames"), http.StatusInternalServerError},
		{"inference", types.InferenceError("forward pass failed", errors.New("oom")), http.StatusInternalServerError},
		{"unavailable", types.NewError(types.ErrServiceUnavailable, "scheduler closed"), http.StatusServiceUnavailable},
		{"explicit status wins", types.NewError(types.ErrInvalidRequest, "too big").WithHTTPStatus(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zaptest.NewLogger(t))

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.err.Code), resp.Error.Code)
			assert.Equal(t, tt.err.Message, resp.Error.Message)
		})
	}
}

func TestWriteError_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, http.StatusTooManyRequests, types.ErrRateLimited, "slow down", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"code":"RATE_LIMITED","message":"slow down"}`, string(mustJSON(t, decodeResponse(t, w).Error)))
}

func TestAsAPIError(t *testing.T) {
	structured := types.ValidationError("bad")
	assert.Same(t, structured, AsAPIError(structured))

	wrapped := AsAPIError(errors.Join(errors.New("ctx"), structured))
	assert.Equal(t, types.ErrValidation, wrapped.Code)

	plain := AsAPIError(errors.New("boom"))
	assert.Equal(t, types.ErrInternalError, plain.Code)
	assert.EqualError(t, plain.Cause, "boom")
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[types.ErrorCode]int{
		types.ErrValidation:         http.StatusBadRequest,
		types.ErrInvalidRequest:     http.StatusBadRequest,
		types.ErrUnauthorized:       http.StatusUnauthorized,
		types.ErrPayloadTooLarge:    http.StatusRequestEntityTooLarge,
		types.ErrRateLimited:        http.StatusTooManyRequests,
		types.ErrStack:              http.StatusInternalServerError,
		types.ErrInference:          http.StatusInternalServerError,
		types.ErrInternalError:      http.StatusInternalServerError,
		types.ErrServiceUnavailable: http.StatusServiceUnavailable,
		types.ErrTimeout:            http.StatusGatewayTimeout,
		types.ErrorCode("UNKNOWN"):  http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, mapErrorCodeToHTTPStatus(code), string(code))
	}
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rw.StatusCode)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, rw.Written)
	assert.Equal(t, int64(2), rw.BytesWritten)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
