package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/soundsort/api/handlers"
	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/testutil/fixtures"
	"github.com/BaSui01/soundsort/types"
)

// newLabelServer 解码请求中的 fbank，并按标记返回标签
func newLabelServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != classifyPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		tensor, err := feature.DecodeFbank(body)
		if err != nil {
			handlers.WriteError(w, handlers.AsAPIError(err), nil)
			return
		}
		f, err := feature.Prepare(tensor)
		if err != nil {
			handlers.WriteError(w, handlers.AsAPIError(err), nil)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, fixtures.LabelForTag(fixtures.Tag(f)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Classify(t *testing.T) {
	srv := newLabelServer(t)
	c := New(srv.URL)

	for tag := range 3 {
		label, err := c.Classify(context.Background(), fixtures.TaggedTensor(tag))
		require.NoError(t, err)
		assert.Equal(t, fixtures.LabelForTag(tag), label)
	}
}

func TestClient_ValidationErrorEnvelope(t *testing.T) {
	srv := newLabelServer(t)
	c := New(srv.URL)

	_, err := c.ClassifyBody(context.Background(), []byte("not safetensors"))
	require.Error(t, err)

	var apiErr *types.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	assert.NotEqual(t, types.ErrInternalError, apiErr.Code)
	assert.False(t, apiErr.Retryable)
}

func TestClient_ServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  types.ErrorCode
		wantRetry bool
	}{
		{
			name: "scheduler closed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				handlers.WriteError(w, types.NewError(types.ErrServiceUnavailable, "scheduler closed").WithRetryable(true), nil)
			},
			wantCode:  types.ErrServiceUnavailable,
			wantRetry: true,
		},
		{
			name: "inference failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				handlers.WriteError(w, types.InferenceError("forward pass failed", nil), nil)
			},
			wantCode:  types.ErrInference,
			wantRetry: true,
		},
		{
			name: "proxy without envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			wantCode:  types.ErrServiceUnavailable,
			wantRetry: true,
		},
		{
			name: "rate limited without envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantCode:  types.ErrRateLimited,
			wantRetry: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL).Classify(context.Background(), fixtures.TaggedTensor(1))
			require.Error(t, err)
			assert.True(t, types.IsCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.wantRetry, types.IsRetryable(err))
		})
	}
}

func TestClient_SendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		handlers.WriteJSON(w, http.StatusOK, types.LabelMusic)
	}))
	defer srv.Close()

	label, err := New(srv.URL, WithAPIKey("k1")).Classify(context.Background(), fixtures.TaggedTensor(1))
	require.NoError(t, err)
	assert.Equal(t, types.LabelMusic, label)
	assert.Equal(t, "k1", gotKey)
}

func TestClient_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(addr, WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.Classify(context.Background(), fixtures.TaggedTensor(0))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrServiceUnavailable))
	assert.True(t, types.IsRetryable(err))
}

func TestClient_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL).Classify(ctx, fixtures.TaggedTensor(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_NormalizesAddr(t *testing.T) {
	assert.Equal(t, DefaultAddr, New("").BaseURL())
	assert.Equal(t, "http://host:8080", New("host:8080").BaseURL())
	assert.Equal(t, "https://host", New("https://host/").BaseURL())
}
