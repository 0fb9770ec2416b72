package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/soundsort/batch"
	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/internal/cache"
	"github.com/BaSui01/soundsort/testutil"
	"github.com/BaSui01/soundsort/testutil/fixtures"
	"github.com/BaSui01/soundsort/testutil/mocks"
	"github.com/BaSui01/soundsort/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

func newScheduler(t *testing.T, infer batch.Inferencer, start bool) *batch.Scheduler {
	t.Helper()
	s, err := batch.NewScheduler(batch.Config{BatchSize: 4, MaxWait: 5 * time.Millisecond}, infer,
		batch.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	if start {
		require.NoError(t, s.Start(testutil.TestContext(t)))
	}
	return s
}

func post(h *ClassifyHandler, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.HandleClassify(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// headerOnlyBundle 构造只有头部、数据区为空的 safetensors 请求体
func headerOnlyBundle(header string) []byte {
	body := make([]byte, 8, 8+len(header))
	binary.LittleEndian.PutUint64(body, uint64(len(header)))
	return append(body, header...)
}

type countingRecorder struct {
	hits, misses atomic.Int64
}

func (c *countingRecorder) RecordCacheHit(string)  { c.hits.Add(1) }
func (c *countingRecorder) RecordCacheMiss(string) { c.misses.Add(1) }

type failingCache struct{}

func (failingCache) Get(context.Context, string) (types.Label, error) {
	return types.LabelUnknown, errors.New("connection reset")
}
func (failingCache) Put(context.Context, string, types.Label) error { return errors.New("connection reset") }

// =============================================================================
// 🧪 ClassifyHandler 测试
// =============================================================================

func TestClassifyHandler_ReturnsLabelString(t *testing.T) {
	h := NewClassifyHandler(newScheduler(t, mocks.NewMockInferencer(), true), zaptest.NewLogger(t))

	for tag, want := range []string{`"Speech"`, `"Music"`, `"Noise"`} {
		w := post(h, fixtures.FbankBody(fixtures.TaggedTensor(tag)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		assert.JSONEq(t, want, w.Body.String())
	}
}

func TestClassifyHandler_ValidationErrors(t *testing.T) {
	infer := mocks.NewMockInferencer()
	h := NewClassifyHandler(newScheduler(t, infer, true), zaptest.NewLogger(t))

	wrongBins := feature.Tensor{DType: feature.DTypeF32, Shape: []int{4, 64}, Data: make([]byte, 4*64*4)}
	wrongType := feature.Tensor{DType: feature.DTypeF64, Shape: []int{4, 128}, Data: make([]byte, 4*128*8)}
	otherName, err := feature.EncodeBundle(map[string]feature.Tensor{"mfcc": fixtures.ZeroTensor(4)}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", nil},
		{"garbage", []byte("definitely not safetensors")},
		{"missing fbank", otherName},
		{"wrong mel bins", fixtures.FbankBody(wrongBins)},
		{"wrong dtype", fixtures.FbankBody(wrongType)},
		{"byte size overflow", headerOnlyBundle(`{"fbank":{"dtype":"F32","shape":[36028797018963968,128],"data_offsets":[0,0]}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(types.ErrValidation), errorCode(t, w))
		})
	}
	assert.Empty(t, infer.Calls(), "invalid input never reaches the scheduler")
}

func TestClassifyHandler_BodyTooLarge(t *testing.T) {
	h := NewClassifyHandler(newScheduler(t, mocks.NewMockInferencer(), true), nil, WithMaxBodyBytes(1024))

	w := post(h, fixtures.FbankBody(fixtures.TaggedTensor(1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, string(types.ErrPayloadTooLarge), errorCode(t, w))
}

func TestClassifyHandler_MethodNotAllowed(t *testing.T) {
	h := NewClassifyHandler(newScheduler(t, mocks.NewMockInferencer(), false), nil)

	w := httptest.NewRecorder()
	h.HandleClassify(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestClassifyHandler_InferenceFailure(t *testing.T) {
	infer := mocks.NewMockInferencer().WithErrorOn(1, errors.New("device lost"))
	h := NewClassifyHandler(newScheduler(t, infer, true), zaptest.NewLogger(t))

	w := post(h, fixtures.FbankBody(fixtures.TaggedTensor(1)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInference), errorCode(t, w))

	w = post(h, fixtures.FbankBody(fixtures.TaggedTensor(1)))
	assert.Equal(t, http.StatusOK, w.Code, "later batches are unaffected")
}

func TestClassifyHandler_SchedulerClosed(t *testing.T) {
	s := newScheduler(t, mocks.NewMockInferencer(), true)
	require.NoError(t, s.Close())
	h := NewClassifyHandler(s, zaptest.NewLogger(t))

	w := post(h, fixtures.FbankBody(fixtures.TaggedTensor(1)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(types.ErrServiceUnavailable), errorCode(t, w))
}

func TestClassifyHandler_ClientGone(t *testing.T) {
	gate := make(chan struct{})
	s := newScheduler(t, mocks.NewMockInferencer().WithGate(gate), true)
	t.Cleanup(func() { close(gate) })
	h := NewClassifyHandler(s, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(fixtures.FbankBody(fixtures.TaggedTensor(1)))).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandleClassify(w, r)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, string(types.ErrTimeout), errorCode(t, w))
	assert.Equal(t, int64(1), s.Stats().Submitted, "the request stays admitted")
}

func TestClassifyHandler_LabelCache(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(context.Background(), cache.Config{Addr: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	infer := mocks.NewMockInferencer()
	recorder := &countingRecorder{}
	h := NewClassifyHandler(newScheduler(t, infer, true), zaptest.NewLogger(t),
		WithLabelCache(cache.NewLabelCache(manager, time.Hour, nil), recorder))

	body := fixtures.FbankBody(fixtures.TaggedTensor(1))
	for i := 0; i < 3; i++ {
		w := post(h, body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `"Music"`, w.Body.String())
	}

	assert.Len(t, infer.Calls(), 1, "repeated features are answered from the cache")
	assert.Equal(t, int64(2), recorder.hits.Load())
	assert.Equal(t, int64(1), recorder.misses.Load())
	assert.Len(t, mr.Keys(), 1)
}

func TestClassifyHandler_CacheFailureFallsBack(t *testing.T) {
	infer := mocks.NewMockInferencer()
	recorder := &countingRecorder{}
	h := NewClassifyHandler(newScheduler(t, infer, true), zaptest.NewLogger(t),
		WithLabelCache(failingCache{}, recorder))

	w := post(h, fixtures.FbankBody(fixtures.TaggedTensor(2)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"Noise"`, w.Body.String())
	assert.Len(t, infer.Calls(), 1)
	assert.Equal(t, int64(1), recorder.misses.Load())
}
