package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/batch"
	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/internal/cache"
	"github.com/BaSui01/soundsort/internal/ctxkeys"
	"github.com/BaSui01/soundsort/types"
)

// DefaultMaxBodyBytes 请求体默认上限
const DefaultMaxBodyBytes int64 = 64 << 20

const labelCacheType = "label"

// =============================================================================
// 🎧 分类 Handler
// =============================================================================

// Submitter 接收已校验的特征并返回结果句柄
type Submitter interface {
	SubmitFeatures(f feature.Features) (*batch.Completion, error)
}

// LabelCache 以特征摘要为键的标签缓存，未命中返回 cache.ErrCacheMiss
type LabelCache interface {
	Get(ctx context.Context, digest string) (types.Label, error)
	Put(ctx context.Context, digest string, label types.Label) error
}

// CacheRecorder 记录缓存命中情况
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// ClassifyHandler 处理 POST / 与 POST /api/v1/classify
type ClassifyHandler struct {
	submitter    Submitter
	cache        LabelCache
	recorder     CacheRecorder
	maxBodyBytes int64
	logger       *zap.Logger
}

// ClassifyOption 配置 ClassifyHandler
type ClassifyOption func(*ClassifyHandler)

// WithLabelCache 启用标签缓存；recorder 可为 nil
func WithLabelCache(lc LabelCache, recorder CacheRecorder) ClassifyOption {
	return func(h *ClassifyHandler) {
		h.cache = lc
		h.recorder = recorder
	}
}

// WithMaxBodyBytes 设置请求体上限，<=0 时保留默认值
func WithMaxBodyBytes(n int64) ClassifyOption {
	return func(h *ClassifyHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewClassifyHandler 创建分类处理器
func NewClassifyHandler(submitter Submitter, logger *zap.Logger, opts ...ClassifyOption) *ClassifyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ClassifyHandler{
		submitter:    submitter,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger.With(zap.String("component", "classify_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleClassify 解析 safetensors 请求体，排队等待批推理，返回 JSON 字符串标签
func (h *ClassifyHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r.Context())

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorMessage(w, http.StatusRequestEntityTooLarge, types.ErrPayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), logger)
			return
		}
		WriteError(w, types.NewError(types.ErrInvalidRequest, "failed to read request body").WithCause(err), logger)
		return
	}

	tensor, err := feature.DecodeFbank(body)
	if err != nil {
		WriteError(w, AsAPIError(err), logger)
		return
	}
	features, err := feature.Prepare(tensor)
	if err != nil {
		WriteError(w, AsAPIError(err), logger)
		return
	}

	var digest string
	if h.cache != nil {
		digest = features.Digest()
		if label, ok := h.lookup(r.Context(), digest, logger); ok {
			writeLabel(w, label)
			return
		}
	}

	completion, err := h.submitter.SubmitFeatures(features)
	if err != nil {
		WriteError(w, schedulerError(err), logger)
		return
	}

	label, err := completion.Wait(r.Context())
	if err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			// 客户端已断开，结果仍会被调度器处理后丢弃
			logger.Debug("client gone before classification finished",
				zap.String("completion_id", completion.ID()), zap.Error(err))
			WriteError(w, types.NewError(types.ErrTimeout, "request cancelled while waiting for classification").WithCause(err), nil)
			return
		}
		WriteError(w, schedulerError(err), logger)
		return
	}

	if h.cache != nil {
		if err := h.cache.Put(context.WithoutCancel(r.Context()), digest, label); err != nil {
			logger.Warn("label cache write failed", zap.String("digest", digest), zap.Error(err))
		}
	}

	logger.Debug("classified", zap.String("completion_id", completion.ID()), zap.Stringer("label", label))
	writeLabel(w, label)
}

func (h *ClassifyHandler) lookup(ctx context.Context, digest string, logger *zap.Logger) (types.Label, bool) {
	label, err := h.cache.Get(ctx, digest)
	if err == nil {
		if h.recorder != nil {
			h.recorder.RecordCacheHit(labelCacheType)
		}
		return label, true
	}
	if h.recorder != nil {
		h.recorder.RecordCacheMiss(labelCacheType)
	}
	if !cache.IsCacheMiss(err) {
		logger.Warn("label cache read failed, falling back to inference", zap.Error(err))
	}
	return types.LabelUnknown, false
}

func (h *ClassifyHandler) requestLogger(ctx context.Context) *zap.Logger {
	if id, ok := ctxkeys.RequestID(ctx); ok {
		return h.logger.With(zap.String("request_id", id))
	}
	return h.logger
}

func schedulerError(err error) *types.Error {
	if errors.Is(err, batch.ErrSchedulerClosed) {
		return types.NewError(types.ErrServiceUnavailable, "scheduler is shutting down").WithCause(err).WithRetryable(true)
	}
	return AsAPIError(err)
}

func writeLabel(w http.ResponseWriter, label types.Label) {
	WriteJSON(w, http.StatusOK, label)
}
