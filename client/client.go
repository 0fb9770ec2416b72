package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/internal/tlsutil"
	"github.com/BaSui01/soundsort/types"
)

const (
	// DefaultAddr 默认服务地址
	DefaultAddr = "http://localhost:8080"
	// DefaultTimeout 单次请求超时
	DefaultTimeout = 60 * time.Second
	// DefaultMaxConns 每主机保持的空闲连接数
	DefaultMaxConns = 128

	classifyPath = "/api/v1/classify"
	maxErrorBody = 64 << 10
)

// Client 是 soundsortd 分类接口的 HTTP 客户端，可被多个 goroutine 并发使用
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithAPIKey 通过 X-API-Key 请求头认证
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建客户端；addr 为空时使用 DefaultAddr
func New(addr string, opts ...Option) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	c := &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    tlsutil.HTTPClient(DefaultTimeout, DefaultMaxConns),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回规范化后的服务地址
func (c *Client) BaseURL() string { return c.baseURL }

// Classify 把 fbank 张量编码为 safetensors 发送给服务，返回分类标签。
// 服务端返回的错误信封会还原为 *types.Error。
func (c *Client) Classify(ctx context.Context, fbank feature.Tensor) (types.Label, error) {
	body, err := feature.EncodeFbank(fbank)
	if err != nil {
		return types.LabelUnknown, err
	}
	return c.ClassifyBody(ctx, body)
}

// ClassifyBody 发送已编码的 safetensors 请求体
func (c *Client) ClassifyBody(ctx context.Context, body []byte) (types.Label, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+classifyPath, bytes.NewReader(body))
	if err != nil {
		return types.LabelUnknown, types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.LabelUnknown, types.NewError(types.ErrServiceUnavailable, err.Error()).
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readErrorEnvelope(resp)
		c.logger.Debug("classify request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("code", string(apiErr.Code)),
		)
		return types.LabelUnknown, apiErr
	}

	var label types.Label
	if err := json.NewDecoder(resp.Body).Decode(&label); err != nil {
		return types.LabelUnknown, types.NewError(types.ErrInternalError, "decode label response").WithCause(err)
	}
	return label, nil
}

// errorEnvelope 服务端错误响应结构
type errorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func readErrorEnvelope(resp *http.Response) *types.Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil && env.Error.Code != "" {
		return types.NewError(types.ErrorCode(env.Error.Code), env.Error.Message).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(env.Error.Retryable)
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return types.NewError(codeForStatus(resp.StatusCode), fmt.Sprintf("status %d: %s", resp.StatusCode, msg)).
		WithHTTPStatus(resp.StatusCode).
		WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
}

// codeForStatus 没有错误信封时（如代理返回）按状态码推断错误码
func codeForStatus(status int) types.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return types.ErrInvalidRequest
	case http.StatusUnauthorized:
		return types.ErrUnauthorized
	case http.StatusRequestEntityTooLarge:
		return types.ErrPayloadTooLarge
	case http.StatusTooManyRequests:
		return types.ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return types.ErrServiceUnavailable
	case http.StatusGatewayTimeout:
		return types.ErrTimeout
	default:
		return types.ErrInternalError
	}
}
