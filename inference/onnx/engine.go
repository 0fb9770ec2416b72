package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Config ONNX Runtime 引擎配置
type Config struct {
	ModelPath         string
	SharedLibraryPath string
	InputName         string
	OutputName        string
	NumClasses        int
	IntraOpThreads    int
}

// DefaultConfig 返回 AudioSet 527 类模型的默认配置
func DefaultConfig() Config {
	return Config{
		InputName:  "fbank",
		OutputName: "logits",
		NumClasses: 527,
	}
}

// Validate 检查配置
func (c Config) Validate() error {
	var errs []error
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model path is required"))
	}
	if c.InputName == "" || c.OutputName == "" {
		errs = append(errs, errors.New("input and output names are required"))
	}
	if c.NumClasses <= 0 {
		errs = append(errs, fmt.Errorf("num classes must be positive, got %d", c.NumClasses))
	}
	if c.IntraOpThreads < 0 {
		errs = append(errs, fmt.Errorf("intra op threads must not be negative, got %d", c.IntraOpThreads))
	}
	return errors.Join(errs...)
}

var (
	envMu   sync.Mutex
	envRefs int
)

// Engine 基于 ONNX Runtime 的前向计算，每次调用按批大小分配输入输出张量
type Engine struct {
	cfg     Config
	session *ort.DynamicAdvancedSession
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewEngine 初始化运行时环境并加载模型
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid onnx config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			_ = releaseEnvironment()
			return nil, fmt.Errorf("failed to set intra op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		opts)
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("failed to load model %s: %w", cfg.ModelPath, err)
	}

	logger = logger.With(zap.String("component", "onnx_engine"))
	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.Int("num_classes", cfg.NumClasses),
	)
	return &Engine{cfg: cfg, session: session, logger: logger}, nil
}

// Forward 执行一次前向计算，返回 batch * NumClasses 个 logits
func (e *Engine) Forward(ctx context.Context, input []float32, batch, frames, bins int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) != batch*frames*bins {
		return nil, fmt.Errorf("input has %d values, shape [%d, %d, %d] needs %d",
			len(input), batch, frames, bins, batch*frames*bins)
	}

	in, err := ort.NewTensor(ort.NewShape(int64(batch), int64(frames), int64(bins)), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch), int64(e.cfg.NumClasses)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := e.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("session run failed: %w", err)
	}

	// 输出张量随 Destroy 释放，需拷贝
	logits := make([]float32, batch*e.cfg.NumClasses)
	copy(logits, out.GetData())
	return logits, nil
}

// Close 释放会话，最后一个引擎关闭时销毁运行时环境。可重复调用。
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.session.Destroy()
		if envErr := releaseEnvironment(); envErr != nil {
			e.closeErr = errors.Join(e.closeErr, envErr)
		}
	})
	return e.closeErr
}

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}
