package inference

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/internal/pool"
	"github.com/BaSui01/soundsort/types"
)

// Engine 是不透明的模型前向计算。
// input 为 [batch, frames, bins] 行优先展开的数据，返回原始 logits，
// 长度为 batch * C。实现不要求并发安全，调用方保证串行调用。
// Forward 返回后 input 会被复用，实现不得保留对它的引用。
type Engine interface {
	Forward(ctx context.Context, input []float32, batch, frames, bins int) ([]float32, error)
	Close() error
}

// EngineFunc 将普通函数适配为 Engine
type EngineFunc func(ctx context.Context, input []float32, batch, frames, bins int) ([]float32, error)

// Forward 调用 f
func (f EngineFunc) Forward(ctx context.Context, input []float32, batch, frames, bins int) ([]float32, error) {
	return f(ctx, input, batch, frames, bins)
}

// Close 无需释放资源
func (f EngineFunc) Close() error { return nil }

// Adapter 负责堆叠批次、调用引擎、sigmoid 与拆分结果
type Adapter struct {
	engine  Engine
	logger  *zap.Logger
	buffers *pool.SlicePool[float32]
}

// NewAdapter 创建推理适配器
func NewAdapter(engine Engine, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		engine:  engine,
		logger:  logger.With(zap.String("component", "inference")),
		buffers: pool.NewSlicePool[float32](),
	}
}

// Stack 将批次沿新的首轴拼接为 [n, frames, bins]。
// 任一项形状与首项不一致时返回 STACK_ERROR。
func Stack(items []feature.Features) ([]float32, int, error) {
	return StackInto(nil, items)
}

// StackInto 与 Stack 相同，但把结果追加到 dst[:0]，以便复用缓冲区
func StackInto(dst []float32, items []feature.Features) ([]float32, int, error) {
	if len(items) == 0 {
		return nil, 0, types.StackError("cannot stack an empty batch")
	}
	frames := items[0].Frames()
	if frames == 0 {
		return nil, 0, types.StackError("item 0 has no frames")
	}
	out := dst[:0]
	if cap(out) < len(items)*items[0].Len() {
		out = make([]float32, 0, len(items)*items[0].Len())
	}
	for i, item := range items {
		if item.Frames() != frames || item.Len() != items[0].Len() {
			return nil, 0, types.StackError("item %d has shape [%d, %d], expected [%d, %d]",
				i, item.Frames(), item.Bins(), frames, items[0].Bins())
		}
		out = item.AppendTo(out)
	}
	return out, frames, nil
}

// StackAndInfer 对整批执行一次前向计算，返回与输入顺序一致的激活向量
func (a *Adapter) StackAndInfer(ctx context.Context, items []feature.Features) ([][]float32, error) {
	var size int
	if len(items) > 0 {
		size = len(items) * items[0].Len()
	}
	buf := a.buffers.Get(size)
	input, frames, err := StackInto(buf, items)
	if err != nil {
		a.buffers.Put(buf)
		return nil, err
	}
	defer a.buffers.Put(input)

	start := time.Now()
	logits, err := a.forward(ctx, input, len(items), frames)
	if err != nil {
		return nil, types.InferenceError("forward pass failed", err)
	}
	if len(logits) == 0 || len(logits)%len(items) != 0 {
		return nil, types.InferenceError(
			fmt.Sprintf("engine returned %d values for %d items", len(logits), len(items)), nil)
	}

	classes := len(logits) / len(items)
	out := make([][]float32, len(items))
	for i := range out {
		row := make([]float32, classes)
		for j, v := range logits[i*classes : (i+1)*classes] {
			row[j] = Sigmoid(v)
		}
		out[i] = row
	}

	a.logger.Debug("forward pass finished",
		zap.Int("batch", len(items)),
		zap.Int("classes", classes),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// Close 释放引擎
func (a *Adapter) Close() error {
	return a.engine.Close()
}

func (a *Adapter) forward(ctx context.Context, input []float32, batch, frames int) (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return a.engine.Forward(ctx, input, batch, frames, feature.NumMelBins)
}

// Sigmoid 1 / (1 + e^-x)
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
