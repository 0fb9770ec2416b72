// MockInferencer 的批推理测试模拟实现。
//
// 支持按调用次数注入错误、panic，以及用闸门阻塞调用。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/testutil/fixtures"
	"github.com/BaSui01/soundsort/types"
)

// MockInferenceCall 记录单次批调用
type MockInferenceCall struct {
	Size int
	Tags []int
}

// MockInferencer 默认按 fixtures.Tag 还原每条特征的标记，
// 返回 fixtures.LabelForTag 对应的激活向量。
type MockInferencer struct {
	mu sync.Mutex

	labelFunc func(f feature.Features) types.Label
	errOn     map[int]error
	panicOn   map[int]bool
	gate      chan struct{}
	entered   chan int

	calls []MockInferenceCall
}

// NewMockInferencer 创建新的 MockInferencer
func NewMockInferencer() *MockInferencer {
	return &MockInferencer{
		labelFunc: func(f feature.Features) types.Label {
			return fixtures.LabelForTag(fixtures.Tag(f))
		},
		errOn:   make(map[int]error),
		panicOn: make(map[int]bool),
		entered: make(chan int, 64),
	}
}

// WithLabel 所有条目都返回 label
func (m *MockInferencer) WithLabel(label types.Label) *MockInferencer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labelFunc = func(feature.Features) types.Label { return label }
	return m
}

// WithErrorOn 第 call 次调用（从 1 开始）返回 err
func (m *MockInferencer) WithErrorOn(call int, err error) *MockInferencer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOn[call] = err
	return m
}

// WithPanicOn 第 call 次调用 panic
func (m *MockInferencer) WithPanicOn(call int) *MockInferencer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOn[call] = true
	return m
}

// WithGate 每次调用阻塞到从 gate 收到一个值
func (m *MockInferencer) WithGate(gate chan struct{}) *MockInferencer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	return m
}

// Entered 每次调用开始时收到调用序号
func (m *MockInferencer) Entered() <-chan int {
	return m.entered
}

// StackAndInfer 实现 batch.Inferencer
func (m *MockInferencer) StackAndInfer(ctx context.Context, items []feature.Features) ([][]float32, error) {
	m.mu.Lock()
	tags := make([]int, len(items))
	for i, f := range items {
		tags[i] = fixtures.Tag(f)
	}
	m.calls = append(m.calls, MockInferenceCall{Size: len(items), Tags: tags})
	call := len(m.calls)
	err, shouldPanic := m.errOn[call], m.panicOn[call]
	gate, labelFunc := m.gate, m.labelFunc
	m.mu.Unlock()

	select {
	case m.entered <- call:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if shouldPanic {
		panic("mock inferencer panic")
	}
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(items))
	for i, f := range items {
		out[i] = fixtures.Activations(labelFunc(f))
	}
	return out, nil
}

// Calls 返回调用记录副本
func (m *MockInferencer) Calls() []MockInferenceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockInferenceCall(nil), m.calls...)
}

// BatchSizes 返回每次调用的批大小
func (m *MockInferencer) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.calls))
	for i, c := range m.calls {
		sizes[i] = c.Size
	}
	return sizes
}

// Tags 按处理顺序返回所有条目的标记
func (m *MockInferencer) Tags() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tags []int
	for _, c := range m.calls {
		tags = append(tags, c.Tags...)
	}
	return tags
}
