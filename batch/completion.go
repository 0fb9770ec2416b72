package batch

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/BaSui01/soundsort/types"
)

var (
	// ErrCompletionResolved 对同一个 Completion 写入第二次结果（编程错误）
	ErrCompletionResolved = errors.New("completion already resolved")
	// ErrCompletionConsumed 结果已被取走后再次 Wait（编程错误）
	ErrCompletionConsumed = errors.New("completion already consumed")
)

type outcome struct {
	label types.Label
	err   error
}

// Completion 是单个请求的一次性结果槽：单生产者写一次，单消费者读一次。
// 写入从不阻塞，调用方离开后结果被直接丢弃。
type Completion struct {
	id       string
	ch       chan outcome
	resolved atomic.Bool
}

func newCompletion() *Completion {
	return &Completion{
		id: uuid.NewString(),
		ch: make(chan outcome, 1),
	}
}

// ID 返回请求标识
func (c *Completion) ID() string {
	return c.id
}

// Resolved 报告结果是否已写入
func (c *Completion) Resolved() bool {
	return c.resolved.Load()
}

// resolve 写入终态结果，只能成功一次
func (c *Completion) resolve(label types.Label, err error) error {
	if !c.resolved.CompareAndSwap(false, true) {
		return ErrCompletionResolved
	}
	c.ch <- outcome{label: label, err: err}
	return nil
}

// Wait 阻塞直到结果写入或 ctx 结束。
// ctx 结束只放弃等待，请求仍会被正常处理。
func (c *Completion) Wait(ctx context.Context) (types.Label, error) {
	select {
	case o, ok := <-c.ch:
		if !ok {
			return types.LabelUnknown, ErrCompletionConsumed
		}
		close(c.ch)
		return o.label, o.err
	case <-ctx.Done():
		return types.LabelUnknown, ctx.Err()
	}
}
