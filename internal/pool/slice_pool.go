// Package pool 复用批次堆叠时的大块输入缓冲区。
package pool

import (
	"sync"
	"sync/atomic"
)

// SlicePool 基于 sync.Pool 复用切片底层数组
type SlicePool[T any] struct {
	pool sync.Pool

	gets    atomic.Int64
	news    atomic.Int64
	discard atomic.Int64
}

// NewSlicePool 创建切片池
func NewSlicePool[T any]() *SlicePool[T] {
	return &SlicePool[T]{}
}

// Get 返回长度为 0、容量不小于 capacity 的切片
func (p *SlicePool[T]) Get(capacity int) []T {
	p.gets.Add(1)
	if v, ok := p.pool.Get().(*[]T); ok {
		if cap(*v) >= capacity {
			return (*v)[:0]
		}
		// 容量不足的缓冲区直接丢弃，由新缓冲区替代
		p.discard.Add(1)
	}
	p.news.Add(1)
	return make([]T, 0, capacity)
}

// Put 归还切片，调用方之后不得再使用 s
func (p *SlicePool[T]) Put(s []T) {
	if cap(s) == 0 {
		return
	}
	s = s[:0]
	p.pool.Put(&s)
}

// Stats 返回池统计
func (p *SlicePool[T]) Stats() Stats {
	return Stats{
		Gets:      p.gets.Load(),
		News:      p.news.Load(),
		Discarded: p.discard.Load(),
	}
}

// Stats 池统计
type Stats struct {
	Gets      int64 `json:"gets"`
	News      int64 `json:"news"`
	Discarded int64 `json:"discarded"`
}

// HitRate 复用命中率
func (s Stats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}
