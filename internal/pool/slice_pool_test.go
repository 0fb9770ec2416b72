package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlicePool_GetReturnsEmptyWithCapacity(t *testing.T) {
	p := NewSlicePool[float32]()

	s := p.Get(64)
	assert.Len(t, s, 0)
	assert.GreaterOrEqual(t, cap(s), 64)
}

func TestSlicePool_ReusesAfterPut(t *testing.T) {
	p := NewSlicePool[float32]()

	s := p.Get(16)
	s = append(s, 1, 2, 3)
	p.Put(s)

	// sync.Pool 不保证复用，只验证归还后的切片被清空
	got := p.Get(16)
	assert.Len(t, got, 0)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Gets)
	assert.GreaterOrEqual(t, stats.News, int64(1))
}

func TestSlicePool_GrowsWhenTooSmall(t *testing.T) {
	p := NewSlicePool[int]()
	p.Put(make([]int, 0, 4))

	s := p.Get(1024)
	assert.GreaterOrEqual(t, cap(s), 1024)
}

func TestSlicePool_IgnoresZeroCapacity(t *testing.T) {
	p := NewSlicePool[int]()
	p.Put(nil)
	assert.Len(t, p.Get(0), 0)
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{Gets: 4, News: 1}.HitRate(), 1e-9)
}
