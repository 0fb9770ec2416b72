package batch

import (
	"sync"
	"time"

	"github.com/BaSui01/soundsort/feature"
)

// request 是已准入、等待批处理的一条请求
type request struct {
	features   feature.Features
	completion *Completion
	enqueued   time.Time
}

// queue 是调度器私有的无界 FIFO。
// 锁只在 push/drain 期间持有；notify 容量为 1，用于唤醒等待中的 worker。
type queue struct {
	mu     sync.Mutex
	items  []*request
	closed bool
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push 追加到队尾；队列已关闭时返回 false
func (q *queue) push(r *request) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, r)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// drain 从队首按序取出至多 limit 条
func (q *queue) drain(limit int) []*request {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(limit, len(q.items))
	if n <= 0 {
		return nil
	}
	out := make([]*request, n)
	copy(out, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}

// close 拒绝后续 push，并返回仍在队列中的请求
func (q *queue) close() []*request {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	rest := q.items
	q.items = nil
	return rest
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ready 在有新请求入队后可读
func (q *queue) ready() <-chan struct{} {
	return q.notify
}
