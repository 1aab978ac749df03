package bus

import (
	"container/heap"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
)

// queuedMessage pairs a message with a monotonic sequence number so equal
// priorities dequeue FIFO by send order.
type queuedMessage struct {
	msg *core.Message
	seq uint64
}

// messageHeap orders by priority descending, then sequence ascending.
type messageHeap []queuedMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority > h[j].msg.Priority
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) { *h = append(*h, x.(queuedMessage)) }

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// agentQueue is one recipient's bounded mailbox. Each queue carries its own
// lock so enqueue/dequeue for different agents never share a critical
// section.
type agentQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  messageHeap
	cap    int
	seq    uint64
	closed bool
}

func newAgentQueue(capacity int) *agentQueue {
	q := &agentQueue{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues a message, reporting false when the queue is full or closed.
func (q *agentQueue) push(msg *core.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.items.Len() >= q.cap {
		return false
	}
	q.seq++
	heap.Push(&q.items, queuedMessage{msg: msg, seq: q.seq})
	q.cond.Signal()
	return true
}

// pop blocks until a live message is available, the queue closes or the
// timeout elapses (timeout <= 0 blocks indefinitely). Messages whose TTL has
// elapsed are discarded on the way; the number discarded is returned so the
// bus can account for them.
func (q *agentQueue) pop(timeout time.Duration) (msg *core.Message, expired int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		defer timer.Stop()
	}

	for {
		now := time.Now()
		for q.items.Len() > 0 {
			next := heap.Pop(&q.items).(queuedMessage)
			if next.msg.Expired(now) {
				expired++
				continue
			}
			return next.msg, expired, nil
		}

		if q.closed {
			return nil, expired, core.ErrNotFound
		}
		if timeout > 0 && !now.Before(deadline) {
			return nil, expired, core.ErrTimeout
		}
		q.cond.Wait()
	}
}

// close wakes all blocked receivers; further pushes are rejected.
func (q *agentQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *agentQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
