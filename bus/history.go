package bus

import (
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// history is a bounded rolling buffer of sent messages kept for inspection
// and debugging. Oldest entries are overwritten once the buffer is full.
type history struct {
	mu    sync.Mutex
	items []*core.Message
	next  int
	full  bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = 1
	}
	return &history{items: make([]*core.Message, size)}
}

func (h *history) add(msg *core.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = msg
	h.next++
	if h.next == len(h.items) {
		h.next = 0
		h.full = true
	}
}

// snapshot returns retained messages oldest first, truncated to the last
// limit entries when limit > 0.
func (h *history) snapshot(limit int) []*core.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*core.Message
	if h.full {
		out = append(out, h.items[h.next:]...)
	}
	out = append(out, h.items[:h.next]...)

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
