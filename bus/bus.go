package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// QueueCapacity bounds each agent's mailbox. A send to a full mailbox is
	// dropped and counted, never retried by the bus.
	QueueCapacity int
	// HistorySize bounds the rolling send history kept for inspection.
	HistorySize int
	// Logger receives drop/expiry diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Stats is a snapshot of the bus delivery counters.
type Stats struct {
	TotalSent  uint64
	Direct     uint64
	Broadcasts uint64
	Dropped    uint64
	Expired    uint64
}

// MessageBus routes messages between registered agents. Each agent owns an
// independent bounded priority queue; queue operations for different agents
// never contend on a shared lock. Public methods are safe for concurrent use.
type MessageBus struct {
	mu     sync.RWMutex
	queues map[string]*agentQueue
	subs   map[string]map[string]struct{} // topic -> agent id set

	pendingMu sync.Mutex
	pending   map[string]chan *core.Message // message id -> reply channel

	history *history

	queueCap int
	logger   logging.Logger

	totalSent  atomic.Uint64
	direct     atomic.Uint64
	broadcasts atomic.Uint64
	dropped    atomic.Uint64
	expired    atomic.Uint64
}

// New constructs a MessageBus with optional overrides.
func New(optFns ...func(o *Options)) *MessageBus {
	opts := Options{
		QueueCapacity: 1000,
		HistorySize:   1000,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &MessageBus{
		queues:   make(map[string]*agentQueue),
		subs:     make(map[string]map[string]struct{}),
		pending:  make(map[string]chan *core.Message),
		history:  newHistory(opts.HistorySize),
		queueCap: opts.QueueCapacity,
		logger:   opts.Logger,
	}
}

// Register creates a mailbox for the agent. Registering an already known
// agent is a no-op.
func (b *MessageBus) Register(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[agentID]; ok {
		return
	}
	b.queues[agentID] = newAgentQueue(b.queueCap)
	b.logger.Debug("bus registered agent %s", agentID)
}

// Unregister closes the agent's mailbox, wakes blocked receivers and removes
// the agent from all topic subscriptions. Queued messages are discarded.
func (b *MessageBus) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[agentID]
	if !ok {
		return
	}
	q.close()
	delete(b.queues, agentID)
	for _, members := range b.subs {
		delete(members, agentID)
	}
	b.logger.Debug("bus unregistered agent %s", agentID)
}

// Send enqueues the message for its recipient, or fans it out to every
// registered agent except the sender when the recipient is core.Broadcast.
// It fails if the message is already past its TTL or (for direct sends) the
// target mailbox is full or unknown. A reply carrying a correlation id with a
// registered waiter is delivered to the waiter instead of a mailbox.
func (b *MessageBus) Send(msg *core.Message) error {
	if msg.Expired(time.Now()) {
		b.expired.Add(1)
		return fmt.Errorf("message %s past its ttl: %w", msg.ID, core.ErrUnavailable)
	}

	b.totalSent.Add(1)
	b.history.add(msg)

	if msg.CorrelationID != "" && b.deliverResponse(msg) {
		b.direct.Add(1)
		return nil
	}

	if msg.Recipient == core.Broadcast {
		b.broadcasts.Add(1)
		b.fanOut(msg)
		return nil
	}

	b.direct.Add(1)
	return b.enqueue(msg.Recipient, msg)
}

// Receive blocks until a message arrives for the agent, skipping and
// discarding any message whose TTL elapsed while queued. A timeout <= 0
// blocks indefinitely; an elapsed timeout returns core.ErrTimeout.
func (b *MessageBus) Receive(agentID string, timeout time.Duration) (*core.Message, error) {
	b.mu.RLock()
	q, ok := b.queues[agentID]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}

	msg, expired, err := q.pop(timeout)
	if expired > 0 {
		b.expired.Add(uint64(expired))
		b.logger.Debug("bus discarded %d expired messages for %s", expired, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("receive for %s: %w", agentID, err)
	}
	return msg, nil
}

// SendAndWaitResponse sends the message and blocks until a reply correlated
// by the message id arrives or the timeout elapses. The caller's reply is
// consumed by the waiter and never enters the recipient's mailbox.
func (b *MessageBus) SendAndWaitResponse(msg *core.Message, timeout time.Duration) (*core.Message, error) {
	msg.RequiresResponse = true

	replyCh := make(chan *core.Message, 1)
	b.pendingMu.Lock()
	b.pending[msg.ID] = replyCh
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, msg.ID)
		b.pendingMu.Unlock()
	}()

	if err := b.Send(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("no response to %s within %s: %w", msg.ID, timeout, core.ErrTimeout)
	}
}

// Subscribe adds the agent to a topic. The agent must be registered; topic
// messages are delivered through its regular mailbox.
func (b *MessageBus) Subscribe(agentID, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[agentID]; !ok {
		return fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}
	members, ok := b.subs[topic]
	if !ok {
		members = make(map[string]struct{})
		b.subs[topic] = members
	}
	members[agentID] = struct{}{}
	return nil
}

// Unsubscribe removes the agent from a topic.
func (b *MessageBus) Unsubscribe(agentID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if members, ok := b.subs[topic]; ok {
		delete(members, agentID)
	}
}

// Publish delivers a copy of the message to every topic subscriber except
// the sender, reusing the direct-send path per subscriber.
func (b *MessageBus) Publish(topic string, msg *core.Message) error {
	b.mu.RLock()
	members := make([]string, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		if id != msg.Sender {
			members = append(members, id)
		}
	}
	b.mu.RUnlock()

	if msg.Expired(time.Now()) {
		b.expired.Add(1)
		return fmt.Errorf("message %s past its ttl: %w", msg.ID, core.ErrUnavailable)
	}

	b.totalSent.Add(1)
	b.broadcasts.Add(1)
	b.history.add(msg)

	for _, id := range members {
		copied := *msg
		copied.Recipient = id
		if err := b.enqueue(id, &copied); err != nil {
			b.logger.Warn("bus dropped publish to %s on topic %s: %v", id, topic, err)
		}
	}
	return nil
}

// Stats returns a snapshot of the delivery counters.
func (b *MessageBus) Stats() Stats {
	return Stats{
		TotalSent:  b.totalSent.Load(),
		Direct:     b.direct.Load(),
		Broadcasts: b.broadcasts.Load(),
		Dropped:    b.dropped.Load(),
		Expired:    b.expired.Load(),
	}
}

// History returns the most recent sends, newest last, up to limit
// (limit <= 0 returns everything retained).
func (b *MessageBus) History(limit int) []*core.Message {
	return b.history.snapshot(limit)
}

// QueueLen reports the number of messages waiting for an agent. Unknown
// agents report zero.
func (b *MessageBus) QueueLen(agentID string) int {
	b.mu.RLock()
	q, ok := b.queues[agentID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.len()
}

func (b *MessageBus) enqueue(agentID string, msg *core.Message) error {
	b.mu.RLock()
	q, ok := b.queues[agentID]
	b.mu.RUnlock()
	if !ok {
		b.dropped.Add(1)
		return fmt.Errorf("recipient %s: %w", agentID, core.ErrNotFound)
	}
	if !q.push(msg) {
		b.dropped.Add(1)
		return fmt.Errorf("mailbox of %s full: %w", agentID, core.ErrUnavailable)
	}
	return nil
}

func (b *MessageBus) fanOut(msg *core.Message) {
	b.mu.RLock()
	targets := make([]string, 0, len(b.queues))
	for id := range b.queues {
		if id != msg.Sender {
			targets = append(targets, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range targets {
		copied := *msg
		copied.Recipient = id
		if err := b.enqueue(id, &copied); err != nil {
			b.logger.Warn("bus dropped broadcast to %s: %v", id, err)
		}
	}
}

// deliverResponse hands a correlated reply to its waiter. Returns false when
// nobody is waiting (the reply then flows through the normal mailbox path).
func (b *MessageBus) deliverResponse(msg *core.Message) bool {
	b.pendingMu.Lock()
	ch, ok := b.pending[msg.CorrelationID]
	if ok {
		delete(b.pending, msg.CorrelationID)
	}
	b.pendingMu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}
