package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Entry is one remembered fact with an importance used for consolidation.
type Entry struct {
	Key        string
	Content    any
	Importance float64
	StoredAt   time.Time
}

// ManagerOptions holds configuration overrides passed to NewManager.
type ManagerOptions struct {
	// ShortTermCapacity bounds the short-term ring; the oldest entry is
	// evicted when full.
	ShortTermCapacity int
	// ConsolidationThreshold is the importance at or above which a
	// short-term entry is promoted to long-term storage.
	ConsolidationThreshold float64
	// Logger receives promotion/eviction diagnostics.
	Logger logging.Logger
}

// Manager couples a bounded short-term ring buffer with an unbounded
// long-term map. Entries whose importance reaches the consolidation
// threshold are promoted to long-term storage immediately on store;
// Consolidate sweeps the ring for anything that slipped through (e.g. after
// the threshold was effectively lowered by a caller re-storing with higher
// importance). Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	shortTerm []Entry // ring, oldest first
	longTerm  map[string]Entry
	promoted  map[string]struct{} // short-term keys already in long-term

	capacity  int
	threshold float64
	logger    logging.Logger
}

// NewManager constructs a Manager with optional overrides.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		ShortTermCapacity:      100,
		ConsolidationThreshold: 0.7,
		Logger:                 logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		longTerm:  make(map[string]Entry),
		promoted:  make(map[string]struct{}),
		capacity:  opts.ShortTermCapacity,
		threshold: opts.ConsolidationThreshold,
		logger:    opts.Logger,
	}
}

// StoreShortTerm records an entry in the ring, evicting the oldest entry
// when full. Entries at or above the consolidation threshold are promoted to
// long-term storage immediately, without waiting for a Consolidate sweep.
func (m *Manager) StoreShortTerm(key string, content any, importance float64) {
	entry := Entry{Key: key, Content: content, Importance: importance, StoredAt: time.Now().UTC()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.shortTerm) >= m.capacity {
		evicted := m.shortTerm[0]
		m.shortTerm = m.shortTerm[1:]
		delete(m.promoted, evicted.Key)
		m.logger.Debug("short-term memory evicted %s", evicted.Key)
	}
	m.shortTerm = append(m.shortTerm, entry)

	if importance >= m.threshold {
		m.longTerm[key] = entry
		m.promoted[key] = struct{}{}
		m.logger.Debug("memory consolidated %s on store (importance %.2f)", key, importance)
	}
}

// Reinforce raises the importance of the most recent short-term entry for
// the key without promoting it; the next Consolidate sweep picks it up if it
// now clears the threshold. Importance never decreases through this path.
func (m *Manager) Reinforce(key string, importance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.shortTerm) - 1; i >= 0; i-- {
		if m.shortTerm[i].Key == key {
			if importance > m.shortTerm[i].Importance {
				m.shortTerm[i].Importance = importance
			}
			return nil
		}
	}
	return fmt.Errorf("short-term entry %s: %w", key, core.ErrNotFound)
}

// StoreLongTerm records an entry directly in long-term storage.
func (m *Manager) StoreLongTerm(key string, content any, importance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.longTerm[key] = Entry{Key: key, Content: content, Importance: importance, StoredAt: time.Now().UTC()}
}

// GetShortTerm returns the most recent short-term entry for the key.
func (m *Manager) GetShortTerm(key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.shortTerm) - 1; i >= 0; i-- {
		if m.shortTerm[i].Key == key {
			return m.shortTerm[i], nil
		}
	}
	return Entry{}, fmt.Errorf("short-term entry %s: %w", key, core.ErrNotFound)
}

// GetLongTerm returns the long-term entry for the key.
func (m *Manager) GetLongTerm(key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.longTerm[key]
	if !ok {
		return Entry{}, fmt.Errorf("long-term entry %s: %w", key, core.ErrNotFound)
	}
	return entry, nil
}

// Consolidate sweeps the short-term ring, promoting every entry at or above
// the threshold that has not been promoted yet. Returns the number promoted.
func (m *Manager) Consolidate() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	promoted := 0
	for _, entry := range m.shortTerm {
		if entry.Importance < m.threshold {
			continue
		}
		if _, done := m.promoted[entry.Key]; done {
			continue
		}
		m.longTerm[entry.Key] = entry
		m.promoted[entry.Key] = struct{}{}
		promoted++
	}
	if promoted > 0 {
		m.logger.Debug("consolidation sweep promoted %d entries", promoted)
	}
	return promoted
}

// ShortTermLen returns the number of entries currently in the ring.
func (m *Manager) ShortTermLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shortTerm)
}

// LongTermLen returns the number of entries in long-term storage.
func (m *Manager) LongTermLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.longTerm)
}
