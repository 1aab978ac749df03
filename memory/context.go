package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Scope controls which agents can see a context entry.
type Scope string

const (
	// ScopePrivate restricts an entry to its owning agent.
	ScopePrivate Scope = "private"
	// ScopeShared makes an entry visible to all agents.
	ScopeShared Scope = "shared"
	// ScopeGlobal marks an entry as system-wide, surviving agent turnover.
	ScopeGlobal Scope = "global"
)

// ContextEntry is one scoped fact. Scope transitions move the entry in
// place; an entry is never duplicated or orphaned by sharing.
type ContextEntry struct {
	ID         string
	Type       string
	Scope      Scope
	AgentID    string // owner; meaningful for private entries
	Content    any
	Importance float64
	Timestamp  time.Time
	ExpiresAt  time.Time // zero means never
	Relevance  float64   // last retrieval score
}

// expired reports whether the entry's TTL elapsed at the given time.
func (e *ContextEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// ContextProtocolOptions holds configuration overrides.
type ContextProtocolOptions struct {
	// RecencyWindow is the span over which the recency component decays
	// linearly to zero.
	RecencyWindow time.Duration
	// Logger receives sweep diagnostics.
	Logger logging.Logger
}

// ContextProtocol stores scoped context entries and retrieves the most
// relevant ones per agent. All retrieval paths silently skip expired entries;
// Sweep (or the background sweeper) physically removes them. Safe for
// concurrent use.
type ContextProtocol struct {
	mu      sync.RWMutex
	entries map[string]*ContextEntry

	recencyWindow time.Duration
	logger        logging.Logger
}

// NewContextProtocol constructs an empty protocol instance.
func NewContextProtocol(optFns ...func(o *ContextProtocolOptions)) *ContextProtocol {
	opts := ContextProtocolOptions{
		RecencyWindow: 24 * time.Hour,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ContextProtocol{
		entries:       make(map[string]*ContextEntry),
		recencyWindow: opts.RecencyWindow,
		logger:        opts.Logger,
	}
}

// Store creates an entry and returns its id. A ttl of zero means the entry
// never expires.
func (p *ContextProtocol) Store(agentID, entryType string, scope Scope, content any, importance float64, ttl time.Duration) string {
	entry := &ContextEntry{
		ID:         core.NewID(),
		Type:       entryType,
		Scope:      scope,
		AgentID:    agentID,
		Content:    content,
		Importance: importance,
		Timestamp:  time.Now().UTC(),
	}
	if ttl > 0 {
		entry.ExpiresAt = entry.Timestamp.Add(ttl)
	}

	p.mu.Lock()
	p.entries[entry.ID] = entry
	p.mu.Unlock()
	return entry.ID
}

// Get returns a copy of the entry, regardless of scope. Expired entries
// behave as missing.
func (p *ContextProtocol) Get(id string) (ContextEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[id]
	if !ok || entry.expired(time.Now()) {
		return ContextEntry{}, fmt.Errorf("context entry %s: %w", id, core.ErrNotFound)
	}
	return *entry, nil
}

// ShareContext changes an entry's scope in place: the entry moves, it is
// never copied, so exactly one instance exists at any scope.
func (p *ContextProtocol) ShareContext(id string, scope Scope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[id]
	if !ok {
		return fmt.Errorf("context entry %s: %w", id, core.ErrNotFound)
	}
	entry.Scope = scope
	return nil
}

// Delete removes an entry explicitly.
func (p *ContextProtocol) Delete(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[id]; !ok {
		return fmt.Errorf("context entry %s: %w", id, core.ErrNotFound)
	}
	delete(p.entries, id)
	return nil
}

// RetrieveRelevantContext scores the entries visible to the agent (its
// private entries plus all shared and global ones) by keyword overlap with
// the query, linear recency decay over the recency window, and importance,
// returning the top limit entries best first. Expired entries are skipped.
func (p *ContextProtocol) RetrieveRelevantContext(agentID, query string, limit int) []ContextEntry {
	queryWords := tokenize(query)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	scored := make([]*ContextEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		if entry.expired(now) {
			continue
		}
		if entry.Scope == ScopePrivate && entry.AgentID != agentID {
			continue
		}

		overlap := keywordOverlap(queryWords, tokenize(fmt.Sprintf("%v %s", entry.Content, entry.Type)))

		age := now.Sub(entry.Timestamp)
		recency := 1 - float64(age)/float64(p.recencyWindow)
		if recency < 0 {
			recency = 0
		}

		entry.Relevance = overlap + recency + entry.Importance
		scored = append(scored, entry)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Relevance > scored[j].Relevance })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]ContextEntry, len(scored))
	for i, entry := range scored {
		out[i] = *entry
	}
	return out
}

// Sweep physically removes expired entries, returning how many were removed.
func (p *ContextProtocol) Sweep() int {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, entry := range p.entries {
		if entry.expired(now) {
			delete(p.entries, id)
			removed++
		}
	}
	if removed > 0 {
		p.logger.Debug("context sweep removed %d expired entries", removed)
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (p *ContextProtocol) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Sweep()
			}
		}
	}()
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (p *ContextProtocol) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

func tokenize(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,;:!?\"'()")] = struct{}{}
	}
	return set
}

// keywordOverlap returns the fraction of query words present in the entry.
func keywordOverlap(query, entry map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for w := range query {
		if _, ok := entry[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}
