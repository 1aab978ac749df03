package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// SemanticEntry is the metadata kept alongside each embedded document.
type SemanticEntry struct {
	Key         string
	Content     string
	Context     map[string]string
	Importance  float64
	AccessCount int
	StoredAt    time.Time
}

// SemanticResult is one retrieval hit with its raw similarity and the final
// blended score used for ranking.
type SemanticResult struct {
	Entry      SemanticEntry
	Similarity float64
	Score      float64
}

// SemanticOptions holds configuration overrides passed to NewSemanticMemory.
type SemanticOptions struct {
	// Capacity bounds the number of stored entries; at capacity the entry
	// with the lowest (importance + accessCount/100) is evicted.
	Capacity int
	// Embedder produces the document vectors. Defaults to a 256-dim
	// deterministic hash embedder.
	Embedder Embedder
	// Collection names the underlying chromem collection.
	Collection string
	// Logger receives eviction diagnostics.
	Logger logging.Logger
}

// SemanticMemory stores (key, content, context, importance) tuples with an
// embedding vector and retrieves them by cosine similarity, optionally
// blended 60/40 with attribute overlap against a supplied query context and
// boosted by importance and access frequency. The vector index is a
// chromem-go collection; entry bookkeeping lives beside it.
type SemanticMemory struct {
	mu       sync.Mutex
	coll     *chromem.Collection
	entries  map[string]*SemanticEntry
	capacity int
	logger   logging.Logger
}

// NewSemanticMemory constructs a semantic store with optional overrides.
func NewSemanticMemory(optFns ...func(o *SemanticOptions)) (*SemanticMemory, error) {
	opts := SemanticOptions{
		Capacity:   1000,
		Embedder:   NewHashEmbedder(256),
		Collection: "semantic-memory",
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	embedder := opts.Embedder
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	coll, err := chromem.NewDB().GetOrCreateCollection(opts.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &SemanticMemory{
		coll:     coll,
		entries:  make(map[string]*SemanticEntry),
		capacity: opts.Capacity,
		logger:   opts.Logger,
	}, nil
}

// Store adds or replaces an entry. At capacity the lowest scoring entry
// (importance + accessCount/100) is evicted first.
func (s *SemanticMemory) Store(ctx context.Context, key, content string, contextAttrs map[string]string, importance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
		if err := s.evictLocked(ctx); err != nil {
			return err
		}
	}

	if _, exists := s.entries[key]; exists {
		if err := s.coll.Delete(ctx, nil, nil, key); err != nil {
			return fmt.Errorf("replace %s: %w", key, err)
		}
	}

	if err := s.coll.AddDocument(ctx, chromem.Document{ID: key, Content: content}); err != nil {
		return fmt.Errorf("embed %s: %w", key, err)
	}

	s.entries[key] = &SemanticEntry{
		Key:        key,
		Content:    content,
		Context:    contextAttrs,
		Importance: importance,
		StoredAt:   time.Now().UTC(),
	}
	return nil
}

// Retrieve ranks stored entries against the query and returns the top limit
// results. With a non-nil queryContext the rank blends 60% cosine similarity
// with 40% attribute overlap; importance and access frequency add a small
// boost either way. Returned entries have their access count incremented.
func (s *SemanticMemory) Retrieve(ctx context.Context, query string, queryContext map[string]string, limit int) ([]SemanticResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 || limit <= 0 {
		return nil, nil
	}

	// Query the whole index; re-ranking happens here, not in chromem.
	hits, err := s.coll.Query(ctx, query, len(s.entries), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	results := make([]SemanticResult, 0, len(hits))
	for _, hit := range hits {
		entry, ok := s.entries[hit.ID]
		if !ok {
			continue
		}
		sim := float64(hit.Similarity)

		score := sim
		if queryContext != nil {
			score = 0.6*sim + 0.4*attributeOverlap(entry.Context, queryContext)
		}
		score += 0.1*entry.Importance + math.Min(float64(entry.AccessCount), 100)/1000

		results = append(results, SemanticResult{Entry: *entry, Similarity: sim, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		s.entries[r.Entry.Key].AccessCount++
	}
	return results, nil
}

// Get returns the entry stored under key without affecting access counts.
func (s *SemanticMemory) Get(key string) (SemanticEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return SemanticEntry{}, fmt.Errorf("semantic entry %s: %w", key, core.ErrNotFound)
	}
	return *entry, nil
}

// Delete removes the entry stored under key.
func (s *SemanticMemory) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return fmt.Errorf("semantic entry %s: %w", key, core.ErrNotFound)
	}
	if err := s.coll.Delete(ctx, nil, nil, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries.
func (s *SemanticMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked removes the entry with the lowest importance + accessCount/100.
func (s *SemanticMemory) evictLocked(ctx context.Context) error {
	var (
		victim string
		lowest = math.MaxFloat64
	)
	for key, entry := range s.entries {
		score := entry.Importance + float64(entry.AccessCount)/100
		if score < lowest {
			victim, lowest = key, score
		}
	}
	if victim == "" {
		return nil
	}
	if err := s.coll.Delete(ctx, nil, nil, victim); err != nil {
		return fmt.Errorf("evict %s: %w", victim, err)
	}
	delete(s.entries, victim)
	s.logger.Debug("semantic memory evicted %s (score %.3f)", victim, lowest)
	return nil
}

// attributeOverlap counts matching key/value pairs relative to the query
// context size.
func attributeOverlap(entryCtx, queryCtx map[string]string) float64 {
	if len(queryCtx) == 0 {
		return 0
	}
	matches := 0
	for k, v := range queryCtx {
		if entryCtx[k] == v {
			matches++
		}
	}
	return float64(matches) / float64(len(queryCtx))
}
