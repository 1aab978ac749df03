package fallback

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Handler is one alternative implementation of the wrapped operation.
// Handlers used with the parallel strategy should respect context
// cancellation; losing branches are cancelled once a winner is found.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Strategy selects how a chain dispatches to its fallbacks after the primary
// handler fails.
type Strategy string

const (
	// StrategySequential tries fallbacks in priority order until one
	// succeeds or all fail.
	StrategySequential Strategy = "sequential"
	// StrategyParallel launches all fallbacks concurrently and returns the
	// first success, cancelling the rest.
	StrategyParallel Strategy = "parallel"
	// StrategyWeighted picks one fallback by weighted random draw, degrading
	// to sequential over the remainder if it fails.
	StrategyWeighted Strategy = "weighted"
	// StrategyAdaptive ranks fallbacks by observed success rate and latency
	// and tries them in that order.
	StrategyAdaptive Strategy = "adaptive"
)

// OptionStats is a snapshot of one fallback option's counters. Success and
// failure counts are monotonically non-decreasing.
type OptionStats struct {
	Name       string
	Priority   int
	Weight     float64
	Successes  int
	Failures   int
	AvgLatency time.Duration
}

// SuccessRate returns successes/(successes+failures), defaulting to 1.0 for
// an option that was never attempted.
func (s OptionStats) SuccessRate() float64 {
	total := s.Successes + s.Failures
	if total == 0 {
		return 1.0
	}
	return float64(s.Successes) / float64(total)
}

// option is a registered alternative handler plus its rolling counters.
// Counters are guarded by the owning chain's mutex.
type option struct {
	name       string
	handler    Handler
	priority   int
	weight     float64
	successes  int
	failures   int
	avgLatency time.Duration
}

func (o *option) stats() OptionStats {
	return OptionStats{
		Name:       o.name,
		Priority:   o.priority,
		Weight:     o.weight,
		Successes:  o.successes,
		Failures:   o.failures,
		AvgLatency: o.avgLatency,
	}
}

// score ranks an option for the adaptive strategy. Latency contributes via
// 1/(1+seconds) so fast options win ties between equal success rates.
func (o *option) score() float64 {
	return 0.7*o.stats().SuccessRate() + 0.3*(1.0/(1.0+o.avgLatency.Seconds()))
}

// Chain wraps a primary operation with registered fallback options. All
// methods are safe for concurrent use; each chain carries its own lock so
// chains never contend with each other.
type Chain struct {
	name     string
	strategy Strategy
	logger   logging.Logger

	mu      sync.Mutex
	options []*option
	rng     *rand.Rand
}

// ChainOptions holds configuration overrides passed to NewChain.
type ChainOptions struct {
	// Logger receives per-execution diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Seed fixes the weighted draw for deterministic tests. Zero seeds from
	// the clock.
	Seed int64
}

// NewChain creates an empty chain with the given dispatch strategy.
func NewChain(name string, strategy Strategy, optFns ...func(o *ChainOptions)) *Chain {
	opts := ChainOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Chain{
		name:     name,
		strategy: strategy,
		logger:   opts.Logger,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Name returns the chain's registry name.
func (c *Chain) Name() string { return c.name }

// Strategy returns the chain's dispatch strategy.
func (c *Chain) Strategy() Strategy { return c.strategy }

// AddFallback registers an alternative handler. Options are kept sorted by
// priority descending; ties keep registration order.
func (c *Chain) AddFallback(name string, handler Handler, priority int, weight float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = append(c.options, &option{
		name:     name,
		handler:  handler,
		priority: priority,
		weight:   weight,
	})
	sort.SliceStable(c.options, func(i, j int) bool {
		return c.options[i].priority > c.options[j].priority
	})
}

// Stats returns a snapshot of every option's counters in priority order.
func (c *Chain) Stats() []OptionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]OptionStats, len(c.options))
	for i, o := range c.options {
		out[i] = o.stats()
	}
	return out
}

// Execute invokes primary and, on failure, dispatches to the fallbacks
// according to the chain's strategy. Every fallback attempt updates the
// chosen option's counters and latency regardless of strategy. When every
// option fails the returned error wraps core.ErrExhausted and carries the
// last underlying cause.
func (c *Chain) Execute(ctx context.Context, primary Handler, args map[string]any) (any, error) {
	start := time.Now()

	result, err := primary(ctx, args)
	if err == nil {
		return result, nil
	}
	c.logger.Debug("chain %s primary failed: %v", c.name, err)

	c.mu.Lock()
	snapshot := make([]*option, len(c.options))
	copy(snapshot, c.options)
	c.mu.Unlock()

	if len(snapshot) == 0 {
		return nil, fmt.Errorf("chain %s has no fallbacks, primary failed: %v: %w", c.name, err, core.ErrExhausted)
	}

	var (
		res      any
		attempts int
		ferr     error
	)
	switch c.strategy {
	case StrategyParallel:
		res, attempts, ferr = c.runParallel(ctx, snapshot, args)
	case StrategyWeighted:
		res, attempts, ferr = c.runWeighted(ctx, snapshot, args)
	case StrategyAdaptive:
		res, attempts, ferr = c.runAdaptive(ctx, snapshot, args)
	default:
		res, attempts, ferr = c.runSequential(ctx, snapshot, args)
	}

	c.logger.Debug("chain %s strategy=%s attempts=%d duration=%s success=%t",
		c.name, c.strategy, attempts, time.Since(start), ferr == nil)
	return res, ferr
}

// attempt runs one option and records its outcome. The latency average is
// streamed: avg += (lat - avg) / attempts.
func (c *Chain) attempt(ctx context.Context, o *option, args map[string]any) (any, error) {
	start := time.Now()
	result, err := o.handler(ctx, args)
	latency := time.Since(start)

	c.mu.Lock()
	if err == nil {
		o.successes++
	} else {
		o.failures++
	}
	n := o.successes + o.failures
	o.avgLatency += (latency - o.avgLatency) / time.Duration(n)
	c.mu.Unlock()

	return result, err
}

func (c *Chain) runSequential(ctx context.Context, opts []*option, args map[string]any) (any, int, error) {
	var lastErr error
	for i, o := range opts {
		result, err := c.attempt(ctx, o, args)
		if err == nil {
			return result, i + 1, nil
		}
		lastErr = err
	}
	return nil, len(opts), c.exhausted(len(opts), lastErr)
}

// runParallel launches every fallback concurrently. The first success wins
// and cancels the remaining branches; at most one success path survives.
func (c *Chain) runParallel(ctx context.Context, opts []*option, args map[string]any) (any, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	outcomes := make(chan outcome, len(opts))

	var wg sync.WaitGroup
	for _, o := range opts {
		wg.Add(1)
		go func(o *option) {
			defer wg.Done()
			result, err := c.attempt(ctx, o, args)
			outcomes <- outcome{result: result, err: err}
		}(o)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var lastErr error
	for out := range outcomes {
		if out.err == nil {
			cancel()
			return out.result, len(opts), nil
		}
		lastErr = out.err
	}
	return nil, len(opts), c.exhausted(len(opts), lastErr)
}

// runWeighted draws one option with probability proportional to its weight,
// then degrades to sequential over the remainder if the draw fails.
func (c *Chain) runWeighted(ctx context.Context, opts []*option, args map[string]any) (any, int, error) {
	chosen := c.weightedDraw(opts)

	result, err := c.attempt(ctx, opts[chosen], args)
	if err == nil {
		return result, 1, nil
	}

	rest := make([]*option, 0, len(opts)-1)
	for i, o := range opts {
		if i != chosen {
			rest = append(rest, o)
		}
	}
	if len(rest) == 0 {
		return nil, 1, c.exhausted(1, err)
	}
	res, attempts, ferr := c.runSequential(ctx, rest, args)
	return res, attempts + 1, ferr
}

// runAdaptive tries options ordered by score. Counters update after every
// attempt, so a structurally fine option that happens to sit in front of the
// one that works accumulates failures under an unlucky primary; this scoring
// quirk is intentional and covered by tests.
func (c *Chain) runAdaptive(ctx context.Context, opts []*option, args map[string]any) (any, int, error) {
	c.mu.Lock()
	ranked := make([]*option, len(opts))
	copy(ranked, opts)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score() > ranked[j].score() })
	c.mu.Unlock()

	return c.runSequential(ctx, ranked, args)
}

func (c *Chain) weightedDraw(opts []*option) int {
	var total float64
	for _, o := range opts {
		if o.weight > 0 {
			total += o.weight
		}
	}
	if total <= 0 {
		return 0
	}

	c.mu.Lock()
	draw := c.rng.Float64() * total
	c.mu.Unlock()

	for i, o := range opts {
		if o.weight <= 0 {
			continue
		}
		draw -= o.weight
		if draw < 0 {
			return i
		}
	}
	return len(opts) - 1
}

func (c *Chain) exhausted(attempts int, lastErr error) error {
	return fmt.Errorf("chain %s: all %d fallbacks failed, last: %v: %w", c.name, attempts, lastErr, core.ErrExhausted)
}
