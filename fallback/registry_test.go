package fallback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
)

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()

	first := r.Register("valuation", StrategySequential)
	second := r.Register("valuation", StrategyParallel)

	assert.Same(t, first, second, "duplicate registration returns the existing chain")
	assert.Equal(t, StrategySequential, second.Strategy(), "original strategy wins")
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	chain := r.Register("market-data", StrategyAdaptive)

	got, err := r.Get("market-data")
	require.NoError(t, err)
	assert.Same(t, chain, got)

	_, err = r.Get("never-created")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistry_ConcurrentRegisterSameName(t *testing.T) {
	r := NewRegistry()

	chains := make([]*Chain, 16)
	var wg sync.WaitGroup
	for i := range chains {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chains[i] = r.Register("shared", StrategySequential)
		}(i)
	}
	wg.Wait()

	for _, c := range chains[1:] {
		assert.Same(t, chains[0], c)
	}
	assert.Equal(t, []string{"shared"}, r.Names())
}
