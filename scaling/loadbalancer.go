package scaling

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentswarm/core"
)

// LoadBalancer tracks a caller-reported load value per agent (0.0 idle to
// 1.0 saturated) and distributes work toward the least loaded agents.
//
// The structural map is guarded by an RWMutex but each load value lives in
// its own atomic cell, so concurrent updates for different agents never
// share a critical section.
type LoadBalancer struct {
	mu    sync.RWMutex
	loads map[string]*atomic.Uint64 // float64 bits
}

// NewLoadBalancer constructs an empty load balancer.
func NewLoadBalancer() *LoadBalancer {
	return &LoadBalancer{loads: make(map[string]*atomic.Uint64)}
}

// UpdateLoad records an agent's current load, clamped to [0, 1]. Unknown
// agents are added implicitly.
func (lb *LoadBalancer) UpdateLoad(agentID string, load float64) {
	load = math.Max(0, math.Min(1, load))

	lb.mu.RLock()
	cell, ok := lb.loads[agentID]
	lb.mu.RUnlock()

	if !ok {
		lb.mu.Lock()
		cell, ok = lb.loads[agentID]
		if !ok {
			cell = &atomic.Uint64{}
			lb.loads[agentID] = cell
		}
		lb.mu.Unlock()
	}
	cell.Store(math.Float64bits(load))
}

// Load returns the last reported load for the agent, zero when unknown.
func (lb *LoadBalancer) Load(agentID string) float64 {
	lb.mu.RLock()
	cell, ok := lb.loads[agentID]
	lb.mu.RUnlock()
	if !ok {
		return 0
	}
	return math.Float64frombits(cell.Load())
}

// Remove forgets an agent's load entry.
func (lb *LoadBalancer) Remove(agentID string) {
	lb.mu.Lock()
	delete(lb.loads, agentID)
	lb.mu.Unlock()
}

// LeastLoadedAgent returns the candidate with the minimum load. Ties are
// broken by input order so the selection is stable.
func (lb *LoadBalancer) LeastLoadedAgent(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates: %w", core.ErrUnavailable)
	}

	best := candidates[0]
	bestLoad := lb.Load(best)
	for _, id := range candidates[1:] {
		if l := lb.Load(id); l < bestLoad {
			best, bestLoad = id, l
		}
	}
	return best, nil
}

// DistributeTasks assigns tasks round-robin over the agents sorted ascending
// by load, so lighter agents receive the earlier (and, with uneven counts,
// the extra) tasks. The returned map contains an entry for every agent that
// received at least one task.
func (lb *LoadBalancer) DistributeTasks(tasks []*core.Task, agents []string) (map[string][]*core.Task, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents: %w", core.ErrUnavailable)
	}

	sorted := make([]string, len(agents))
	copy(sorted, agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lb.Load(sorted[i]) < lb.Load(sorted[j])
	})

	distribution := make(map[string][]*core.Task)
	for i, task := range tasks {
		agentID := sorted[i%len(sorted)]
		distribution[agentID] = append(distribution[agentID], task)
	}
	return distribution, nil
}
