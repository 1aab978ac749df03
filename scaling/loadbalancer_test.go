package scaling

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
)

func TestLeastLoadedAgent(t *testing.T) {
	lb := NewLoadBalancer()
	lb.UpdateLoad("a", 0.7)
	lb.UpdateLoad("b", 0.2)
	lb.UpdateLoad("c", 0.9)

	got, err := lb.LeastLoadedAgent([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestLeastLoadedAgent_StableTieBreak(t *testing.T) {
	lb := NewLoadBalancer()
	lb.UpdateLoad("x", 0.5)
	lb.UpdateLoad("y", 0.5)

	got, err := lb.LeastLoadedAgent([]string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "x", got, "ties favor input order")
}

func TestLeastLoadedAgent_NoCandidates(t *testing.T) {
	lb := NewLoadBalancer()
	_, err := lb.LeastLoadedAgent(nil)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestUpdateLoad_Clamps(t *testing.T) {
	lb := NewLoadBalancer()
	lb.UpdateLoad("a", 1.8)
	lb.UpdateLoad("b", -0.3)

	assert.Equal(t, 1.0, lb.Load("a"))
	assert.Equal(t, 0.0, lb.Load("b"))
	assert.Equal(t, 0.0, lb.Load("unknown"))
}

func TestDistributeTasks_RoundRobinOverLoadSortedAgents(t *testing.T) {
	lb := NewLoadBalancer()
	lb.UpdateLoad("A", 0.1)
	lb.UpdateLoad("B", 0.9)

	tasks := make([]*core.Task, 4)
	for i := range tasks {
		tasks[i] = core.NewTask("t", nil, 1, nil)
	}

	dist, err := lb.DistributeTasks(tasks, []string{"B", "A"})
	require.NoError(t, err)

	// Agents sort to [A, B]; round-robin yields A:[t0,t2] B:[t1,t3].
	require.Len(t, dist["A"], 2)
	require.Len(t, dist["B"], 2)
	assert.Same(t, tasks[0], dist["A"][0])
	assert.Same(t, tasks[2], dist["A"][1])
	assert.Same(t, tasks[1], dist["B"][0])
	assert.Same(t, tasks[3], dist["B"][1])
}

func TestDistributeTasks_NoAgents(t *testing.T) {
	lb := NewLoadBalancer()
	_, err := lb.DistributeTasks([]*core.Task{core.NewTask("t", nil, 1, nil)}, nil)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestUpdateLoad_ConcurrentPerAgent(t *testing.T) {
	lb := NewLoadBalancer()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				lb.UpdateLoad(id, float64(i%10)/10.0)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		load := lb.Load(id)
		assert.GreaterOrEqual(t, load, 0.0)
		assert.LessOrEqual(t, load, 1.0)
	}
}
