package agentswarm

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/fallback"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitTask_AsyncRoundTrip(t *testing.T) {
	swarm := New()
	swarm.RegisterWorker(agent.NewResearchAgent())
	swarm.RegisterWorker(agent.NewCodeAgent())

	taskID := swarm.SubmitTask("prototype the idea", []string{"research", "code"}, 5, nil)
	require.NotEmpty(t, taskID)

	result, err := swarm.WaitResult(taskID, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, taskID, result.TaskID)
}

func TestSubmitTaskSync(t *testing.T) {
	st := store.NewInMemoryStore()
	swarm := New(func(o *Options) { o.Store = st })
	swarm.RegisterWorker(agent.NewGeneralAgent())

	result := swarm.SubmitTaskSync(context.Background(), "quick check", nil, 1, nil)
	require.True(t, result.Success)

	tasks, err := st.QueryTasks(core.TaskStatusSynthesized, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, result.TaskID, tasks[0].ID)
}

func TestWaitResult_UnknownTask(t *testing.T) {
	swarm := New()

	_, err := swarm.WaitResult("missing", time.Second)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWaitResult_Timeout(t *testing.T) {
	swarm := New()
	// No registered workers means the pipeline fails fast; use a slow worker
	// to force the timeout path instead.
	release := make(chan struct{})
	swarm.RegisterWorker(&slowAgent{id: "slow", release: release})

	taskID := swarm.SubmitTask("takes a while", []string{"research"}, 5, nil)

	_, err := swarm.WaitResult(taskID, 20*time.Millisecond)
	assert.ErrorIs(t, err, core.ErrTimeout)

	close(release)

	result, err := swarm.WaitResult(taskID, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSubmitTask_UnclaimedResultReaped(t *testing.T) {
	swarm := New(func(o *Options) { o.ResultRetention = 20 * time.Millisecond })
	swarm.RegisterWorker(agent.NewGeneralAgent())

	taskID := swarm.SubmitTask("fire and forget", nil, 1, nil)

	// The pending entry disappears once the retention window elapses, even
	// though nobody ever called WaitResult.
	assert.Eventually(t, func() bool {
		swarm.mu.Lock()
		defer swarm.mu.Unlock()
		_, ok := swarm.pending[taskID]
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, err := swarm.WaitResult(taskID, time.Second)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestShareContext_BroadcastsEntry(t *testing.T) {
	swarm := New()
	swarm.Bus().Register("listener")

	id := swarm.ShareContext("researcher", "finding", "rates are trending down", 0.8)

	entry, err := swarm.Contexts().Get(id)
	require.NoError(t, err)
	assert.Equal(t, memory.ScopeShared, entry.Scope)
	assert.Equal(t, "rates are trending down", entry.Content)

	msg, err := swarm.Bus().Receive("listener", time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.MessageTypeContextShare, msg.Type)

	payload := msg.Payload.(map[string]any)
	assert.Equal(t, id, payload["context_id"])
}

func TestFallbacks_SharedRegistry(t *testing.T) {
	swarm := New()

	chain := swarm.Fallbacks().Register("llm", fallback.StrategySequential)
	again := swarm.Fallbacks().Register("llm", fallback.StrategySequential)
	assert.Same(t, chain, again)
}

type slowAgent struct {
	id      string
	release chan struct{}
}

func (a *slowAgent) ID() string             { return a.id }
func (a *slowAgent) State() core.AgentState { return core.AgentStateIdle }

func (a *slowAgent) Stats() core.AgentStats {
	return core.AgentStats{PerformanceScore: 1.0}
}

func (a *slowAgent) Capabilities() []core.AgentCapability {
	return []core.AgentCapability{{Name: "research", Proficiency: 0.9}}
}

func (a *slowAgent) ProcessTask(_ context.Context, task *core.Task) *core.Result {
	<-a.release
	return core.NewResult(task.ID, a.id, "eventually")
}
