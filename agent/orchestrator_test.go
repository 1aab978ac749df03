package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/bus"
	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStore records persistence calls for assertions.
type captureStore struct {
	mu      sync.Mutex
	tasks   map[string]*core.Task
	results []*core.Result
}

func newCaptureStore() *captureStore {
	return &captureStore{tasks: make(map[string]*core.Task)}
}

func (s *captureStore) SaveTask(task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *captureStore) SaveResult(result *core.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *captureStore) QueryTasks(status core.TaskStatus, limit int) ([]*core.Task, error) {
	return nil, nil
}

// scriptedAgent is a minimal core.Agent for delegation and failure tests. It
// records the tasks it receives for dispatch assertions.
type scriptedAgent struct {
	id      string
	caps    []core.AgentCapability
	fail    bool
	quality float64

	mu   sync.Mutex
	seen []*core.Task
}

func (a *scriptedAgent) ID() string                           { return a.id }
func (a *scriptedAgent) Capabilities() []core.AgentCapability { return a.caps }
func (a *scriptedAgent) State() core.AgentState               { return core.AgentStateIdle }

func (a *scriptedAgent) Stats() core.AgentStats {
	return core.AgentStats{PerformanceScore: 1.0}
}

func (a *scriptedAgent) ProcessTask(_ context.Context, task *core.Task) *core.Result {
	a.mu.Lock()
	a.seen = append(a.seen, task)
	a.mu.Unlock()

	if a.fail {
		return core.NewErrorResult(task.ID, a.id, errors.New("scripted failure"))
	}
	r := core.NewResult(task.ID, a.id, "ok")
	r.QualityScore = a.quality
	return r
}

func TestProcessTask_OneSubtaskPerRequirement(t *testing.T) {
	store := newCaptureStore()
	o := NewOrchestrator(func(opts *OrchestratorOptions) { opts.Store = store })
	o.RegisterWorker(NewGeneralAgent(func(w *WorkerOptions) { w.ID = "general-1" }))

	task := core.NewTask("ship the feature", []string{"research", "code", "test"}, 5, nil)
	result := o.ProcessTask(context.Background(), task)

	require.True(t, result.Success)
	assert.Len(t, task.ChildTaskIDs, 3)
	assert.Equal(t, core.TaskStatusSynthesized, task.Status)

	for _, childID := range task.ChildTaskIDs {
		child, ok := store.tasks[childID]
		require.True(t, ok, "subtask persisted")
		assert.Equal(t, task.ID, child.ParentTaskID)
		assert.Len(t, child.Requirements, 1)
	}
}

func TestProcessTask_SpecialistsWinDelegation(t *testing.T) {
	o := NewOrchestrator()
	researcher := NewResearchAgent(func(w *WorkerOptions) { w.ID = "researcher" })
	coder := NewCodeAgent(func(w *WorkerOptions) { w.ID = "coder" })
	o.RegisterWorker(researcher)
	o.RegisterWorker(coder)

	task := core.NewTask("prototype the idea", []string{"research", "code"}, 5, nil)
	result := o.ProcessTask(context.Background(), task)

	require.True(t, result.Success)

	subResults, ok := result.Payload.([]*core.Result)
	require.True(t, ok)
	require.Len(t, subResults, 2)

	// Subtask order follows requirement order, so the research subtask is
	// first and each lands on its matching specialist.
	assert.Equal(t, "researcher", subResults[0].AgentID)
	assert.Equal(t, "coder", subResults[1].AgentID)

	wantQuality := (subResults[0].QualityScore + subResults[1].QualityScore) / 2
	assert.InDelta(t, wantQuality, result.QualityScore, 1e-9)
}

func TestDelegationScore_MatchingRequirementOnly(t *testing.T) {
	researcher := NewResearchAgent()
	coder := NewCodeAgent()
	subtask := core.NewTask("dig into prior art", []string{"research"}, 5, nil)

	assert.InDelta(t, 0.9, delegationScore(researcher, subtask), 1e-9)
	assert.Zero(t, delegationScore(coder, subtask))
}

func TestProcessTask_KeywordDecomposition(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(NewGeneralAgent())

	// No explicit requirements; the long description pushes the complexity
	// score past the decomposition cutoff and names two vocabulary words.
	desc := "research the existing market offerings in depth and then code a working prototype " +
		"demonstrating the differentiating features we discussed in the planning session"
	task := core.NewTask(desc, nil, 5, nil)

	result := o.ProcessTask(context.Background(), task)

	require.True(t, result.Success)
	require.Len(t, task.ChildTaskIDs, 2)
	assert.Equal(t, core.TaskStatusSynthesized, task.Status)

	subResults := result.Payload.([]*core.Result)
	require.Len(t, subResults, 2)
}

func TestProcessTask_SimpleTaskIsItsOwnSubtask(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(NewGeneralAgent())

	task := core.NewTask("quick check", nil, 1, nil)
	result := o.ProcessTask(context.Background(), task)

	require.True(t, result.Success)
	assert.Empty(t, task.ChildTaskIDs)

	subResults := result.Payload.([]*core.Result)
	require.Len(t, subResults, 1)
	assert.Equal(t, task.ID, subResults[0].TaskID)
}

func TestProcessTask_NoWorkers(t *testing.T) {
	o := NewOrchestrator()

	task := core.NewTask("orphaned work", []string{"code"}, 5, nil)
	result := o.ProcessTask(context.Background(), task)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, core.ErrUnavailable.Error())
}

func TestProcessTask_PartialFailureTolerated(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(&scriptedAgent{
		id:      "good",
		caps:    []core.AgentCapability{{Name: "research", Proficiency: 0.9}},
		quality: 0.8,
	})
	o.RegisterWorker(&scriptedAgent{
		id:   "flaky",
		caps: []core.AgentCapability{{Name: "code", Proficiency: 0.9}},
		fail: true,
	})

	task := core.NewTask("mixed outcome", []string{"research", "code"}, 5, nil)
	result := o.ProcessTask(context.Background(), task)

	assert.False(t, result.Success, "one failed subtask fails the synthesis")
	assert.Equal(t, 1, result.Metadata["failures"])

	subResults := result.Payload.([]*core.Result)
	require.Len(t, subResults, 2)
	assert.True(t, subResults[0].Success, "sibling unaffected by the failure")
	assert.False(t, subResults[1].Success)
	assert.Equal(t, "scripted failure", subResults[1].Error)
}

func TestProcessTask_SharedWorkerRunsSequentially(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(NewGeneralAgent())

	task := core.NewTask("solo swarm", []string{"research", "code", "test"}, 5, nil)
	result := o.ProcessTask(context.Background(), task)

	require.True(t, result.Success, "single worker absorbs all subtasks without busy rejections")

	subResults := result.Payload.([]*core.Result)
	require.Len(t, subResults, 3)
	for _, sr := range subResults {
		assert.True(t, sr.Success)
	}
}

func TestProcessTask_StampsAllocationBudget(t *testing.T) {
	o := NewOrchestrator()
	a := &scriptedAgent{
		id:      "solo",
		caps:    []core.AgentCapability{{Name: "research", Proficiency: 0.9}},
		quality: 0.8,
	}
	o.RegisterWorker(a)

	// Two requirements score 4.0, a moderate task, so every subtask carries
	// the moderate per-agent tool-call budget.
	task := core.NewTask("compare approaches", []string{"research", "analyze"}, 5, nil)
	require.True(t, o.ProcessTask(context.Background(), task).Success)

	require.Len(t, a.seen, 2)
	for _, st := range a.seen {
		assert.Equal(t, 10, st.ToolCallBudget)
	}
}

func TestProcessTask_KeepsCallerBudget(t *testing.T) {
	o := NewOrchestrator()
	a := &scriptedAgent{
		id:      "solo",
		caps:    []core.AgentCapability{{Name: "research", Proficiency: 0.9}},
		quality: 0.8,
	}
	o.RegisterWorker(a)

	task := core.NewTask("quick check", nil, 1, nil)
	task.ToolCallBudget = 3

	require.True(t, o.ProcessTask(context.Background(), task).Success)

	require.Len(t, a.seen, 1)
	assert.Equal(t, 3, a.seen[0].ToolCallBudget, "a budget set by the caller is not overwritten")
}

func TestProcessTask_BroadcastsStatus(t *testing.T) {
	mb := bus.New()
	mb.Register("listener")

	o := NewOrchestrator(func(opts *OrchestratorOptions) { opts.Bus = mb })
	o.RegisterWorker(NewGeneralAgent())

	task := core.NewTask("announce me", []string{"research"}, 7, nil)
	require.True(t, o.ProcessTask(context.Background(), task).Success)

	msg, err := mb.Receive("listener", time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.MessageTypeStatusUpdate, msg.Type)
	assert.Equal(t, OrchestratorID, msg.Sender)

	payload := msg.Payload.(map[string]any)
	assert.Equal(t, task.ID, payload["task_id"])
	assert.Equal(t, true, payload["success"])
}

func TestSynthesize_Aggregates(t *testing.T) {
	o := NewOrchestrator()
	task := core.NewTask("aggregate", nil, 5, nil)

	results := []*core.Result{
		{TaskID: "a", Success: true, QualityScore: 0.8, ExecutionTime: 100 * time.Millisecond},
		{TaskID: "b", Success: true, QualityScore: 0.6, ExecutionTime: 300 * time.Millisecond},
		{TaskID: "c", Success: false, QualityScore: 0, ExecutionTime: 50 * time.Millisecond},
	}

	final := o.synthesize(task, results)

	assert.False(t, final.Success)
	assert.InDelta(t, (0.8+0.6)/3, final.QualityScore, 1e-9)
	assert.Equal(t, 300*time.Millisecond, final.ExecutionTime, "critical path, not the sum")
	assert.Equal(t, 3, final.Metadata["subtasks"])
}

func TestSynthesize_EmptyResults(t *testing.T) {
	o := NewOrchestrator()
	final := o.synthesize(core.NewTask("empty", nil, 5, nil), nil)

	assert.True(t, final.Success)
	assert.Zero(t, final.QualityScore)
}

func TestUnregisterWorker_RemovesFromPool(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(NewGeneralAgent(func(w *WorkerOptions) { w.ID = "g1" }))
	o.RegisterWorker(NewGeneralAgent(func(w *WorkerOptions) { w.ID = "g2" }))

	o.UnregisterWorker("g1")

	workers := o.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, "g2", workers[0].ID())
}

func TestDecompose_SubtaskDescriptionsNameRequirement(t *testing.T) {
	o := NewOrchestrator()
	o.RegisterWorker(NewGeneralAgent())
	store := newCaptureStore()
	o.store = store

	task := core.NewTask("release", []string{"document"}, 9, nil)
	require.True(t, o.ProcessTask(context.Background(), task).Success)

	require.Len(t, task.ChildTaskIDs, 1, "high priority pushes even a single requirement past the cutoff")
	child := store.tasks[task.ChildTaskIDs[0]]
	require.NotNil(t, child)
	assert.True(t, strings.Contains(child.Description, "document"))
	assert.Equal(t, task.Priority, child.Priority, "subtasks inherit priority")
}
