package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/bus"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/scaling"
)

// OrchestratorID is the orchestrator's well-known bus address.
const OrchestratorID = "orchestrator"

// decompositionVocabulary drives keyword-based splitting of tasks that
// declare no explicit requirements.
var decompositionVocabulary = []string{"research", "code", "test", "analyze", "document"}

// OrchestratorOptions configures the orchestrator.
type OrchestratorOptions struct {
	// Strategy assesses task complexity and decomposition. Defaults to the
	// standard strategy.
	Strategy *scaling.Strategy
	// Balancer tracks per-worker load for zero-score delegation fallback.
	Balancer *scaling.LoadBalancer
	// Bus, when set, receives status broadcasts as tasks complete. Workers
	// are registered on it so the fan-out has recipients.
	Bus *bus.MessageBus
	// Store, when set, persists tasks and results. Failures are logged and
	// never block the pipeline.
	Store core.TaskStore
	// Logger receives pipeline diagnostics. Nil means no logging.
	Logger logging.Logger
}

// Orchestrator drives each task through the pipeline
// Received, Analyzed, Decomposed or NotDecomposed, Delegated, Executing,
// Synthesized. It owns the worker registry; registration order is the
// tie-break for delegation scoring.
type Orchestrator struct {
	strategy *scaling.Strategy
	balancer *scaling.LoadBalancer
	bus      *bus.MessageBus
	store    core.TaskStore
	logger   logging.Logger

	mu      sync.RWMutex
	workers map[string]core.Agent
	order   []string
}

// NewOrchestrator creates an orchestrator with no registered workers.
func NewOrchestrator(optFns ...func(o *OrchestratorOptions)) *Orchestrator {
	opts := OrchestratorOptions{
		Strategy: scaling.NewStrategy(),
		Balancer: scaling.NewLoadBalancer(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Strategy == nil {
		opts.Strategy = scaling.NewStrategy()
	}

	if opts.Balancer == nil {
		opts.Balancer = scaling.NewLoadBalancer()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	o := &Orchestrator{
		strategy: opts.Strategy,
		balancer: opts.Balancer,
		bus:      opts.Bus,
		store:    opts.Store,
		logger:   opts.Logger,
		workers:  make(map[string]core.Agent),
	}

	if o.bus != nil {
		o.bus.Register(OrchestratorID)
	}

	return o
}

// RegisterWorker adds a worker to the delegation pool. Re-registering an id
// replaces the previous worker but keeps its position in the tie-break order.
func (o *Orchestrator) RegisterWorker(w core.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := w.ID()
	if _, exists := o.workers[id]; !exists {
		o.order = append(o.order, id)
	}
	o.workers[id] = w

	o.balancer.UpdateLoad(id, 0)

	if o.bus != nil {
		o.bus.Register(id)
	}

	o.logger.Info("worker registered", "agent_id", id, "capabilities", len(w.Capabilities()))
}

// UnregisterWorker removes a worker from the pool.
func (o *Orchestrator) UnregisterWorker(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.workers[id]; !exists {
		return
	}

	delete(o.workers, id)
	for i, oid := range o.order {
		if oid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}

	o.balancer.Remove(id)

	if o.bus != nil {
		o.bus.Unregister(id)
	}
}

// Workers returns the registered workers in registration order.
func (o *Orchestrator) Workers() []core.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]core.Agent, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.workers[id])
	}

	return out
}

// ProcessTask runs the full pipeline for one task and returns the
// synthesized result. Subtask failures surface as per-subtask detail inside a
// Success=false result, never as an error that aborts siblings.
func (o *Orchestrator) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	o.saveTask(task)

	assessment := o.strategy.AssessComplexity(task)
	task.Status = core.TaskStatusAnalyzed
	o.logger.Info("task analyzed", "task_id", task.ID, "score", assessment.Score, "complexity", assessment.Complexity)

	subtasks := o.decompose(task, assessment.Score)

	o.mu.RLock()
	available := len(o.order)
	o.mu.RUnlock()

	alloc := o.strategy.GetAgentAllocation(task, available)
	o.logger.Debug("allocation computed", "task_id", task.ID, "agents", alloc.AgentCount, "tool_budget", alloc.ToolCallBudget)

	for _, st := range subtasks {
		if st.ToolCallBudget == 0 {
			st.ToolCallBudget = alloc.ToolCallBudget
		}
		if st != task {
			o.saveTask(st)
		}
	}

	assignments, err := o.delegate(subtasks)
	if err != nil {
		result := core.NewErrorResult(task.ID, OrchestratorID, err)
		o.saveResult(result)
		return result
	}

	task.Status = core.TaskStatusDelegated

	task.Status = core.TaskStatusExecuting
	results := o.execute(ctx, subtasks, assignments)

	final := o.synthesize(task, results)
	task.Status = core.TaskStatusSynthesized

	o.saveTask(task)
	o.saveResult(final)
	o.announce(task, final)

	return final
}

// decompose splits a task per the decomposition rule. The returned slice
// contains the task itself when no split applies.
func (o *Orchestrator) decompose(task *core.Task, score float64) []*core.Task {
	if score <= 0.5 && len(task.Requirements) <= 1 {
		task.Status = core.TaskStatusNotDecomposed
		return []*core.Task{task}
	}

	var subtasks []*core.Task

	if len(task.Requirements) > 0 {
		for _, req := range task.Requirements {
			st := core.NewSubtask(task, fmt.Sprintf("%s (%s)", task.Description, req), []string{req})
			subtasks = append(subtasks, st)
		}
	} else {
		desc := strings.ToLower(task.Description)
		for _, word := range decompositionVocabulary {
			if strings.Contains(desc, word) {
				st := core.NewSubtask(task, fmt.Sprintf("%s (%s)", task.Description, word), []string{word})
				subtasks = append(subtasks, st)
			}
		}
	}

	if len(subtasks) == 0 {
		task.Status = core.TaskStatusNotDecomposed
		return []*core.Task{task}
	}

	for _, st := range subtasks {
		task.ChildTaskIDs = append(task.ChildTaskIDs, st.ID)
	}
	task.Status = core.TaskStatusDecomposed

	o.logger.Info("task decomposed", "task_id", task.ID, "subtasks", len(subtasks))

	return subtasks
}

// delegate picks a worker per subtask. The highest capability x performance x
// success-rate score wins; ties favor the earliest registered worker; when
// every score is zero the least loaded idle worker takes the subtask.
func (o *Orchestrator) delegate(subtasks []*core.Task) (map[string]core.Agent, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.order) == 0 {
		return nil, fmt.Errorf("no registered workers: %w", core.ErrUnavailable)
	}

	assignments := make(map[string]core.Agent, len(subtasks))

	for _, st := range subtasks {
		var (
			best      core.Agent
			bestScore float64
			idleIDs   []string
		)

		for _, id := range o.order {
			w := o.workers[id]
			if w.State() != core.AgentStateIdle {
				continue
			}
			idleIDs = append(idleIDs, id)

			score := delegationScore(w, st)
			if score > bestScore {
				best, bestScore = w, score
			}
		}

		if best == nil {
			id, err := o.balancer.LeastLoadedAgent(idleIDs)
			if err != nil {
				return nil, fmt.Errorf("no idle worker for subtask %s: %w", st.ID, core.ErrUnavailable)
			}
			best = o.workers[id]
		}

		assignments[st.ID] = best
		o.logger.Info("subtask delegated", "subtask_id", st.ID, "agent_id", best.ID(), "score", bestScore)
	}

	return assignments, nil
}

// delegationScore sums the worker's proficiency over the subtask's matching
// requirements and scales by its performance score and success rate.
func delegationScore(w core.Agent, subtask *core.Task) float64 {
	var sum float64

	for _, capability := range w.Capabilities() {
		for _, req := range subtask.Requirements {
			if capability.Name == req {
				sum += capability.Proficiency
			}
		}
	}

	stats := w.Stats()

	return sum * stats.PerformanceScore * stats.SuccessRate()
}

// execute dispatches subtasks concurrently, one goroutine per assigned
// worker. Subtasks sharing a worker run sequentially within that goroutine so
// the single-task-in-flight rule holds. Returns once every subtask completed.
func (o *Orchestrator) execute(ctx context.Context, subtasks []*core.Task, assignments map[string]core.Agent) []*core.Result {
	indexes := make(map[string]int, len(subtasks))
	for i, st := range subtasks {
		indexes[st.ID] = i
	}

	groups := make(map[string][]*core.Task)
	var groupOrder []string

	for _, st := range subtasks {
		w := assignments[st.ID]
		if _, seen := groups[w.ID()]; !seen {
			groupOrder = append(groupOrder, w.ID())
		}
		groups[w.ID()] = append(groups[w.ID()], st)
	}

	results := make([]*core.Result, len(subtasks))

	var wg sync.WaitGroup

	for _, workerID := range groupOrder {
		batch := groups[workerID]
		w := assignments[batch[0].ID]

		wg.Add(1)

		go func() {
			defer wg.Done()

			o.balancer.UpdateLoad(w.ID(), 1.0)
			defer o.balancer.UpdateLoad(w.ID(), 0)

			for _, st := range batch {
				start := time.Now()

				result := w.ProcessTask(ctx, st)
				if result == nil {
					result = core.NewErrorResult(st.ID, w.ID(), fmt.Errorf("worker returned no result: %w", core.ErrUnavailable))
				}

				o.logger.Info("subtask executed", "subtask_id", st.ID, "agent_id", w.ID(), "success", result.Success, "duration", time.Since(start))

				o.saveResult(result)
				results[indexes[st.ID]] = result
			}
		}()
	}

	wg.Wait()

	return results
}

// synthesize aggregates subtask results: overall success is the AND of all
// subtask successes, quality the arithmetic mean and execution time the
// maximum (the parallel critical path, not the sum).
func (o *Orchestrator) synthesize(task *core.Task, results []*core.Result) *core.Result {
	success := true

	var (
		qualitySum float64
		maxTime    time.Duration
		failures   int
	)

	for _, r := range results {
		success = success && r.Success
		qualitySum += r.QualityScore
		if r.ExecutionTime > maxTime {
			maxTime = r.ExecutionTime
		}
		if !r.Success {
			failures++
		}
	}

	var quality float64
	if len(results) > 0 {
		quality = qualitySum / float64(len(results))
	}

	final := &core.Result{
		TaskID:        task.ID,
		AgentID:       OrchestratorID,
		Success:       success,
		Payload:       results,
		ExecutionTime: maxTime,
		QualityScore:  quality,
		Metadata: map[string]any{
			"subtasks": len(results),
			"failures": failures,
		},
		CreatedAt: time.Now().UTC(),
	}

	return final
}

// announce broadcasts a status update for the completed task when a bus is
// wired.
func (o *Orchestrator) announce(task *core.Task, result *core.Result) {
	if o.bus == nil {
		return
	}

	msg := core.NewMessage(OrchestratorID, core.Broadcast, core.MessageTypeStatusUpdate, map[string]any{
		"task_id": task.ID,
		"status":  string(task.Status),
		"success": result.Success,
	})
	msg.Priority = task.Priority

	if err := o.bus.Send(msg); err != nil {
		o.logger.Warn("status broadcast failed", "task_id", task.ID, "error", err)
	}
}

func (o *Orchestrator) saveTask(task *core.Task) {
	if o.store == nil {
		return
	}

	if err := o.store.SaveTask(task); err != nil {
		o.logger.Warn("task persistence failed", "task_id", task.ID, "error", err)
	}
}

func (o *Orchestrator) saveResult(result *core.Result) {
	if o.store == nil {
		return
	}

	if err := o.store.SaveResult(result); err != nil {
		o.logger.Warn("result persistence failed", "task_id", result.TaskID, "error", err)
	}
}
