package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
)

// WorkerOptions configures a worker flavor at construction time.
type WorkerOptions struct {
	// ID overrides the generated agent id. Useful for deterministic tests.
	ID string
	// Generator is the optional reasoning backend. Workers fall back to
	// their built-in heuristics when it is nil or reports ok=false.
	Generator model.Generator
	// CallBudget caps generator calls per task. Zero means the budget carried
	// on each task (stamped by the orchestrator from the scaling allocation)
	// applies alone; when both are set the tighter cap wins.
	CallBudget int
	// Logger receives worker diagnostics. Nil means no logging.
	Logger logging.Logger
}

// taskBody is one flavor's processing routine. It returns the payload, a
// quality score in [0,1] and an error; the surrounding worker machinery turns
// these into a core.Result and updates stats.
type taskBody func(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error)

// worker holds the state every flavor needs: identity, declared capabilities,
// an atomic busy flag and processing stats. Flavors embed it by value so no
// state is shared between agents.
type worker struct {
	id           string
	capabilities []core.AgentCapability
	system       string
	generator    model.Generator
	budget       int
	logger       logging.Logger

	busy atomic.Bool

	mu    sync.Mutex
	stats core.AgentStats
}

func newWorker(kind, system string, capabilities []core.AgentCapability, optFns []func(o *WorkerOptions)) worker {
	opts := WorkerOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	id := opts.ID
	if id == "" {
		id = fmt.Sprintf("%s-%s", kind, core.NewID())
	}

	return worker{
		id:           id,
		capabilities: capabilities,
		system:       system,
		generator:    opts.Generator,
		budget:       opts.CallBudget,
		logger:       opts.Logger,
		stats:        core.AgentStats{PerformanceScore: 1.0},
	}
}

// ID returns the agent's unique id.
func (w *worker) ID() string { return w.id }

// Capabilities returns a copy of the agent's declared capability set.
func (w *worker) Capabilities() []core.AgentCapability {
	out := make([]core.AgentCapability, len(w.capabilities))
	copy(out, w.capabilities)
	return out
}

// State reports idle or busy. Busy agents are excluded from delegation.
func (w *worker) State() core.AgentState {
	if w.busy.Load() {
		return core.AgentStateBusy
	}
	return core.AgentStateIdle
}

// Stats returns a snapshot of the agent's processing history.
func (w *worker) Stats() core.AgentStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.stats
}

// run executes body for one task, enforcing the single-task-in-flight rule
// and recording stats. A worker invoked while busy rejects the task with an
// Unavailable result rather than queueing it. Generator calls are limited by
// the task's ToolCallBudget or the constructor budget, whichever is tighter.
func (w *worker) run(ctx context.Context, task *core.Task, body taskBody) *core.Result {
	if !w.busy.CompareAndSwap(false, true) {
		return core.NewErrorResult(task.ID, w.id, fmt.Errorf("agent %s busy: %w", w.id, core.ErrUnavailable))
	}
	defer w.busy.Store(false)

	budget := w.budget
	if b := task.ToolCallBudget; b > 0 && (budget == 0 || b < budget) {
		budget = b
	}

	start := time.Now()
	calls := core.NewCallLimiter(budget)

	payload, quality, err := body(ctx, task, calls)
	elapsed := time.Since(start)

	if err != nil {
		w.record(false, 0)
		w.logger.Warn("task failed", "agent_id", w.id, "task_id", task.ID, "error", err)

		result := core.NewErrorResult(task.ID, w.id, err)
		result.ExecutionTime = elapsed

		return result
	}

	w.record(true, quality)
	w.logger.Debug("task processed", "agent_id", w.id, "task_id", task.ID, "quality", quality, "duration", elapsed)

	result := core.NewResult(task.ID, w.id, payload)
	result.ExecutionTime = elapsed
	result.QualityScore = quality

	return result
}

// record folds one outcome into the stats. PerformanceScore is an exponential
// moving average of observed quality so delegation favors agents that have
// been delivering.
func (w *worker) record(success bool, quality float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if success {
		w.stats.TasksCompleted++
	} else {
		w.stats.TasksFailed++
	}

	w.stats.PerformanceScore = 0.9*w.stats.PerformanceScore + 0.1*quality
}

// generate asks the configured backend for text, spending one call from the
// task's budget. Returns ok=false when there is no backend, the budget is
// exhausted or the backend degrades; callers fall back to heuristics.
func (w *worker) generate(ctx context.Context, calls *core.CallLimiter, prompt string) (string, bool) {
	if w.generator == nil {
		return "", false
	}

	if err := calls.Increment(); err != nil {
		w.logger.Warn("call budget exhausted", "agent_id", w.id, "error", err)
		return "", false
	}

	return w.generator.Generate(ctx, prompt, w.system)
}

// taskPrompt renders a task into a prompt for the generator.
func taskPrompt(task *core.Task) string {
	var sb strings.Builder

	sb.WriteString(task.Description)

	if len(task.Requirements) > 0 {
		sb.WriteString("\n\nRequirements: ")
		sb.WriteString(strings.Join(task.Requirements, ", "))
	}

	for k, v := range task.Context {
		fmt.Fprintf(&sb, "\n%s: %v", k, v)
	}

	return sb.String()
}
