package core

import "context"

// AgentCapability is a named skill an agent declares at construction time
// together with a proficiency score in [0, 1]. Capabilities are immutable for
// the lifetime of the agent.
type AgentCapability struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Proficiency float64 `json:"proficiency"`
}

// AgentState is the single piece of agent state the orchestrator reads for
// delegation. Implementations must update it atomically around ProcessTask.
type AgentState string

const (
	// AgentStateIdle means the agent can accept a task.
	AgentStateIdle AgentState = "idle"
	// AgentStateBusy means the agent has a task in flight and is excluded
	// from delegation scoring.
	AgentStateBusy AgentState = "busy"
	// AgentStateOffline means the agent was unregistered or stopped.
	AgentStateOffline AgentState = "offline"
)

// AgentStats aggregates an agent's processing history for delegation scoring.
type AgentStats struct {
	TasksCompleted   int     `json:"tasks_completed"`
	TasksFailed      int     `json:"tasks_failed"`
	PerformanceScore float64 `json:"performance_score"`
}

// SuccessRate returns completed/(completed+failed), defaulting to 1.0 for an
// agent with no history so new agents are not starved of work.
func (s AgentStats) SuccessRate() float64 {
	total := s.TasksCompleted + s.TasksFailed
	if total == 0 {
		return 1.0
	}
	return float64(s.TasksCompleted) / float64(total)
}

// Agent is the single contract all worker flavors implement. Distinct agent
// kinds (research, code, test, ...) are concrete types differing only in
// their declared capabilities and ProcessTask body; they share no base type
// with mutable state.
//
// ProcessTask must be safe to invoke concurrently for different tasks, but an
// implementation accepts at most one task in flight at a time: while busy it
// reports AgentStateBusy and rejects further work.
type Agent interface {
	ID() string
	Capabilities() []AgentCapability
	State() AgentState
	Stats() AgentStats
	ProcessTask(ctx context.Context, task *Task) *Result
}
