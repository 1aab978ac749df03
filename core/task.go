package core

import "time"

// TaskStatus tracks a task through the orchestration state machine:
// Received -> Analyzed -> (Decomposed | NotDecomposed) -> Delegated ->
// Executing -> Synthesized. Status is advanced only by the orchestrator.
type TaskStatus string

const (
	// TaskStatusReceived is the initial status of a freshly submitted task.
	TaskStatusReceived TaskStatus = "received"
	// TaskStatusAnalyzed marks a task whose complexity has been assessed.
	TaskStatusAnalyzed TaskStatus = "analyzed"
	// TaskStatusDecomposed marks a task that was split into subtasks.
	TaskStatusDecomposed TaskStatus = "decomposed"
	// TaskStatusNotDecomposed marks a task executed as its own sole subtask.
	TaskStatusNotDecomposed TaskStatus = "not_decomposed"
	// TaskStatusDelegated marks a task whose subtasks have been assigned.
	TaskStatusDelegated TaskStatus = "delegated"
	// TaskStatusExecuting marks a task with subtasks in flight.
	TaskStatusExecuting TaskStatus = "executing"
	// TaskStatusSynthesized is the terminal status after results are merged.
	TaskStatusSynthesized TaskStatus = "synthesized"
)

// Task is the unit of work accepted by the orchestrator. Requirements are
// ordered capability tags used for decomposition and delegation matching.
// Only the orchestrator mutates a task after creation, and only by appending
// child ids and advancing Status.
type Task struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Requirements []string       `json:"requirements,omitempty"`
	Priority     int            `json:"priority"`
	ParentTaskID string         `json:"parent_task_id,omitempty"`
	ChildTaskIDs []string       `json:"child_task_ids,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	// ToolCallBudget caps the generator/tool calls a worker may spend on this
	// task. The orchestrator stamps it from the scaling allocation before
	// dispatch; zero means the worker's own default applies.
	ToolCallBudget int        `json:"tool_call_budget,omitempty"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewTask creates a task in the Received state with a generated id.
func NewTask(description string, requirements []string, priority int, context map[string]any) *Task {
	return &Task{
		ID:           NewID(),
		Description:  description,
		Requirements: requirements,
		Priority:     priority,
		Context:      context,
		Status:       TaskStatusReceived,
		CreatedAt:    time.Now().UTC(),
	}
}

// Clone returns a deep copy so stores can snapshot a task the orchestrator
// keeps mutating.
func (t *Task) Clone() *Task {
	c := *t

	if t.Requirements != nil {
		c.Requirements = append([]string(nil), t.Requirements...)
	}
	if t.ChildTaskIDs != nil {
		c.ChildTaskIDs = append([]string(nil), t.ChildTaskIDs...)
	}
	if t.Context != nil {
		c.Context = make(map[string]any, len(t.Context))
		for k, v := range t.Context {
			c.Context[k] = v
		}
	}

	return &c
}

// NewSubtask creates a child task inheriting the parent's context and
// priority. The parent's ChildTaskIDs slice is updated by the caller so the
// parent/child link invariant is maintained in one place.
func NewSubtask(parent *Task, description string, requirements []string) *Task {
	sub := NewTask(description, requirements, parent.Priority, parent.Context)
	sub.ParentTaskID = parent.ID
	sub.ToolCallBudget = parent.ToolCallBudget
	return sub
}

// Result is the immutable outcome record of exactly one processed task.
type Result struct {
	TaskID        string         `json:"task_id"`
	Success       bool           `json:"success"`
	Payload       any            `json:"payload,omitempty"`
	Error         string         `json:"error,omitempty"`
	AgentID       string         `json:"agent_id"`
	ExecutionTime time.Duration  `json:"execution_time"`
	QualityScore  float64        `json:"quality_score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewResult creates a successful result for a task processed by agentID.
func NewResult(taskID, agentID string, payload any) *Result {
	return &Result{
		TaskID:    taskID,
		AgentID:   agentID,
		Success:   true,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// NewErrorResult creates a failed result carrying the error text. Subtask
// failures are captured as data so one failing branch never aborts siblings.
func NewErrorResult(taskID, agentID string, err error) *Result {
	r := &Result{
		TaskID:    taskID,
		AgentID:   agentID,
		Success:   false,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
