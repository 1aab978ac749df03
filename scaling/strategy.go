// Package scaling classifies task complexity, recommends agent and tool-call
// budgets, and balances subtasks across agents by their reported load.
package scaling

import (
	"github.com/hupe1980/agentswarm/core"
)

// Complexity buckets a task's raw complexity score.
type Complexity string

const (
	// ComplexitySimple covers scores <= 2.
	ComplexitySimple Complexity = "simple"
	// ComplexityModerate covers scores <= 6.
	ComplexityModerate Complexity = "moderate"
	// ComplexityComplex covers scores <= 12.
	ComplexityComplex Complexity = "complex"
	// ComplexityVeryComplex covers everything above.
	ComplexityVeryComplex Complexity = "very_complex"
)

// Assessment pairs the raw score with its bucket.
type Assessment struct {
	Score      float64
	Complexity Complexity
}

// Allocation recommends how many agents to apply to a task and how many tool
// calls each of them may spend.
type Allocation struct {
	AgentCount     int
	ToolCallBudget int
}

// DecompositionMethod names how a task should be split.
type DecompositionMethod string

const (
	// DecomposeNone executes the task as its own sole subtask.
	DecomposeNone DecompositionMethod = "none"
	// DecomposeByRequirement creates one subtask per requirement tag.
	DecomposeByRequirement DecompositionMethod = "requirement"
	// DecomposeHierarchical splits into phases that split again.
	DecomposeHierarchical DecompositionMethod = "hierarchical"
	// DecomposeDivideAndConquer splits into budget-sized slices.
	DecomposeDivideAndConquer DecompositionMethod = "divide_and_conquer"
)

// DecompositionPlan is the strategy's recommendation for splitting a task.
type DecompositionPlan struct {
	Decompose      bool
	Method         DecompositionMethod
	TargetSubtasks int
}

// Strategy derives complexity, allocation and decomposition recommendations
// from task attributes alone. It is stateless and safe for concurrent use.
type Strategy struct{}

// NewStrategy creates a scaling strategy.
func NewStrategy() *Strategy { return &Strategy{} }

// AssessComplexity scores a task from its requirement count, description
// length, existing subtasks, priority and context size, then buckets the
// score. The weights are tuned so a bare one-line task lands in Simple and a
// multi-requirement, context-heavy task climbs buckets quickly.
func (s *Strategy) AssessComplexity(task *core.Task) Assessment {
	score := float64(len(task.Requirements)) * 2.0

	switch l := len(task.Description); {
	case l > 500:
		score += 3.0
	case l > 100:
		score += 1.5
	}

	score += float64(len(task.ChildTaskIDs)) * 1.5

	if task.Priority >= 8 {
		score += 1.0
	}

	score += float64(len(task.Context)) * 0.5

	return Assessment{Score: score, Complexity: bucket(score)}
}

func bucket(score float64) Complexity {
	switch {
	case score <= 2:
		return ComplexitySimple
	case score <= 6:
		return ComplexityModerate
	case score <= 12:
		return ComplexityComplex
	default:
		return ComplexityVeryComplex
	}
}

// GetAgentAllocation maps complexity to a bounded agent count and a per-agent
// tool-call budget. The agent count never exceeds the available agents or
// max(1, requirement count).
func (s *Strategy) GetAgentAllocation(task *core.Task, availableAgents int) Allocation {
	assessment := s.AssessComplexity(task)

	var alloc Allocation
	switch assessment.Complexity {
	case ComplexitySimple:
		alloc = Allocation{AgentCount: 1, ToolCallBudget: 5}
	case ComplexityModerate:
		alloc = Allocation{AgentCount: 4, ToolCallBudget: 10}
	case ComplexityComplex:
		alloc = Allocation{AgentCount: 8, ToolCallBudget: 20}
	default:
		alloc = Allocation{AgentCount: 15, ToolCallBudget: 40}
	}

	requirementCap := len(task.Requirements)
	if requirementCap < 1 {
		requirementCap = 1
	}
	if alloc.AgentCount > requirementCap {
		alloc.AgentCount = requirementCap
	}
	if alloc.AgentCount > availableAgents {
		alloc.AgentCount = availableAgents
	}
	if alloc.AgentCount < 1 {
		alloc.AgentCount = 1
	}
	return alloc
}

// GetDecompositionStrategy recommends whether and how to split the task. The
// target subtask count scales with complexity but is anchored to the number
// of declared requirements when there are any.
func (s *Strategy) GetDecompositionStrategy(task *core.Task) DecompositionPlan {
	assessment := s.AssessComplexity(task)

	target := len(task.Requirements)
	switch assessment.Complexity {
	case ComplexitySimple:
		return DecompositionPlan{Decompose: false, Method: DecomposeNone, TargetSubtasks: 1}
	case ComplexityModerate:
		if target < 2 {
			target = 2
		}
		return DecompositionPlan{Decompose: true, Method: DecomposeByRequirement, TargetSubtasks: target}
	case ComplexityComplex:
		if target < 4 {
			target = 4
		}
		return DecompositionPlan{Decompose: true, Method: DecomposeHierarchical, TargetSubtasks: target}
	default:
		if target < 8 {
			target = 8
		}
		return DecompositionPlan{Decompose: true, Method: DecomposeDivideAndConquer, TargetSubtasks: target}
	}
}
