package scaling

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentswarm/core"
)

func TestAssessComplexity_Buckets(t *testing.T) {
	s := NewStrategy()

	tests := []struct {
		name string
		task *core.Task
		want Complexity
	}{
		{
			name: "bare task is simple",
			task: core.NewTask("ping", nil, 1, nil),
			want: ComplexitySimple,
		},
		{
			name: "one requirement is simple",
			task: core.NewTask("ping", []string{"research"}, 1, nil),
			want: ComplexitySimple,
		},
		{
			name: "two requirements are moderate",
			task: core.NewTask("do both", []string{"research", "code"}, 1, nil),
			want: ComplexityModerate,
		},
		{
			name: "many requirements with priority bonus are complex",
			task: core.NewTask("big", []string{"research", "code", "test", "document"}, 9, nil),
			want: ComplexityComplex,
		},
		{
			name: "long description and context climb to very complex",
			task: core.NewTask(strings.Repeat("x", 600),
				[]string{"research", "code", "test", "analyze", "document"}, 9,
				map[string]any{"a": 1, "b": 2, "c": 3, "d": 4}),
			want: ComplexityVeryComplex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.AssessComplexity(tt.task)
			assert.Equal(t, tt.want, got.Complexity, "score was %v", got.Score)
		})
	}
}

func TestAssessComplexity_ScoreWeights(t *testing.T) {
	s := NewStrategy()

	task := core.NewTask(strings.Repeat("d", 150), []string{"a", "b"}, 8, map[string]any{"k": 1})
	task.ChildTaskIDs = []string{"c1", "c2"}

	// 2*2.0 + 1.5 + 2*1.5 + 1.0 + 1*0.5 = 10.0
	got := s.AssessComplexity(task)
	assert.InDelta(t, 10.0, got.Score, 1e-9)
	assert.Equal(t, ComplexityComplex, got.Complexity)
}

func TestGetAgentAllocation_Caps(t *testing.T) {
	s := NewStrategy()

	moderate := core.NewTask("do both", []string{"research", "code"}, 1, nil)

	// Moderate wants 4 agents but is capped by max(1, requirements)=2.
	alloc := s.GetAgentAllocation(moderate, 10)
	assert.Equal(t, 2, alloc.AgentCount)
	assert.Equal(t, 10, alloc.ToolCallBudget)

	// Availability caps further.
	alloc = s.GetAgentAllocation(moderate, 1)
	assert.Equal(t, 1, alloc.AgentCount)

	// No requirements caps at one agent.
	simple := core.NewTask("ping", nil, 1, nil)
	alloc = s.GetAgentAllocation(simple, 10)
	assert.Equal(t, 1, alloc.AgentCount)
	assert.Equal(t, 5, alloc.ToolCallBudget)
}

func TestGetDecompositionStrategy(t *testing.T) {
	s := NewStrategy()

	simple := core.NewTask("ping", nil, 1, nil)
	plan := s.GetDecompositionStrategy(simple)
	assert.False(t, plan.Decompose)
	assert.Equal(t, DecomposeNone, plan.Method)

	moderate := core.NewTask("do both", []string{"research", "code"}, 1, nil)
	plan = s.GetDecompositionStrategy(moderate)
	assert.True(t, plan.Decompose)
	assert.Equal(t, DecomposeByRequirement, plan.Method)
	assert.Equal(t, 2, plan.TargetSubtasks)

	complexTask := core.NewTask("big", []string{"research", "code", "test", "document"}, 9, nil)
	plan = s.GetDecompositionStrategy(complexTask)
	assert.True(t, plan.Decompose)
	assert.Equal(t, DecomposeHierarchical, plan.Method)
	assert.Equal(t, 4, plan.TargetSubtasks)

	huge := core.NewTask(strings.Repeat("x", 600),
		[]string{"r1", "r2", "r3", "r4", "r5", "r6"}, 9,
		map[string]any{"a": 1, "b": 2, "c": 3, "d": 4})
	plan = s.GetDecompositionStrategy(huge)
	assert.Equal(t, DecomposeDivideAndConquer, plan.Method)
	assert.Equal(t, 8, plan.TargetSubtasks)
}
