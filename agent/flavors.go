package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
)

// ResearchAgent gathers background information for a task. With a generator
// configured it produces model-written findings; without one it falls back to
// a heuristic summary at reduced quality.
type ResearchAgent struct{ worker }

// NewResearchAgent creates a research worker.
func NewResearchAgent(optFns ...func(o *WorkerOptions)) *ResearchAgent {
	return &ResearchAgent{worker: newWorker("research",
		"You are a research agent. Gather relevant facts and summarize them concisely.",
		[]core.AgentCapability{
			{Name: "research", Description: "Information gathering and summarization", Proficiency: 0.9},
			{Name: "document", Description: "Writing up findings", Proficiency: 0.6},
		}, optFns)}
}

// ProcessTask implements core.Agent.
func (a *ResearchAgent) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	return a.run(ctx, task, a.process)
}

func (a *ResearchAgent) process(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error) {
	if text, ok := a.generate(ctx, calls, taskPrompt(task)); ok {
		return map[string]any{"findings": text}, 0.9, nil
	}

	return map[string]any{
		"findings": fmt.Sprintf("background notes for: %s", task.Description),
	}, 0.6, nil
}

// CodeAgent produces implementation artifacts.
type CodeAgent struct{ worker }

// NewCodeAgent creates a coding worker.
func NewCodeAgent(optFns ...func(o *WorkerOptions)) *CodeAgent {
	return &CodeAgent{worker: newWorker("code",
		"You are a coding agent. Produce working, minimal code for the task.",
		[]core.AgentCapability{
			{Name: "code", Description: "Writing and refactoring code", Proficiency: 0.9},
			{Name: "test", Description: "Writing tests alongside code", Proficiency: 0.5},
		}, optFns)}
}

// ProcessTask implements core.Agent.
func (a *CodeAgent) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	return a.run(ctx, task, a.process)
}

func (a *CodeAgent) process(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error) {
	if text, ok := a.generate(ctx, calls, taskPrompt(task)); ok {
		return map[string]any{"code": text}, 0.9, nil
	}

	return map[string]any{
		"code": fmt.Sprintf("// TODO implement: %s", task.Description),
	}, 0.5, nil
}

// TestAgent verifies work produced by other agents.
type TestAgent struct{ worker }

// NewTestAgent creates a testing worker.
func NewTestAgent(optFns ...func(o *WorkerOptions)) *TestAgent {
	return &TestAgent{worker: newWorker("test",
		"You are a testing agent. Derive test cases and report pass/fail verdicts.",
		[]core.AgentCapability{
			{Name: "test", Description: "Deriving and running test cases", Proficiency: 0.9},
			{Name: "code", Description: "Reading implementation code", Proficiency: 0.5},
		}, optFns)}
}

// ProcessTask implements core.Agent.
func (a *TestAgent) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	return a.run(ctx, task, a.process)
}

func (a *TestAgent) process(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error) {
	if text, ok := a.generate(ctx, calls, taskPrompt(task)); ok {
		return map[string]any{"report": text}, 0.9, nil
	}

	return map[string]any{
		"report": fmt.Sprintf("test plan for: %s", task.Description),
		"cases":  len(task.Requirements),
	}, 0.6, nil
}

// DataAnalysisAgent computes summary statistics over numeric values found in
// the task context, delegating interpretation to the generator when present.
type DataAnalysisAgent struct{ worker }

// NewDataAnalysisAgent creates a data analysis worker.
func NewDataAnalysisAgent(optFns ...func(o *WorkerOptions)) *DataAnalysisAgent {
	return &DataAnalysisAgent{worker: newWorker("data-analysis",
		"You are a data analysis agent. Interpret the supplied figures.",
		[]core.AgentCapability{
			{Name: "analyze", Description: "Statistical and numeric analysis", Proficiency: 0.9},
			{Name: "research", Description: "Sourcing supporting data", Proficiency: 0.5},
		}, optFns)}
}

// ProcessTask implements core.Agent.
func (a *DataAnalysisAgent) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	return a.run(ctx, task, a.process)
}

func (a *DataAnalysisAgent) process(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error) {
	stats := summarizeNumbers(task.Context)

	if text, ok := a.generate(ctx, calls, taskPrompt(task)); ok {
		return map[string]any{"analysis": text, "stats": stats}, 0.9, nil
	}

	return map[string]any{"stats": stats}, 0.6, nil
}

// summarizeNumbers extracts numeric context values and returns count, sum and
// mean. Non-numeric values are ignored.
func summarizeNumbers(context map[string]any) map[string]float64 {
	var (
		count int
		sum   float64
	)

	for _, v := range context {
		switch n := v.(type) {
		case int:
			sum += float64(n)
			count++
		case int64:
			sum += float64(n)
			count++
		case float64:
			sum += n
			count++
		}
	}

	out := map[string]float64{"count": float64(count), "sum": sum}
	if count > 0 {
		out["mean"] = sum / float64(count)
	}

	return out
}

// GeneralAgent is the jack-of-all-trades fallback worker. Its capabilities
// cover the whole vocabulary at low proficiency so it picks up subtasks no
// specialist matches.
type GeneralAgent struct{ worker }

// NewGeneralAgent creates a general-purpose worker.
func NewGeneralAgent(optFns ...func(o *WorkerOptions)) *GeneralAgent {
	return &GeneralAgent{worker: newWorker("general",
		"You are a general-purpose agent. Handle the task as best you can.",
		[]core.AgentCapability{
			{Name: "research", Description: "Basic information gathering", Proficiency: 0.4},
			{Name: "code", Description: "Basic implementation work", Proficiency: 0.4},
			{Name: "test", Description: "Basic verification", Proficiency: 0.4},
			{Name: "analyze", Description: "Basic analysis", Proficiency: 0.4},
			{Name: "document", Description: "Basic writeups", Proficiency: 0.4},
		}, optFns)}
}

// ProcessTask implements core.Agent.
func (a *GeneralAgent) ProcessTask(ctx context.Context, task *core.Task) *core.Result {
	return a.run(ctx, task, a.process)
}

func (a *GeneralAgent) process(ctx context.Context, task *core.Task, calls *core.CallLimiter) (any, float64, error) {
	if text, ok := a.generate(ctx, calls, taskPrompt(task)); ok {
		return map[string]any{"output": text}, 0.8, nil
	}

	return map[string]any{
		"output": fmt.Sprintf("handled: %s", task.Description),
	}, 0.5, nil
}
