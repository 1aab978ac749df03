// Package agent contains the worker agent flavors and the orchestrator that
// coordinates them. The package focuses on three concerns:
//
//  1. A shared worker core (identity, busy/idle state, stats bookkeeping)
//  2. Concrete worker flavors (research, code, test, data analysis, general)
//  3. The orchestrator's task pipeline: analyze, decompose, delegate,
//     execute, synthesize
//
// Design principles:
//   - No hidden global state; registries are explicit values wired by callers
//   - Workers are polymorphic over core.Agent only, never a class hierarchy
//   - Subtask failures are data (Result.Success=false), never propagated
//     errors, so one failing branch cannot abort its siblings
//
// Execution model: the orchestrator dispatches delegated subtasks
// concurrently, one goroutine per assigned worker, and synthesizes only after
// every dispatched subtask has completed. There is no cancellation token for
// an in-flight task; callers that lose interest must let it run out.
package agent
