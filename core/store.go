package core

// TaskStore is the persistence seam between the core and an external storage
// subsystem. The orchestrator writes through it fire-and-forget: a save
// failure is logged and never retried or surfaced to the task's caller.
type TaskStore interface {
	// SaveTask persists a task snapshot. Called on submission and again on
	// every status transition, overwriting by task id.
	SaveTask(task *Task) error

	// SaveResult persists the immutable outcome of one processed task.
	SaveResult(result *Result) error

	// QueryTasks returns up to limit tasks matching the status filter. An
	// empty status matches all tasks. Order is most recent first.
	QueryTasks(status TaskStatus, limit int) ([]*Task, error)
}
