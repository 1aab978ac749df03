package store

import (
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// InMemoryStore is a volatile TaskStore keeping tasks and results in process
// local maps. It is safe for concurrent access and best suited for tests or
// ephemeral runs. Saved tasks are cloned so later orchestrator mutations do
// not leak into stored snapshots.
type InMemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*core.Task
	order   []string
	results map[string][]*core.Result
}

// NewInMemoryStore constructs an empty in-memory task store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:   make(map[string]*core.Task),
		results: make(map[string][]*core.Result),
	}
}

// SaveTask stores a clone of the task, overwriting by id.
func (s *InMemoryStore) SaveTask(task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		s.order = append(s.order, task.ID)
	}
	s.tasks[task.ID] = task.Clone()

	return nil
}

// SaveResult appends the result to the task's result history.
func (s *InMemoryStore) SaveResult(result *core.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[result.TaskID] = append(s.results[result.TaskID], result)

	return nil
}

// QueryTasks returns up to limit task clones matching the status filter,
// most recently saved first. An empty status matches all tasks; a limit of
// zero or less means no limit.
func (s *InMemoryStore) QueryTasks(status core.TaskStatus, limit int) ([]*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Task

	for i := len(s.order) - 1; i >= 0; i-- {
		task := s.tasks[s.order[i]]
		if status != "" && task.Status != status {
			continue
		}

		out = append(out, task.Clone())

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

// GetTask returns a clone of the stored task or core.ErrNotFound.
func (s *InMemoryStore) GetTask(id string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	return task.Clone(), nil
}

// Results returns the stored results for a task in save order.
func (s *InMemoryStore) Results(taskID string) []*core.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*core.Result(nil), s.results[taskID]...)
}
