package store

import (
	"testing"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SaveIsSnapshot(t *testing.T) {
	s := NewInMemoryStore()
	task := core.NewTask("snapshot me", []string{"code"}, 5, nil)
	require.NoError(t, s.SaveTask(task))

	// Mutations after save must not leak into the stored copy.
	task.Status = core.TaskStatusSynthesized
	task.ChildTaskIDs = append(task.ChildTaskIDs, "child-1")

	stored, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusReceived, stored.Status)
	assert.Empty(t, stored.ChildTaskIDs)
}

func TestInMemoryStore_QueryFiltersByStatus(t *testing.T) {
	s := NewInMemoryStore()

	done := core.NewTask("done", nil, 5, nil)
	done.Status = core.TaskStatusSynthesized
	pending := core.NewTask("pending", nil, 5, nil)

	require.NoError(t, s.SaveTask(done))
	require.NoError(t, s.SaveTask(pending))

	got, err := s.QueryTasks(core.TaskStatusSynthesized, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, done.ID, got[0].ID)

	all, err := s.QueryTasks("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, pending.ID, all[0].ID, "most recently saved first")
}

func TestInMemoryStore_QueryHonorsLimit(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTask(core.NewTask("t", nil, 5, nil)))
	}

	got, err := s.QueryTasks("", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestInMemoryStore_ResultsAppend(t *testing.T) {
	s := NewInMemoryStore()

	require.NoError(t, s.SaveResult(core.NewResult("task-1", "agent-1", "first")))
	require.NoError(t, s.SaveResult(core.NewResult("task-1", "agent-2", "second")))

	results := s.Results("task-1")
	require.Len(t, results, 2)
	assert.Equal(t, "agent-1", results[0].AgentID)
	assert.Equal(t, "agent-2", results[1].AgentID)

	assert.Empty(t, s.Results("unknown"))
}

func TestInMemoryStore_GetTaskUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.GetTask("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
