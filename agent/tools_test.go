package agent

import (
	"testing"

	"taskchat/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRegistry_AddTask(t *testing.T) {
	store := newFakeTaskStore()
	registry := NewRegistry(store, testLogger())

	description := "2 liters"
	result, err := registry.Execute(1, ToolAddTask, &ToolParams{Title: "buy milk", Description: &description}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.UserMessage, "buy milk")

	tasks, _ := store.ListByOwner(1, model.StatusAll)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)
	assert.Equal(t, "2 liters", tasks[0].Description)
	assert.Equal(t, uint(1), tasks[0].OwnerID)
}

func TestRegistry_ListTasksEmptyIsSuccess(t *testing.T) {
	store := newFakeTaskStore()
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolListTasks, &ToolParams{Status: model.StatusPending}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Data["count"])
	assert.Contains(t, result.UserMessage, "no pending tasks")
}

func TestRegistry_ListTasksFiltersByStatus(t *testing.T) {
	store := newFakeTaskStore()
	store.seed(1, "Done thing", true)
	store.seed(1, "Open thing", false)
	store.seed(2, "Foreign thing", false)
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolListTasks, &ToolParams{Status: model.StatusPending}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["count"])
	assert.Contains(t, result.UserMessage, "Open thing")
	assert.NotContains(t, result.UserMessage, "Foreign thing")
}

func TestRegistry_CompleteTask(t *testing.T) {
	store := newFakeTaskStore()
	task := store.seed(1, "Buy milk", false)
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolCompleteTask, &ToolParams{}, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, store.tasks[task.ID].Completed)
}

func TestRegistry_CompleteTaskIdempotent(t *testing.T) {
	store := newFakeTaskStore()
	task := store.seed(1, "Buy milk", true)
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolCompleteTask, &ToolParams{}, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.UserMessage, "already")
	// 已完成的任务不再写存储
	assert.NotContains(t, store.calls, "UpdateFields")
}

func TestRegistry_DeleteTask(t *testing.T) {
	store := newFakeTaskStore()
	task := store.seed(1, "Buy milk", false)
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolDeleteTask, &ToolParams{}, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, store.tasks)
}

func TestRegistry_UpdateTaskSubset(t *testing.T) {
	store := newFakeTaskStore()
	task := store.seed(1, "Old title", false)
	store.tasks[task.ID].Description = "keep me"
	registry := NewRegistry(store, testLogger())

	newTitle := "New title"
	result, err := registry.Execute(1, ToolUpdateTask, &ToolParams{NewTitle: &newTitle}, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "New title", store.tasks[task.ID].Title)
	// 未提供的字段保持原样
	assert.Equal(t, "keep me", store.tasks[task.ID].Description)
}

func TestRegistry_UpdateTaskNothingToChange(t *testing.T) {
	store := newFakeTaskStore()
	task := store.seed(1, "Unchanged", false)
	registry := NewRegistry(store, testLogger())

	result, err := registry.Execute(1, ToolUpdateTask, &ToolParams{}, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotContains(t, store.calls, "UpdateFields")
}

func TestRegistry_StorageFailureIsPersistenceError(t *testing.T) {
	store := newFakeTaskStore()
	store.failOn = "Create"
	registry := NewRegistry(store, testLogger())

	_, err := registry.Execute(1, ToolAddTask, &ToolParams{Title: "x"}, nil)
	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
}
