package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskIDRef(id uint) *ToolParams {
	return &ToolParams{TaskID: &id}
}

func TestResolveTask_PassThroughForNonReferencingTools(t *testing.T) {
	store := newFakeTaskStore()

	for _, tool := range []ToolName{ToolAddTask, ToolListTasks} {
		task, err := ResolveTask(store, 1, tool, &ToolParams{})
		require.NoError(t, err)
		assert.Nil(t, task)
	}
	assert.Empty(t, store.calls)
}

func TestResolveTask_ByID(t *testing.T) {
	store := newFakeTaskStore()
	mine := store.seed(1, "Buy milk", false)

	task, err := ResolveTask(store, 1, ToolCompleteTask, taskIDRef(mine.ID))
	require.NoError(t, err)
	assert.Equal(t, mine.ID, task.ID)
}

func TestResolveTask_MissingAndForeignAreIndistinguishable(t *testing.T) {
	store := newFakeTaskStore()
	foreign := store.seed(2, "Their task", false)

	_, missingErr := ResolveTask(store, 1, ToolDeleteTask, taskIDRef(9999))
	_, foreignErr := ResolveTask(store, 1, ToolDeleteTask, taskIDRef(foreign.ID))

	var notFound *NotFoundError
	require.ErrorAs(t, missingErr, &notFound)
	require.ErrorAs(t, foreignErr, &notFound)
	// 不存在和不属于自己必须是同一句话
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestResolveTask_ByTitle(t *testing.T) {
	store := newFakeTaskStore()
	store.seed(1, "Team meeting", false)

	task, err := ResolveTask(store, 1, ToolCompleteTask, &ToolParams{TitleMatch: "team"})
	require.NoError(t, err)
	assert.Equal(t, "Team meeting", task.Title)
}

func TestResolveTask_ByTitleZeroMatches(t *testing.T) {
	store := newFakeTaskStore()
	store.seed(2, "Team meeting", false) // 别人的任务不参与匹配

	_, err := ResolveTask(store, 1, ToolCompleteTask, &ToolParams{TitleMatch: "meeting"})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveTask_ByTitleAmbiguous(t *testing.T) {
	store := newFakeTaskStore()
	store.seed(1, "Team meeting", false)
	store.seed(1, "Client meeting", false)

	_, err := ResolveTask(store, 1, ToolDeleteTask, &ToolParams{TitleMatch: "meeting"})
	var ambiguous *AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.Candidates, 2)

	titles := []string{ambiguous.Candidates[0].Title, ambiguous.Candidates[1].Title}
	assert.Contains(t, titles, "Team meeting")
	assert.Contains(t, titles, "Client meeting")
}
