package agent

import (
	"context"
	"errors"
	"testing"

	"taskchat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 按脚本依次返回预置的应答，并记录收到的请求
type fakeProvider struct {
	script   []func() (*Completion, error)
	requests []*Request
}

func (p *fakeProvider) Complete(ctx context.Context, req *Request) (*Completion, error) {
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errors.New("fakeProvider script exhausted")
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next()
}

func text(s string) func() (*Completion, error) {
	return func() (*Completion, error) { return &Completion{Text: s}, nil }
}

func toolCall(name, args string) func() (*Completion, error) {
	return func() (*Completion, error) {
		return &Completion{ToolCalls: []ToolCall{{ID: "call_1", Name: name, Arguments: []byte(args)}}}, nil
	}
}

func providerDown() func() (*Completion, error) {
	return func() (*Completion, error) {
		return nil, &ProviderError{Err: errors.New("timeout after retries")}
	}
}

func newTestOrchestrator(provider Provider, store TaskStore, maxToolCalls int) *Orchestrator {
	return NewOrchestrator(provider, store, testLogger(), maxToolCalls)
}

func history(userText string) []ChatTurn {
	return []ChatTurn{{Role: model.MessageRoleUser, Content: userText}}
}

func TestRun_PlainTextReply(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){text("Hello!")}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Empty(t, store.calls)
}

// 场景 A："Add a task to buy milk"
func TestRun_AddTaskScenario(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("add_task", `{"title":"buy milk"}`),
		text(`I've added "buy milk" to your list.`),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Add a task to buy milk"))
	require.NoError(t, err)
	assert.Contains(t, reply, "buy milk")

	tasks, _ := store.ListByOwner(1, model.StatusAll)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)
	assert.Equal(t, uint(1), tasks[0].OwnerID)

	// 第二次 completion 请求带上了工具结果
	require.Len(t, provider.requests, 2)
	require.NotNil(t, provider.requests[1].Exchange)
	assert.True(t, provider.requests[1].Exchange.Result.Success)
}

// 场景 B：没有待办时列表是空结果，不是错误
func TestRun_ListTasksEmptyScenario(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("list_tasks", `{"status":"pending"}`),
		text("You don't have any pending tasks right now."),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Show me my pending tasks"))
	require.NoError(t, err)
	assert.Contains(t, reply, "pending")
	require.NotNil(t, provider.requests[1].Exchange)
	assert.True(t, provider.requests[1].Exchange.Result.Success)
}

// 场景 C：引用别人的任务，返回和"不存在"相同的回复，且没有任何变更
func TestRun_ForeignTaskScenario(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("complete_task", `{"task_id":9999}`),
	}}
	store := newFakeTaskStore()
	store.tasks[9999] = &model.Task{ID: 9999, OwnerID: 2, Title: "Foreign"}

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Complete task 9999"))
	require.NoError(t, err)
	assert.Equal(t, notFoundReply, reply)
	assert.False(t, store.tasks[9999].Completed)
	assert.NotContains(t, store.calls, "UpdateFields")
}

// 场景 D：标题匹配到多个任务时列出候选并追问，不删除任何行
func TestRun_AmbiguousDeleteScenario(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("delete_task", `{"title_match":"meeting"}`),
	}}
	store := newFakeTaskStore()
	store.seed(1, "Team meeting", false)
	store.seed(1, "Client meeting", false)

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Delete the meeting task"))
	require.NoError(t, err)
	assert.Contains(t, reply, "Team meeting")
	assert.Contains(t, reply, "Client meeting")
	assert.Contains(t, reply, "Which one")
	assert.Len(t, store.tasks, 2)
	assert.NotContains(t, store.calls, "Delete")
}

// 场景 E：provider 重试耗尽，错误原样上抛，由调用方转成通用道歉
func TestRun_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){providerDown()}}
	store := newFakeTaskStore()

	_, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("hello"))
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Empty(t, store.calls)
}

// 工具已提交后 provider 再失败：用工具自己的结果文本回复，不瞒着用户
func TestRun_ProviderFailureAfterToolCommit(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("add_task", `{"title":"buy milk"}`),
		providerDown(),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Add a task to buy milk"))
	require.NoError(t, err)
	assert.Contains(t, reply, "buy milk")

	tasks, _ := store.ListByOwner(1, model.StatusAll)
	assert.Len(t, tasks, 1)
}

// 校验失败的调用不会触到存储
func TestRun_MalformedToolCallNeverReachesStore(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("add_task", `{"description":"no title"}`),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("gibberish"))
	require.NoError(t, err)
	assert.Contains(t, reply, "rephrase")
	assert.Empty(t, store.calls)
}

func TestRun_HallucinatedToolNeverReachesStore(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("send_email", `{"to":"someone"}`),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("email my boss"))
	require.NoError(t, err)
	assert.Contains(t, reply, "rephrase")
	assert.Empty(t, store.calls)
}

// 工具调用预算用尽后强制收尾
func TestRun_ToolCallBudget(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("add_task", `{"title":"first"}`),
		toolCall("add_task", `{"title":"second"}`),
	}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("add two tasks"))
	require.NoError(t, err)
	assert.Equal(t, rephraseReply, reply)

	// 只有第一个工具执行了
	tasks, _ := store.ListByOwner(1, model.StatusAll)
	require.Len(t, tasks, 1)
	assert.Equal(t, "first", tasks[0].Title)
}

// 存储失败时用户只看到通用道歉
func TestRun_PersistenceFailureIsGenericReply(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){
		toolCall("add_task", `{"title":"buy milk"}`),
	}}
	store := newFakeTaskStore()
	store.failOn = "Create"

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("Add a task"))
	require.NoError(t, err)
	assert.Equal(t, GenericFailureReply, reply)
	assert.NotContains(t, reply, "injected")
}

func TestRun_EmptyCompletionText(t *testing.T) {
	provider := &fakeProvider{script: []func() (*Completion, error){text("   ")}}
	store := newFakeTaskStore()

	reply, err := newTestOrchestrator(provider, store, 1).Run(context.Background(), "req", 1, history("hi"))
	require.NoError(t, err)
	assert.Equal(t, emptyCompletionReply, reply)
}
