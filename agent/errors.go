package agent

import "fmt"

// SchemaError 工具调用的参数形状不合法（未知工具、缺参、类型不符）。
// 这类调用在校验阶段就被拒绝，不会触到任何存储
type SchemaError struct {
	Tool   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid tool call %q: %s", e.Tool, e.Reason)
}

// NotFoundError 任务不存在，或者属于其他用户。
// 两种情况对调用方必须不可区分，避免跨用户探测任务是否存在
type NotFoundError struct{}

func (e *NotFoundError) Error() string {
	return "task not found or access denied"
}

// TaskCandidate 标题匹配到多个任务时的候选项
type TaskCandidate struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// AmbiguousMatchError 标题子串匹配到多个任务，带候选列表让用户二选一
type AmbiguousMatchError struct {
	Match      string
	Candidates []TaskCandidate
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("multiple tasks match %q (%d candidates)", e.Match, len(e.Candidates))
}

// ProviderError completion 服务超时/限流/故障，重试耗尽之后才会出现
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError 存储事务失败
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
