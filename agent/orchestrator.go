package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// 面向用户的兜底话术。内部错误细节只进日志，绝不出现在回复里
const (
	GenericFailureReply  = "Sorry, something went wrong while processing your message. Please try again."
	rephraseReply        = "That needs more steps than I can take for one message. Please split it up or rephrase."
	emptyCompletionReply = "Sorry, I didn't come up with a response. Could you rephrase that?"
	notFoundReply        = "I couldn't find that task. Ask me to show your tasks to see the list."
)

// DefaultMaxToolCalls 每个用户消息最多执行的工具调用数
const DefaultMaxToolCalls = 1

// MaxToolCallsFromEnv 读取 CHAT_MAX_TOOL_CALLS，非法或缺省时用默认值
func MaxToolCallsFromEnv() int {
	if v := os.Getenv("CHAT_MAX_TOOL_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxToolCalls
}

// Orchestrator 每次请求的控制循环：不持有任何跨请求状态，
// 所有上下文由调用方从会话存储重新加载后传入
type Orchestrator struct {
	provider     Provider
	store        TaskStore
	registry     *Registry
	maxToolCalls int
	logger       *logrus.Logger
}

func NewOrchestrator(provider Provider, store TaskStore, logger *logrus.Logger, maxToolCalls int) *Orchestrator {
	if maxToolCalls <= 0 {
		maxToolCalls = DefaultMaxToolCalls
	}
	return &Orchestrator{
		provider:     provider,
		store:        store,
		registry:     NewRegistry(store, logger),
		maxToolCalls: maxToolCalls,
		logger:       logger,
	}
}

// Run 处理一个回合：用会话历史调 completion 服务，必要时经
// 校验 → 所有权检查 → 执行 跑一次工具调用，再把结果回喂生成最终回复。
// 可恢复的失败（SchemaError/NotFoundError/AmbiguousMatchError）在这里
// 转成给用户的澄清文本；返回 error 仅当没有任何可以回复的内容
// （provider 彻底失败且没有已提交的工具结果）
func (o *Orchestrator) Run(ctx context.Context, requestID string, ownerID uint, history []ChatTurn) (string, error) {
	executed := 0
	var exchange *ToolExchange

	for {
		completion, err := o.provider.Complete(ctx, &Request{History: history, Exchange: exchange})
		if err != nil {
			// 工具已经提交过：变更不能瞒着用户，用工具自己的结果文本回复
			if exchange != nil && exchange.Result.Success {
				o.logger.Warnf("[%s] Final completion failed after tool commit, falling back to tool result: %s", requestID, err)
				return exchange.Result.UserMessage, nil
			}
			o.logger.Errorf("[%s] Completion provider failed: %s", requestID, err)
			return "", err
		}

		if len(completion.ToolCalls) == 0 {
			if strings.TrimSpace(completion.Text) == "" {
				return emptyCompletionReply, nil
			}
			return completion.Text, nil
		}

		if executed >= o.maxToolCalls {
			o.logger.Warnf("[%s] Tool call budget exhausted (%d), forcing final reply", requestID, o.maxToolCalls)
			return rephraseReply, nil
		}

		call := completion.ToolCalls[0]
		reply, ex, ok := o.runToolCall(requestID, ownerID, call)
		if !ok {
			// 工具层失败已转成澄清/道歉文本，回合到此结束，不再重试工具
			return reply, nil
		}
		executed++
		exchange = ex
	}
}

// runToolCall 跑一次 校验 → 所有权 → 执行。失败时返回 (面向用户的文本, nil, false)，
// 成功时返回 (_, 执行结果, true) 让循环把结果回喂给 completion 服务
func (o *Orchestrator) runToolCall(requestID string, ownerID uint, call ToolCall) (string, *ToolExchange, bool) {
	tool, params, err := ValidateToolCall(call.Name, call.Arguments)
	if err != nil {
		o.logger.Warnf("[%s] Rejected tool call %q for owner %d: %s (args: %s)", requestID, call.Name, ownerID, err, call.Arguments)
		return o.replyForError(err), nil, false
	}

	task, err := ResolveTask(o.store, ownerID, tool, params)
	if err != nil {
		o.logger.Warnf("[%s] Authorization failed for tool %q, owner %d: %s", requestID, tool, ownerID, err)
		return o.replyForError(err), nil, false
	}

	o.logger.Infof("[%s] Executing tool %q for owner %d", requestID, tool, ownerID)
	result, err := o.registry.Execute(ownerID, tool, params, task)
	if err != nil {
		o.logger.Errorf("[%s] Tool %q failed for owner %d: %s (args: %s)", requestID, tool, ownerID, err, call.Arguments)
		return o.replyForError(err), nil, false
	}

	return "", &ToolExchange{Call: call, Result: result}, true
}

// replyForError 把错误分类映射成对话式回复。
// 任务不存在和属于别人的任务共用同一句话
func (o *Orchestrator) replyForError(err error) string {
	var schemaErr *SchemaError
	var notFound *NotFoundError
	var ambiguous *AmbiguousMatchError

	switch {
	case errors.As(err, &schemaErr):
		return "Sorry, I couldn't work out the details of that request. Could you rephrase it?"
	case errors.As(err, &notFound):
		return notFoundReply
	case errors.As(err, &ambiguous):
		var lines []string
		for _, c := range ambiguous.Candidates {
			lines = append(lines, fmt.Sprintf("- %s (ID %d)", c.Title, c.ID))
		}
		return fmt.Sprintf("More than one task matches %q:\n%s\nWhich one do you mean? You can use the task ID.",
			ambiguous.Match, strings.Join(lines, "\n"))
	default:
		return GenericFailureReply
	}
}
