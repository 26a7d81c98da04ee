package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

// ChatTurn 发给 completion 服务的一轮对话
type ChatTurn struct {
	Role    string
	Content string
}

// ToolCall completion 服务要求执行的一次工具调用，参数是未校验的原始 JSON
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// Completion 一次 completion 调用的结果：要么是最终文本，要么带工具调用
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolExchange 已执行完的工具调用与它的结果，回喂给服务生成最终回复
type ToolExchange struct {
	Call   ToolCall
	Result *ToolResult
}

// Request 一次 completion 请求
type Request struct {
	History  []ChatTurn
	Exchange *ToolExchange
}

// Provider completion 服务的抽象，方便在测试里替换
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

const systemPrompt = "You are a friendly task assistant. You help the user manage " +
	"their personal todo list through conversation. Use the provided tools to add, " +
	"list, complete, delete or update tasks. Only act on what the user explicitly " +
	"asks for, and answer in plain language."

// OpenAIProvider 基于 platform.LLMClient 的 Provider 实现。
// 瞬时失败的重试在客户端内部（见 platform.InitLLMClient），
// 这里只负责组装消息和硬超时
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

func NewOpenAIProvider(client *openai.Client, model string, temperature float64, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		client:      client,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var system any = systemPrompt
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.ChatCompletionMessageParam{
			Role:    openai.F(openai.ChatCompletionMessageParamRoleSystem),
			Content: openai.F(system),
		},
	}
	for _, turn := range req.History {
		var content any = turn.Content
		messages = append(messages, openai.ChatCompletionMessageParam{
			Role:    openai.F(openai.ChatCompletionMessageParamRole(turn.Role)),
			Content: openai.F(content),
		})
	}
	if req.Exchange != nil {
		messages = append(messages, assistantToolCallMessage(req.Exchange.Call))
		messages = append(messages, toolResultMessage(req.Exchange))
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(p.model),
		Temperature: openai.F(p.temperature),
		Tools:       openai.F(ToolDefinitions()),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Err: fmt.Errorf("empty completion response")}
	}

	message := resp.Choices[0].Message
	completion := &Completion{Text: message.Content}
	for _, tc := range message.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	return completion, nil
}

func assistantToolCallMessage(call ToolCall) openai.ChatCompletionMessageParam {
	var content any = ""
	var toolCalls any = []map[string]interface{}{
		{
			"id":   call.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      call.Name,
				"arguments": string(call.Arguments),
			},
		},
	}
	return openai.ChatCompletionMessageParam{
		Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
		Content:   openai.F(content),
		ToolCalls: openai.F(toolCalls),
	}
}

func toolResultMessage(exchange *ToolExchange) openai.ChatCompletionMessageParam {
	payload, err := json.Marshal(exchange.Result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"success":%t,"message":%q}`,
			exchange.Result.Success, exchange.Result.UserMessage))
	}
	var content any = string(payload)
	return openai.ChatCompletionMessageParam{
		Role:       openai.F(openai.ChatCompletionMessageParamRoleTool),
		Content:    openai.F(content),
		ToolCallID: openai.F(exchange.Call.ID),
	}
}
