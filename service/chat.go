package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"taskchat/agent"
	"taskchat/model"
	"taskchat/platform"

	"gorm.io/gorm"
)

var logger = platform.Logger

// ChatService 负责一个聊天回合的落库与编排：加载历史、先存用户消息、
// 跑 orchestrator、存助手回复。进程内不缓存任何会话状态，
// 每个回合都从数据库重新读取
type ChatService struct{}

type ChatReply struct {
	ConversationID uint      `json:"conversation_id"`
	MessageID      uint      `json:"message_id"`
	Response       string    `json:"response"`
	Timestamp      time.Time `json:"timestamp"`
}

var (
	orchestrator *agent.Orchestrator
	historyLimit int
)

func historyLimitFromEnv() int {
	if v := os.Getenv("CHAT_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return model.DefaultHistoryLimit
}

// InitChat 在 platform.InitDB/InitLLMClient 之后调用
func InitChat() {
	store := model.NewTaskStore(platform.DB)
	provider := agent.NewOpenAIProvider(
		platform.LLMClient,
		platform.LLMModel(),
		platform.LLMTemperature(),
		platform.LLMTimeout(),
	)
	orchestrator = agent.NewOrchestrator(provider, store, platform.Logger, agent.MaxToolCallsFromEnv())
	historyLimit = historyLimitFromEnv()
}

// Chat 处理一条用户消息，返回助手回复。
// 整个回合在该用户的会话锁内执行：同一用户的并发消息串行，
// 消息顺序保持单调；不同用户互不影响
func (s *ChatService) Chat(ctx context.Context, requestID string, ownerID uint, text string) (*ChatReply, error) {
	var reply *ChatReply

	err := model.WithChatLock(ownerID, func(conn *gorm.DB) error {
		conversation, err := model.GetOrCreateActiveConversation(conn, ownerID)
		if err != nil {
			return err
		}

		// 先落用户消息：后面无论哪一步失败，用户的输入都不会丢
		if _, err := model.AppendMessage(conn, conversation.ID, ownerID, model.MessageRoleUser, text); err != nil {
			return err
		}

		messages, err := model.LoadHistory(conn, conversation.ID, historyLimit)
		if err != nil {
			return err
		}
		history := make([]agent.ChatTurn, 0, len(messages))
		for _, m := range messages {
			history = append(history, agent.ChatTurn{Role: m.Role, Content: m.Content})
		}

		response, err := orchestrator.Run(ctx, requestID, ownerID, history)
		if err != nil {
			// provider 彻底失败：细节已进日志，用户只看到通用道歉，
			// 回合照常落库结束
			logger.Errorf("[%s] Orchestrator failed for owner %d: %s", requestID, ownerID, err)
			response = agent.GenericFailureReply
		}

		assistantMessage, err := model.AppendMessage(conn, conversation.ID, ownerID, model.MessageRoleAssistant, response)
		if err != nil {
			return err
		}

		reply = &ChatReply{
			ConversationID: conversation.ID,
			MessageID:      assistantMessage.ID,
			Response:       response,
			Timestamp:      assistantMessage.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat turn failed: %w", err)
	}
	return reply, nil
}

// History 返回调用者活跃会话的消息列表，按 (created_at, id) 升序。
// 还没有会话时返回空列表
func (s *ChatService) History(ownerID uint, limit int) (uint, []model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = historyLimit
	}

	conversation, err := model.GetActiveConversation(platform.DB, ownerID)
	if err != nil {
		return 0, nil, err
	}
	if conversation == nil {
		return 0, []model.Message{}, nil
	}

	messages, err := model.LoadHistory(platform.DB, conversation.ID, limit)
	if err != nil {
		return 0, nil, err
	}
	return conversation.ID, messages, nil
}
