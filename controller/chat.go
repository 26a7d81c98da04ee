package controller

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"taskchat/model"
	"taskchat/service"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
)

type ChatController struct{}

var chatService = service.ChatService{}

// Chat 处理一条聊天消息。空消息在触碰任何状态之前就被拒绝
func (ch ChatController) Chat(c *gin.Context) {
	var reqData struct {
		Message string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&reqData); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if strings.TrimSpace(reqData.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}
	if utf8.RuneCountInString(reqData.Message) > model.MaxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message too long"})
		return
	}

	ownerID := uint(c.GetInt64("UserId"))
	logger.Infof("[%s] Handling chat message for user %d", c.GetString("requestId"), ownerID)

	reply, err := chatService.Chat(c.Request.Context(), c.GetString("requestId"), ownerID, reqData.Message)
	if err != nil {
		logger.Warnf("[%s] Chat turn failed for user %d: %s", c.GetString("requestId"), ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": reply.ConversationID,
		"message_id":      reply.MessageID,
		"response":        reply.Response,
		"timestamp":       reply.Timestamp,
	})
}

// History 返回调用者活跃会话的消息列表。
// format=html 时助手消息的 markdown 额外渲染成 HTML 给仪表盘用
func (ch ChatController) History(c *gin.Context) {
	ownerID := uint(c.GetInt64("UserId"))

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	renderHTML := c.Query("format") == "html"

	conversationID, messages, err := chatService.History(ownerID, limit)
	if err != nil {
		logger.Warnf("[%s] Failed to load history for user %d: %s", c.GetString("requestId"), ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	entries := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		entry := gin.H{
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		}
		if renderHTML && m.Role == model.MessageRoleAssistant {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(m.Content), &buf); err == nil {
				entry["content_html"] = buf.String()
			}
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        entries,
		"total_count":     len(entries),
	})
}
