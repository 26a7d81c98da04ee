package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taskchat/platform"

	"gorm.io/gorm"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// MaxMessageLength 单条消息内容的上限
const MaxMessageLength = 10000

// DefaultHistoryLimit 发给 completion 服务的历史窗口大小
const DefaultHistoryLimit = 50

var (
	ErrInvalidRole    = errors.New("invalid message role")
	ErrEmptyContent   = errors.New("message content cannot be empty")
	ErrContentTooLong = errors.New("message content too long")
)

// Conversation 表示一个用户的会话，消息的持久化载体。
// 会话从不删除，每个用户只使用最近更新的那个作为"活跃"会话
type Conversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint      `gorm:"index;not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Message 会话中的一条消息，写入后不可修改
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"index:idx_conversation_id_created_at;not null" json:"conversation_id"`
	OwnerID        uint      `gorm:"index;not null" json:"owner_id"`
	Role           string    `gorm:"type:varchar(20);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_conversation_id_created_at" json:"created_at"`
}

// GetOrCreateActiveConversation 返回该用户最近更新的会话，没有则新建。
// 并发下的唯一性靠 WithChatLock 的会话锁保证
func GetOrCreateActiveConversation(db *gorm.DB, ownerID uint) (*Conversation, error) {
	var conversation Conversation
	err := db.Where("owner_id = ?", ownerID).
		Order("updated_at DESC, id DESC").
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	conversation = Conversation{OwnerID: ownerID}
	if err := db.Create(&conversation).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conversation, nil
}

// GetActiveConversation 只读版：没有会话时返回 (nil, nil)，不创建
func GetActiveConversation(db *gorm.DB, ownerID uint) (*Conversation, error) {
	var conversation Conversation
	err := db.Where("owner_id = ?", ownerID).
		Order("updated_at DESC, id DESC").
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return &conversation, nil
}

// AppendMessage 追加一条消息。插入和会话 updated_at 的更新在同一个事务里提交
func AppendMessage(db *gorm.DB, conversationID, ownerID uint, role, content string) (*Message, error) {
	if role != MessageRoleUser && role != MessageRoleAssistant {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrContentTooLong
	}

	message := &Message{
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           role,
		Content:        content,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return message, nil
}

// LoadHistory 返回会话最近 limit 条消息，按 (created_at, id) 升序。
// 只读数据库，不依赖任何进程内状态，重启后同样的调用得到同样的序列
func LoadHistory(db *gorm.DB, conversationID uint, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var messages []Message
	err := db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	// 查询按时间倒序取最近的窗口，这里翻转回升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// WithChatLock 对一个用户的聊天回合做串行化：同一用户的并发请求
// 依次执行，不同用户完全并行。锁的生命周期覆盖整个
// 读-写-读-写 序列，靠 MySQL 的命名锁实现，跨事务持有
func WithChatLock(ownerID uint, fn func(conn *gorm.DB) error) error {
	return platform.DB.Connection(func(conn *gorm.DB) error {
		lockName := fmt.Sprintf("taskchat:chat:%d", ownerID)

		var acquired int
		if err := conn.Raw("SELECT GET_LOCK(?, ?)", lockName, 10).Scan(&acquired).Error; err != nil {
			return fmt.Errorf("failed to acquire chat lock: %w", err)
		}
		if acquired != 1 {
			return fmt.Errorf("chat lock busy for owner %d", ownerID)
		}
		defer func() {
			var released int
			conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released)
		}()

		return fn(conn)
	})
}
