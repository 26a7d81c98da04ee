package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task 表示属于单个用户的待办任务
type Task struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     uint       `gorm:"index;not null" json:"owner_id"`
	Title       string     `gorm:"type:varchar(500);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	Category    string     `gorm:"type:varchar(50)" json:"category"`
	Priority    string     `gorm:"type:varchar(20);default:medium" json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TaskStore 封装所有任务表的读写，每个方法都以 owner_id 过滤，
// 不存在能跨用户读写任务的方法
type TaskStore struct {
	DB *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{DB: db}
}

func (s *TaskStore) Create(task *Task) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
}

func (s *TaskStore) ListByOwner(ownerID uint, status string) ([]Task, error) {
	var tasks []Task
	query := s.DB.Where("owner_id = ?", ownerID)
	switch status {
	case StatusPending:
		query = query.Where("completed = ?", false)
	case StatusCompleted:
		query = query.Where("completed = ?", true)
	}
	if err := query.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetByIDAndOwner 按 id 查询任务，任务不存在或不属于该用户都返回 (nil, nil)
func (s *TaskStore) GetByIDAndOwner(id, ownerID uint) (*Task, error) {
	var task Task
	err := s.DB.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// FindByTitle 在该用户的任务里做大小写不敏感的标题子串匹配
func (s *TaskStore) FindByTitle(ownerID uint, match string) ([]Task, error) {
	var tasks []Task
	err := s.DB.Where("owner_id = ? AND LOWER(title) LIKE ?", ownerID, "%"+escapeLike(match)+"%").
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks by title: %w", err)
	}
	return tasks, nil
}

// UpdateFields 更新指定字段并刷新 updated_at，整体在一个事务里提交
func (s *TaskStore) UpdateFields(task *Task, fields map[string]interface{}) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(task).Where("owner_id = ?", task.OwnerID).Updates(fields)
		if result.Error != nil {
			return fmt.Errorf("failed to update task: %w", result.Error)
		}
		return nil
	})
}

func (s *TaskStore) Delete(task *Task) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("owner_id = ?", task.OwnerID).Delete(&Task{}, task.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to delete task: %w", result.Error)
		}
		return nil
	})
}

// OwnersWithPendingTasks 返回还有未完成任务的用户，供每日摘要邮件使用
func (s *TaskStore) OwnersWithPendingTasks() ([]User, error) {
	var users []User
	err := s.DB.
		Where("id IN (?)", s.DB.Model(&Task{}).Select("owner_id").Where("completed = ?", false)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list owners with pending tasks: %w", err)
	}
	return users, nil
}

// LOWER(title) LIKE 的参数里 % 和 _ 是通配符，按字面匹配
func escapeLike(s string) string {
	s = strings.ToLower(s)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
