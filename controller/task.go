package controller

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskchat/model"
	"taskchat/platform"

	"github.com/gin-gonic/gin"
)

// TaskController 仪表盘的任务 REST 接口。
// 和聊天工具走同一套 owner 维度的 TaskStore，隔离口径一致
type TaskController struct{}

func taskStore() *model.TaskStore {
	return model.NewTaskStore(platform.DB)
}

func validPriority(p string) bool {
	switch p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return true
	}
	return false
}

func (t TaskController) List(c *gin.Context) {
	ownerID := uint(c.GetInt64("UserId"))

	status := c.DefaultQuery("status", model.StatusAll)
	switch status {
	case model.StatusAll, model.StatusPending, model.StatusCompleted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	tasks, err := taskStore().ListByOwner(ownerID, status)
	if err != nil {
		logger.Warnf("[%s] Failed to list tasks for user %d: %s", c.GetString("requestId"), ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (t TaskController) Create(c *gin.Context) {
	ownerID := uint(c.GetInt64("UserId"))

	var input struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Priority    string `json:"priority"`
		DueDate     string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
		return
	}

	task := &model.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    model.PriorityMedium,
	}
	if input.Priority != "" {
		if !validPriority(input.Priority) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		task.Priority = input.Priority
	}
	if input.DueDate != "" {
		due, err := time.Parse(time.RFC3339, input.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due_date"})
			return
		}
		task.DueDate = &due
	}

	if err := taskStore().Create(task); err != nil {
		logger.Warnf("[%s] Failed to create task for user %d: %s", c.GetString("requestId"), ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	logger.Infof("[%s] Task %d created for user %d", c.GetString("requestId"), task.ID, ownerID)
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// ownedTask 解析 :id 并确认归属，失败时直接写响应
func ownedTask(c *gin.Context) *model.Task {
	ownerID := uint(c.GetInt64("UserId"))

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task id"})
		return nil
	}

	task, err := taskStore().GetByIDAndOwner(uint(id), ownerID)
	if err != nil {
		logger.Warnf("[%s] Failed to get task %d for user %d: %s", c.GetString("requestId"), id, ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task"})
		return nil
	}
	if task == nil {
		// 不存在和不属于该用户给同一个回应
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return nil
	}
	return task
}

func (t TaskController) Update(c *gin.Context) {
	task := ownedTask(c)
	if task == nil {
		return
	}

	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Category    *string `json:"category"`
		Priority    *string `json:"priority"`
		DueDate     *string `json:"due_date"`
		Completed   *bool   `json:"completed"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	fields := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
			return
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Category != nil {
		fields["category"] = *input.Category
	}
	if input.Priority != nil {
		if !validPriority(*input.Priority) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		fields["priority"] = *input.Priority
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			fields["due_date"] = nil
		} else {
			due, err := time.Parse(time.RFC3339, *input.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due_date"})
				return
			}
			fields["due_date"] = due
		}
	}
	if input.Completed != nil {
		fields["completed"] = *input.Completed
	}

	if len(fields) > 0 {
		if err := taskStore().UpdateFields(task, fields); err != nil {
			logger.Warnf("[%s] Failed to update task %d: %s", c.GetString("requestId"), task.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
			return
		}
	}

	updated, err := taskStore().GetByIDAndOwner(task.ID, task.OwnerID)
	if err != nil || updated == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": updated})
}

func (t TaskController) Delete(c *gin.Context) {
	task := ownedTask(c)
	if task == nil {
		return
	}

	if err := taskStore().Delete(task); err != nil {
		logger.Warnf("[%s] Failed to delete task %d: %s", c.GetString("requestId"), task.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	logger.Infof("[%s] Task %d deleted for user %d", c.GetString("requestId"), task.ID, task.OwnerID)
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func (t TaskController) Toggle(c *gin.Context) {
	task := ownedTask(c)
	if task == nil {
		return
	}

	if err := taskStore().UpdateFields(task, map[string]interface{}{"completed": !task.Completed}); err != nil {
		logger.Warnf("[%s] Failed to toggle task %d: %s", c.GetString("requestId"), task.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle task"})
		return
	}

	task.Completed = !task.Completed
	c.JSON(http.StatusOK, gin.H{"task": task})
}
