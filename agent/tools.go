package agent

import (
	"fmt"
	"strings"

	"taskchat/model"

	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

// TaskStore 是工具操作任务表的唯一入口。每个方法都要求 owner 维度的过滤，
// 每次变更在实现侧以一个事务提交
type TaskStore interface {
	Create(task *model.Task) error
	ListByOwner(ownerID uint, status string) ([]model.Task, error)
	GetByIDAndOwner(id, ownerID uint) (*model.Task, error)
	FindByTitle(ownerID uint, match string) ([]model.Task, error)
	UpdateFields(task *model.Task, fields map[string]interface{}) error
	Delete(task *model.Task) error
}

// ToolResult 工具执行结果。UserMessage 回喂给 completion 服务生成最终回复，
// 结果本身不落库
type ToolResult struct {
	Success     bool                   `json:"success"`
	Data        map[string]interface{} `json:"data"`
	UserMessage string                 `json:"message"`
}

// Registry 五个无状态工具处理器的闭合注册表
type Registry struct {
	store  TaskStore
	logger *logrus.Logger
}

func NewRegistry(store TaskStore, logger *logrus.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Execute 运行一个已通过校验和所有权检查的工具调用。
// task 是 ResolveTask 解析出的目标任务，add_task/list_tasks 传 nil
func (r *Registry) Execute(ownerID uint, tool ToolName, p *ToolParams, task *model.Task) (*ToolResult, error) {
	switch tool {
	case ToolAddTask:
		return r.addTask(ownerID, p)
	case ToolListTasks:
		return r.listTasks(ownerID, p)
	case ToolCompleteTask:
		return r.completeTask(task)
	case ToolDeleteTask:
		return r.deleteTask(task)
	case ToolUpdateTask:
		return r.updateTask(task, p)
	default:
		return nil, &SchemaError{Tool: string(tool), Reason: "unknown tool"}
	}
}

func (r *Registry) addTask(ownerID uint, p *ToolParams) (*ToolResult, error) {
	task := &model.Task{
		OwnerID: ownerID,
		Title:   p.Title,
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if err := r.store.Create(task); err != nil {
		return nil, &PersistenceError{Op: "add_task", Err: err}
	}
	r.logger.Infof("Task created: ID=%d, Owner=%d, Title=%q", task.ID, ownerID, task.Title)
	return &ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"task_id": task.ID,
			"title":   task.Title,
		},
		UserMessage: fmt.Sprintf("Task %q created (ID %d).", task.Title, task.ID),
	}, nil
}

func (r *Registry) listTasks(ownerID uint, p *ToolParams) (*ToolResult, error) {
	tasks, err := r.store.ListByOwner(ownerID, p.Status)
	if err != nil {
		return nil, &PersistenceError{Op: "list_tasks", Err: err}
	}

	// 空列表是正常结果，不是错误
	if len(tasks) == 0 {
		msg := "You have no tasks."
		if p.Status != model.StatusAll {
			msg = fmt.Sprintf("You have no %s tasks.", p.Status)
		}
		return &ToolResult{
			Success:     true,
			Data:        map[string]interface{}{"tasks": []interface{}{}, "count": 0},
			UserMessage: msg,
		}, nil
	}

	items := make([]map[string]interface{}, 0, len(tasks))
	var lines []string
	for _, t := range tasks {
		items = append(items, map[string]interface{}{
			"task_id":   t.ID,
			"title":     t.Title,
			"completed": t.Completed,
		})
		state := "pending"
		if t.Completed {
			state = "completed"
		}
		lines = append(lines, fmt.Sprintf("- %s (ID %d, %s)", t.Title, t.ID, state))
	}
	return &ToolResult{
		Success:     true,
		Data:        map[string]interface{}{"tasks": items, "count": len(tasks)},
		UserMessage: fmt.Sprintf("Found %d task(s):\n%s", len(tasks), strings.Join(lines, "\n")),
	}, nil
}

func (r *Registry) completeTask(task *model.Task) (*ToolResult, error) {
	// 已完成的任务再次 complete 是成功的空操作
	if task.Completed {
		return &ToolResult{
			Success:     true,
			Data:        map[string]interface{}{"task_id": task.ID, "title": task.Title, "completed": true},
			UserMessage: fmt.Sprintf("Task %q is already marked as complete.", task.Title),
		}, nil
	}

	if err := r.store.UpdateFields(task, map[string]interface{}{"completed": true}); err != nil {
		return nil, &PersistenceError{Op: "complete_task", Err: err}
	}
	r.logger.Infof("Task completed: ID=%d, Owner=%d", task.ID, task.OwnerID)
	return &ToolResult{
		Success:     true,
		Data:        map[string]interface{}{"task_id": task.ID, "title": task.Title, "completed": true},
		UserMessage: fmt.Sprintf("Task %q marked as complete.", task.Title),
	}, nil
}

func (r *Registry) deleteTask(task *model.Task) (*ToolResult, error) {
	if err := r.store.Delete(task); err != nil {
		return nil, &PersistenceError{Op: "delete_task", Err: err}
	}
	r.logger.Infof("Task deleted: ID=%d, Owner=%d", task.ID, task.OwnerID)
	return &ToolResult{
		Success:     true,
		Data:        map[string]interface{}{"task_id": task.ID, "title": task.Title},
		UserMessage: fmt.Sprintf("Task %q deleted.", task.Title),
	}, nil
}

func (r *Registry) updateTask(task *model.Task, p *ToolParams) (*ToolResult, error) {
	fields := map[string]interface{}{}
	if p.NewTitle != nil {
		fields["title"] = *p.NewTitle
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}

	if len(fields) == 0 {
		return &ToolResult{
			Success:     true,
			Data:        map[string]interface{}{"task_id": task.ID, "title": task.Title},
			UserMessage: fmt.Sprintf("Task %q left unchanged (nothing to update).", task.Title),
		}, nil
	}

	if err := r.store.UpdateFields(task, fields); err != nil {
		return nil, &PersistenceError{Op: "update_task", Err: err}
	}

	title := task.Title
	if p.NewTitle != nil {
		title = *p.NewTitle
	}
	r.logger.Infof("Task updated: ID=%d, Owner=%d, Fields=%d", task.ID, task.OwnerID, len(fields))
	return &ToolResult{
		Success:     true,
		Data:        map[string]interface{}{"task_id": task.ID, "title": title},
		UserMessage: fmt.Sprintf("Task %q updated.", title),
	}, nil
}

// ToolDefinitions 暴露给 completion 服务的五个工具的 JSON schema，
// 与校验器遵循同一份契约
func ToolDefinitions() []openai.ChatCompletionToolParam {
	taskRef := map[string]interface{}{
		"task_id": map[string]interface{}{
			"type":        "integer",
			"description": "ID of the task",
		},
		"title_match": map[string]interface{}{
			"type":        "string",
			"description": "Title or partial title of the task (case-insensitive substring match)",
		},
	}

	return []openai.ChatCompletionToolParam{
		toolDef("add_task",
			"Create a new task for the user. Extract the task title (and optional description) from the message.",
			map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Task title extracted from the user's message",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Optional task description or additional details",
				},
			},
			[]string{"title"}),
		toolDef("list_tasks",
			"List the user's tasks, optionally filtered by status.",
			map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"all", "pending", "completed"},
					"description": "Which tasks to list (default all)",
				},
			},
			nil),
		toolDef("complete_task",
			"Mark a task as completed. Identify it by task_id or title_match.",
			taskRef, nil),
		toolDef("delete_task",
			"Delete a task permanently. Identify it by task_id or title_match.",
			taskRef, nil),
		toolDef("update_task",
			"Change a task's title and/or description. Identify it by task_id or title_match.",
			map[string]interface{}{
				"task_id":     taskRef["task_id"],
				"title_match": taskRef["title_match"],
				"title": map[string]interface{}{
					"type":        "string",
					"description": "New title for the task",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "New description for the task",
				},
			},
			nil),
	}
}

func toolDef(name, description string, properties map[string]interface{}, required []string) openai.ChatCompletionToolParam {
	params := openai.FunctionParameters{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return openai.ChatCompletionToolParam{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.F(name),
			Description: openai.F(description),
			Parameters:  openai.F(params),
		}),
	}
}
