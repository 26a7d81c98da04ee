package agent

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"taskchat/model"
)

type ToolName string

const (
	ToolAddTask      ToolName = "add_task"
	ToolListTasks    ToolName = "list_tasks"
	ToolCompleteTask ToolName = "complete_task"
	ToolDeleteTask   ToolName = "delete_task"
	ToolUpdateTask   ToolName = "update_task"
)

const (
	maxTitleLength       = 500
	maxDescriptionLength = 1000
)

// ToolParams 校验之后的工具参数。指针字段为 nil 表示该可选参数未提供
type ToolParams struct {
	Title       string  // add_task 必填
	Description *string // add_task / update_task 可选
	Status      string  // list_tasks，缺省 all
	TaskID      *uint   // complete/delete/update 的 id 定位
	TitleMatch  string  // complete/delete/update 的标题定位
	NewTitle    *string // update_task 可选的新标题
}

// ValidateToolCall 对 completion 服务返回的工具调用做纯数据形状校验。
// 不碰任何存储，失败一律返回 SchemaError：模型臆造的调用到不了下一步
func ValidateToolCall(name string, rawArgs []byte) (ToolName, *ToolParams, error) {
	args := map[string]interface{}{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", nil, &SchemaError{Tool: name, Reason: "arguments are not a JSON object"}
		}
	}

	tool := ToolName(name)
	switch tool {
	case ToolAddTask:
		p, err := validateAddTask(args)
		return tool, p, err
	case ToolListTasks:
		p, err := validateListTasks(args)
		return tool, p, err
	case ToolCompleteTask, ToolDeleteTask:
		p, err := validateTaskRef(string(tool), args)
		return tool, p, err
	case ToolUpdateTask:
		p, err := validateUpdateTask(args)
		return tool, p, err
	default:
		return "", nil, &SchemaError{Tool: name, Reason: "unknown tool"}
	}
}

func validateAddTask(args map[string]interface{}) (*ToolParams, error) {
	title, err := requireString(string(ToolAddTask), args, "title", maxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := optionalString(string(ToolAddTask), args, "description", maxDescriptionLength)
	if err != nil {
		return nil, err
	}
	return &ToolParams{Title: title, Description: description}, nil
}

func validateListTasks(args map[string]interface{}) (*ToolParams, error) {
	status := model.StatusAll
	if raw, ok := args["status"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, &SchemaError{Tool: string(ToolListTasks), Reason: "status must be a string"}
		}
		switch s {
		case model.StatusAll, model.StatusPending, model.StatusCompleted:
			status = s
		default:
			return nil, &SchemaError{Tool: string(ToolListTasks), Reason: "status must be all, pending or completed"}
		}
	}
	return &ToolParams{Status: status}, nil
}

// complete_task / delete_task：task_id 和 title_match 至少要有一个
func validateTaskRef(tool string, args map[string]interface{}) (*ToolParams, error) {
	p := &ToolParams{}

	taskID, err := optionalTaskID(tool, args)
	if err != nil {
		return nil, err
	}
	p.TaskID = taskID

	match, err := optionalString(tool, args, "title_match", maxTitleLength)
	if err != nil {
		return nil, err
	}
	if match != nil {
		p.TitleMatch = *match
	}

	if p.TaskID == nil && p.TitleMatch == "" {
		return nil, &SchemaError{Tool: tool, Reason: "either task_id or title_match is required"}
	}
	return p, nil
}

func validateUpdateTask(args map[string]interface{}) (*ToolParams, error) {
	p, err := validateTaskRef(string(ToolUpdateTask), args)
	if err != nil {
		return nil, err
	}

	newTitle, err := optionalString(string(ToolUpdateTask), args, "title", maxTitleLength)
	if err != nil {
		return nil, err
	}
	p.NewTitle = newTitle

	description, err := optionalString(string(ToolUpdateTask), args, "description", maxDescriptionLength)
	if err != nil {
		return nil, err
	}
	p.Description = description
	return p, nil
}

func requireString(tool string, args map[string]interface{}, key string, maxLen int) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", &SchemaError{Tool: tool, Reason: key + " is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &SchemaError{Tool: tool, Reason: key + " must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &SchemaError{Tool: tool, Reason: key + " cannot be empty"}
	}
	// 和消息长度一样按字符数算，不是字节数
	if utf8.RuneCountInString(s) > maxLen {
		return "", &SchemaError{Tool: tool, Reason: key + " is too long"}
	}
	return s, nil
}

func optionalString(tool string, args map[string]interface{}, key string, maxLen int) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &SchemaError{Tool: tool, Reason: key + " must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &SchemaError{Tool: tool, Reason: key + " cannot be empty"}
	}
	if utf8.RuneCountInString(s) > maxLen {
		return nil, &SchemaError{Tool: tool, Reason: key + " is too long"}
	}
	return &s, nil
}

// JSON 数字统一是 float64，task_id 必须是正整数
func optionalTaskID(tool string, args map[string]interface{}) (*uint, error) {
	raw, ok := args["task_id"]
	if !ok || raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return nil, &SchemaError{Tool: tool, Reason: "task_id must be an integer"}
	}
	if f <= 0 || f > math.MaxUint32 {
		return nil, &SchemaError{Tool: tool, Reason: "task_id must be a positive integer"}
	}
	id := uint(f)
	return &id, nil
}
