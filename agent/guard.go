package agent

import (
	"taskchat/model"
)

// ResolveTask 是所有引用既有任务的工具共用的所有权关卡。
// 按 id 定位时任务必须存在且属于 ownerID，否则一律 NotFoundError；
// 按标题定位时 0 个匹配返回 NotFoundError，多个匹配返回带候选的
// AmbiguousMatchError，让上层追问而不是瞎猜。
// add_task / list_tasks 不引用既有任务，直接放行
func ResolveTask(store TaskStore, ownerID uint, tool ToolName, p *ToolParams) (*model.Task, error) {
	if tool == ToolAddTask || tool == ToolListTasks {
		return nil, nil
	}

	if p.TaskID != nil {
		task, err := store.GetByIDAndOwner(*p.TaskID, ownerID)
		if err != nil {
			return nil, &PersistenceError{Op: "resolve task by id", Err: err}
		}
		if task == nil {
			return nil, &NotFoundError{}
		}
		return task, nil
	}

	matches, err := store.FindByTitle(ownerID, p.TitleMatch)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve task by title", Err: err}
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{}
	case 1:
		return &matches[0], nil
	default:
		candidates := make([]TaskCandidate, 0, len(matches))
		for _, t := range matches {
			candidates = append(candidates, TaskCandidate{ID: t.ID, Title: t.Title})
		}
		return nil, &AmbiguousMatchError{Match: p.TitleMatch, Candidates: candidates}
	}
}
