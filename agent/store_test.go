package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"taskchat/model"
)

// fakeTaskStore 内存实现，记录每次调用供断言
type fakeTaskStore struct {
	tasks  map[uint]*model.Task
	nextID uint
	calls  []string
	failOn string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[uint]*model.Task{}, nextID: 1}
}

func (f *fakeTaskStore) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && call == f.failOn {
		return fmt.Errorf("injected %s failure", call)
	}
	return nil
}

func (f *fakeTaskStore) seed(ownerID uint, title string, completed bool) *model.Task {
	task := &model.Task{
		ID:        f.nextID,
		OwnerID:   ownerID,
		Title:     title,
		Completed: completed,
		CreatedAt: time.Now(),
	}
	f.nextID++
	f.tasks[task.ID] = task
	return task
}

func (f *fakeTaskStore) Create(task *model.Task) error {
	if err := f.record("Create"); err != nil {
		return err
	}
	task.ID = f.nextID
	f.nextID++
	stored := *task
	f.tasks[task.ID] = &stored
	return nil
}

func (f *fakeTaskStore) ListByOwner(ownerID uint, status string) ([]model.Task, error) {
	if err := f.record("ListByOwner"); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range f.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if status == model.StatusPending && t.Completed {
			continue
		}
		if status == model.StatusCompleted && !t.Completed {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) GetByIDAndOwner(id, ownerID uint) (*model.Task, error) {
	if err := f.record("GetByIDAndOwner"); err != nil {
		return nil, err
	}
	t, ok := f.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTaskStore) FindByTitle(ownerID uint, match string) ([]model.Task, error) {
	if err := f.record("FindByTitle"); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID && strings.Contains(strings.ToLower(t.Title), strings.ToLower(match)) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) UpdateFields(task *model.Task, fields map[string]interface{}) error {
	if err := f.record("UpdateFields"); err != nil {
		return err
	}
	stored, ok := f.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %d not found", task.ID)
	}
	if v, ok := fields["completed"]; ok {
		stored.Completed = v.(bool)
	}
	if v, ok := fields["title"]; ok {
		stored.Title = v.(string)
	}
	if v, ok := fields["description"]; ok {
		stored.Description = v.(string)
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskStore) Delete(task *model.Task) error {
	if err := f.record("Delete"); err != nil {
		return err
	}
	delete(f.tasks, task.ID)
	return nil
}
