package collections

import (
	"context"
	"strings"

	"schoolmaps/internal/pkg/wire"
)

// TasksQuery lists the caller's tasks, newest first.
func TasksQuery(uid string) wire.Query {
	return wire.Query{Collection: TasksCollection(uid), OrderBy: "createdAt", Desc: true}
}

func (s *Service) AddTask(ctx context.Context, o Owner, text string) (string, error) {
	if err := s.allowed(o); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", s.invalid("error_empty_task")
	}

	data, err := fields(Task{Text: text, OwnerID: o.UID, CreatedAt: stamp(s.now())})
	if err != nil {
		return "", s.failed("encode task", err)
	}
	id, err := s.store.Create(ctx, TasksCollection(o.UID), data)
	if err != nil {
		return "", s.failed("add task", err)
	}
	s.notify("task_added_success", nil)
	return id, nil
}

// ToggleTask flips the completion of the task whose current state is completed.
func (s *Service) ToggleTask(ctx context.Context, o Owner, id string, completed bool) error {
	if err := s.allowed(o); err != nil {
		return err
	}
	err := s.store.Update(ctx, TasksCollection(o.UID), id, map[string]any{
		"completed": !completed,
		"updatedAt": stamp(s.now()),
	})
	if err != nil {
		return s.failed("update task", err)
	}
	s.notify("task_updated_success", nil)
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, o Owner, id string) error {
	if err := s.allowed(o); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, TasksCollection(o.UID), id); err != nil {
		return s.failed("delete task", err)
	}
	s.notify("task_deleted_success", nil)
	return nil
}
