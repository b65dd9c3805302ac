package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
)

const seedUsername = "demo"

type seedResult struct {
	Owner   *domain.User
	Visitor *domain.User
	Task    *domain.Task
}

// fillWithMockData creates two users, a project with one task and a short
// comment thread on it. It is a no-op when the demo user already exists.
func fillWithMockData(ctx context.Context, s storage.Storage) (*seedResult, error) {
	owner, err := s.CreateUser(ctx, &domain.User{Username: seedUsername})
	if errors.Is(err, storage.ErrConflict) {
		slog.Info("demo data already present, skipping seed")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("seed: create owner: %w", err)
	}
	visitor, err := s.CreateUser(ctx, &domain.User{Username: seedUsername + "-visitor"})
	if err != nil {
		return nil, fmt.Errorf("seed: create visitor: %w", err)
	}

	project, err := s.CreateProject(ctx, &domain.Project{
		UserID:      owner.ID,
		Name:        "Demo project",
		Description: "Sample data for trying the comments API.",
	})
	if err != nil {
		return nil, fmt.Errorf("seed: create project: %w", err)
	}

	task, err := s.CreateTask(ctx, &domain.Task{
		ProjectID:   project.ID,
		Title:       "Write the release notes",
		Description: "Collect the changes since the last release.",
		Priority:    domain.PriorityHigh,
		Status:      domain.StatusInProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("seed: create task: %w", err)
	}

	first, err := s.CreateComment(ctx, &domain.Comment{
		TaskID:  task.ID,
		UserID:  owner.ID,
		Content: "Draft is in the shared folder.",
	})
	if err != nil {
		return nil, fmt.Errorf("seed: create comment: %w", err)
	}
	if _, err := s.CreateComment(ctx, &domain.Comment{
		TaskID:          task.ID,
		UserID:          owner.ID,
		ParentCommentID: &first.ID,
		Content:         "Added the migration notes as well.",
	}); err != nil {
		return nil, fmt.Errorf("seed: create reply: %w", err)
	}
	if _, err := s.CreateComment(ctx, &domain.Comment{
		TaskID:  task.ID,
		UserID:  owner.ID,
		Content: "Needs a review before Friday.",
	}); err != nil {
		return nil, fmt.Errorf("seed: create comment: %w", err)
	}

	slog.Info("demo data created",
		"owner_id", owner.ID,
		"visitor_id", visitor.ID,
		"task_id", task.ID,
	)
	return &seedResult{Owner: owner, Visitor: visitor, Task: task}, nil
}
