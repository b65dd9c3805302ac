package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/taskboard-comments/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record already exists")
)

// CommentUpdate holds the author-mutable fields of a comment.
type CommentUpdate struct {
	Content           string
	FileAttachmentURL *string
}

// Storage is the persistence contract shared by every backend.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)

	CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error)
	GetProjectsByUserID(ctx context.Context, userID string) ([]*domain.Project, error)
	GetProjectByIDAndUserID(ctx context.Context, id, userID string) (*domain.Project, error)
	// UpdateProject overwrites name and description of project.ID.
	UpdateProject(ctx context.Context, project *domain.Project) (int64, error)
	// DeleteProject removes the project together with its tasks and their comments.
	DeleteProject(ctx context.Context, id string) (int64, error)

	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetTasksByProjectID(ctx context.Context, projectID string) ([]*domain.Task, error)
	// UpdateTask overwrites every mutable field of task.ID; nil pointers clear.
	UpdateTask(ctx context.Context, task *domain.Task) (int64, error)
	// DeleteTask removes the task and its comments.
	DeleteTask(ctx context.Context, id string) (int64, error)

	// ResolveTaskOwner walks task -> project and returns the owning user id.
	// A missing task and a task with a missing project both yield ErrNotFound.
	ResolveTaskOwner(ctx context.Context, taskID string) (string, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	// UpdateComment and DeleteComment touch the row only when both id and author match.
	// They report the number of affected rows.
	UpdateComment(ctx context.Context, id, userID string, upd CommentUpdate) (int64, error)
	DeleteComment(ctx context.Context, id, userID string) (int64, error)
	// GetCommentsByTaskID returns every comment of the task ordered by created_at.
	GetCommentsByTaskID(ctx context.Context, taskID string) ([]*domain.Comment, error)

	Close() error
}
