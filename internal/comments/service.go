// Package comments implements threaded task comments: tree assembly, ownership and
// authorship checks, and the live feed of new comments.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/observability"
	"github.com/UkralStul/taskboard-comments/internal/storage"
)

// Service authorizes and performs comment operations.
//
// Task-scoped calls (list, add, subscribe) require the caller to own the task's
// project. Comment-scoped calls (update, delete) require the caller to be the
// comment's author; owning the project is not enough.
type Service struct {
	store    storage.Storage
	observer *Observer
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics records every operation on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service. observer may be nil when no live feed is served.
func NewService(store storage.Storage, observer *Observer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		observer: observer,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorizeTask resolves the task's owner and compares it with userID. Absence and
// foreign ownership produce the same error.
func (s *Service) authorizeTask(ctx context.Context, taskID, userID string) error {
	owner, err := s.store.ResolveTaskOwner(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		return fmt.Errorf("resolve task owner: %w", err)
	}
	if owner != userID {
		s.logger.Debug("task access denied", "task_id", taskID, "user_id", userID)
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFoundOrForbidden)
	}
	return nil
}

// ListComments returns the task's comments as reply threads.
func (s *Service) ListComments(ctx context.Context, taskID, userID string) (tree []*domain.Comment, err error) {
	defer func() { s.metrics.ObserveOp("list", err) }()

	if err := s.authorizeTask(ctx, taskID, userID); err != nil {
		return nil, err
	}

	flat, err := s.store.GetCommentsByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}

	tree = BuildTree(flat)
	s.metrics.ObserveTree(len(Flatten(tree)))
	return tree, nil
}

// AddComment stores a new comment by userID and returns its id. The parent
// reference is stored as given; a bad one leaves the comment out of the tree.
func (s *Service) AddComment(ctx context.Context, taskID, userID string, in AddCommentInput) (id string, err error) {
	defer func() { s.metrics.ObserveOp("add", err) }()

	in.ParentCommentID = blankToNil(in.ParentCommentID)
	in.FileAttachmentURL = blankToNil(in.FileAttachmentURL)
	if err := check(in); err != nil {
		return "", err
	}

	if err := s.authorizeTask(ctx, taskID, userID); err != nil {
		return "", err
	}

	created, err := s.store.CreateComment(ctx, &domain.Comment{
		TaskID:            taskID,
		UserID:            userID,
		Content:           in.Content,
		ParentCommentID:   in.ParentCommentID,
		FileAttachmentURL: in.FileAttachmentURL,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("create comment: %w", err)
	}

	if s.observer != nil {
		s.observer.Publish(created)
	}
	s.logger.Info("comment added", "comment_id", created.ID, "task_id", taskID, "user_id", userID)
	return created.ID, nil
}

// UpdateComment replaces content and attachment of a comment written by userID.
func (s *Service) UpdateComment(ctx context.Context, commentID, userID string, in UpdateCommentInput) (err error) {
	defer func() { s.metrics.ObserveOp("update", err) }()

	in.FileAttachmentURL = blankToNil(in.FileAttachmentURL)
	if err := check(in); err != nil {
		return err
	}

	n, err := s.store.UpdateComment(ctx, commentID, userID, storage.CommentUpdate{
		Content:           in.Content,
		FileAttachmentURL: in.FileAttachmentURL,
	})
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFoundOrForbidden)
	}
	return nil
}

// DeleteComment removes a comment written by userID. Its replies stay stored.
func (s *Service) DeleteComment(ctx context.Context, commentID, userID string) (err error) {
	defer func() { s.metrics.ObserveOp("delete", err) }()

	n, err := s.store.DeleteComment(ctx, commentID, userID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFoundOrForbidden)
	}
	s.logger.Info("comment deleted", "comment_id", commentID, "user_id", userID)
	return nil
}

// Subscribe streams comments added to the task until ctx is done.
func (s *Service) Subscribe(ctx context.Context, taskID, userID string) (ch <-chan *domain.Comment, err error) {
	defer func() { s.metrics.ObserveOp("subscribe", err) }()

	if s.observer == nil {
		return nil, errors.New("live feed disabled")
	}
	if err := s.authorizeTask(ctx, taskID, userID); err != nil {
		return nil, err
	}
	return s.observer.Subscribe(ctx, taskID), nil
}
