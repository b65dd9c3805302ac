// Package sqlite implements storage.Storage on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Store keeps timestamps as unix nanoseconds so ORDER BY is exact.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func New(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite wants a single writer; for ":memory:" it also keeps every query on
	// the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			closeQuietly(db)
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing db", "error", err)
	}
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", user.Username).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, storage.ErrConflict
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)",
		user.ID, user.Username, nanos(user.CreatedAt),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, created_at FROM users WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.User
		var created int64
		if err := rows.Scan(&u.ID, &u.Username, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = fromNanos(created)
		result[u.ID] = &u
	}
	return result, rows.Err()
}

// === Project Methods ===

func (s *Store) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	project.ID = uuid.NewString()
	project.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (id, user_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)",
		project.ID, project.UserID, project.Name, project.Description, nanos(project.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func scanProjects(rows *sql.Rows) ([]*domain.Project, error) {
	defer rows.Close()
	projects := make([]*domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		var created int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromNanos(created)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProjectsByUserID(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, description, created_at FROM projects WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		userID)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

func (s *Store) GetProjectByIDAndUserID(ctx context.Context, id, userID string) (*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, description, created_at FROM projects WHERE id = ? AND user_id = ?",
		id, userID)
	if err != nil {
		return nil, err
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, storage.ErrNotFound
	}
	return projects[0], nil
}

func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, description = ? WHERE id = ?",
		project.Name, project.Description, project.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteProject deletes children explicitly so databases created before the
// foreign keys existed cascade the same way.
func (s *Store) DeleteProject(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE project_id = ?)", id); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE project_id = ?", id); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// === Task Methods ===

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", task.ProjectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	task.ID = uuid.NewString()
	task.CreatedAt = time.Now().UTC()
	var deadline sql.NullInt64
	if task.Deadline != nil {
		deadline = sql.NullInt64{Int64: nanos(*task.Deadline), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, priority, status, deadline, file_attachment_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Priority, task.Status,
		deadline, nullString(task.FileAttachmentURL), nanos(task.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) GetTasksByProjectID(ctx context.Context, projectID string) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, priority, status, deadline, file_attachment_url, created_at
		FROM tasks WHERE project_id = ? ORDER BY created_at DESC, rowid DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		var t domain.Task
		var deadline sql.NullInt64
		var url sql.NullString
		var created int64
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &t.Status,
			&deadline, &url, &created); err != nil {
			return nil, err
		}
		if deadline.Valid {
			d := fromNanos(deadline.Int64)
			t.Deadline = &d
		}
		t.FileAttachmentURL = stringPtr(url)
		t.CreatedAt = fromNanos(created)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) (int64, error) {
	var deadline sql.NullInt64
	if task.Deadline != nil {
		deadline = sql.NullInt64{Int64: nanos(*task.Deadline), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, status = ?, deadline = ?, file_attachment_url = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Priority, task.Status,
		deadline, nullString(task.FileAttachmentURL), task.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteTask(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE task_id = ?", id); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *Store) ResolveTaskOwner(ctx context.Context, taskID string) (string, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, "SELECT project_id FROM tasks WHERE id = ?", taskID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var userID string
	err = s.db.QueryRowContext(ctx, "SELECT user_id FROM projects WHERE id = ?", projectID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	comment.ID = uuid.NewString()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, task_id, user_id, content, parent_comment_id, file_attachment_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.TaskID, comment.UserID, comment.Content,
		nullString(comment.ParentCommentID), nullString(comment.FileAttachmentURL), nanos(comment.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, userID string, upd storage.CommentUpdate) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE comments SET content = ?, file_attachment_url = ? WHERE id = ? AND user_id = ?",
		upd.Content, nullString(upd.FileAttachmentURL), id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteComment(ctx context.Context, id, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetCommentsByTaskID(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, content, parent_comment_id, file_attachment_url, created_at
		FROM comments WHERE task_id = ? ORDER BY created_at ASC, rowid ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		var parent, url sql.NullString
		var created int64
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &parent, &url, &created); err != nil {
			return nil, err
		}
		c.ParentCommentID = stringPtr(parent)
		c.FileAttachmentURL = stringPtr(url)
		c.CreatedAt = fromNanos(created)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
