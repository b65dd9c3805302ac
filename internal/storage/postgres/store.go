package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/google/uuid"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements storage.Storage on PostgreSQL through gorm.
type Store struct {
	db *gorm.DB
}

// New connects to PostgreSQL and migrates the schema. With debug set every SQL
// statement is logged.
func New(dsn string, debug bool) (*Store, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.Project{}, &domain.Task{}, &domain.Comment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Every id column is a uuid; anything else cannot match and would only make
// PostgreSQL reject the statement.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrConflict
	}
	return err
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	user.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	result := make(map[string]*domain.User, len(valid))
	if len(valid) == 0 {
		return result, nil
	}

	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", valid).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// === Project Methods ===

func (s *Store) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	project.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, translate(err)
	}
	return project, nil
}

func (s *Store) GetProjectsByUserID(ctx context.Context, userID string) ([]*domain.Project, error) {
	projects := make([]*domain.Project, 0)
	if !validID(userID) {
		return projects, nil
	}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

func (s *Store) GetProjectByIDAndUserID(ctx context.Context, id, userID string) (*domain.Project, error) {
	if !validID(id) || !validID(userID) {
		return nil, storage.ErrNotFound
	}
	var project domain.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) (int64, error) {
	if !validID(project.ID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ?", project.ID).
		Updates(map[string]any{
			"name":        project.Name,
			"description": project.Description,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteProject(ctx context.Context, id string) (int64, error) {
	if !validID(id) {
		return 0, nil
	}
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&domain.Task{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&domain.Task{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Project{})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// === Task Methods ===

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if !validID(task.ProjectID) {
		return nil, storage.ErrNotFound
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Project{}).Where("id = ?", task.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		task.ID = uuid.NewString()
		return tx.Create(task).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

func (s *Store) GetTasksByProjectID(ctx context.Context, projectID string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0)
	if !validID(projectID) {
		return tasks, nil
	}
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) (int64, error) {
	if !validID(task.ID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":               task.Title,
			"description":         task.Description,
			"priority":            task.Priority,
			"status":              task.Status,
			"deadline":            task.Deadline,
			"file_attachment_url": task.FileAttachmentURL,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteTask(ctx context.Context, id string) (int64, error) {
	if !validID(id) {
		return 0, nil
	}
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Task{})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (s *Store) ResolveTaskOwner(ctx context.Context, taskID string) (string, error) {
	if !validID(taskID) {
		return "", storage.ErrNotFound
	}
	var task domain.Task
	if err := s.db.WithContext(ctx).Select("project_id").First(&task, "id = ?", taskID).Error; err != nil {
		return "", translate(err)
	}
	var project domain.Project
	if err := s.db.WithContext(ctx).Select("user_id").First(&project, "id = ?", task.ProjectID).Error; err != nil {
		return "", translate(err)
	}
	return project.UserID, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	comment.ID = uuid.NewString()
	// GORM fills CreatedAt when it is zero.
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, translate(err)
	}
	return comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, userID string, upd storage.CommentUpdate) (int64, error) {
	if !validID(id) || !validID(userID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"content":             upd.Content,
			"file_attachment_url": upd.FileAttachmentURL,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteComment(ctx context.Context, id, userID string) (int64, error) {
	if !validID(id) || !validID(userID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Comment{})
	return res.RowsAffected, res.Error
}

func (s *Store) GetCommentsByTaskID(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	comments := make([]*domain.Comment, 0)
	if !validID(taskID) {
		return comments, nil
	}
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, seq ASC").
		Find(&comments).Error
	return comments, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
