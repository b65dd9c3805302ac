package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/google/uuid"
)

// Store implements storage.Storage in memory.
type Store struct {
	mu             sync.RWMutex
	users          map[string]*domain.User
	usernames      map[string]string // username -> user id
	projects       map[string]*domain.Project
	tasks          map[string]*domain.Task
	comments       map[string]*domain.Comment
	commentsByTask map[string][]string // task id -> comment ids in insertion order

	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:          make(map[string]*domain.User),
		usernames:      make(map[string]string),
		projects:       make(map[string]*domain.Project),
		tasks:          make(map[string]*domain.Task),
		comments:       make(map[string]*domain.Comment),
		commentsByTask: make(map[string][]string),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[user.Username]; taken {
		return nil, storage.ErrConflict
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.now()

	stored := *user
	s.users[user.ID] = &stored
	s.usernames[user.Username] = user.ID
	return user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			result[id] = &cp
		}
	}
	return result, nil
}

// === Project Methods ===

func (s *Store) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project.ID = uuid.NewString()
	project.CreatedAt = s.now()

	stored := *project
	s.projects[project.ID] = &stored
	return project, nil
}

func (s *Store) GetProjectsByUserID(ctx context.Context, userID string) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*domain.Project, 0)
	for _, p := range s.projects {
		if p.UserID == userID {
			cp := *p
			projects = append(projects, &cp)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *Store) GetProjectByIDAndUserID(ctx context.Context, id, userID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok || p.UserID != userID {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[project.ID]
	if !ok {
		return 0, nil
	}
	p.Name = project.Name
	p.Description = project.Description
	return 1, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return 0, nil
	}
	for taskID, t := range s.tasks {
		if t.ProjectID == id {
			s.deleteTaskLocked(taskID)
		}
	}
	delete(s.projects, id)
	return 1, nil
}

// === Task Methods ===

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[task.ProjectID]; !ok {
		return nil, storage.ErrNotFound
	}
	task.ID = uuid.NewString()
	task.CreatedAt = s.now()

	stored := *task
	s.tasks[task.ID] = &stored
	return task, nil
}

func (s *Store) GetTasksByProjectID(ctx context.Context, projectID string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[task.ID]
	if !ok {
		return 0, nil
	}
	t.Title = task.Title
	t.Description = task.Description
	t.Priority = task.Priority
	t.Status = task.Status
	t.Deadline = task.Deadline
	t.FileAttachmentURL = task.FileAttachmentURL
	return 1, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return 0, nil
	}
	s.deleteTaskLocked(id)
	return 1, nil
}

// deleteTaskLocked drops a task and its comments. s.mu must be held.
func (s *Store) deleteTaskLocked(id string) {
	for _, commentID := range s.commentsByTask[id] {
		delete(s.comments, commentID)
	}
	delete(s.commentsByTask, id)
	delete(s.tasks, id)
}

func (s *Store) ResolveTaskOwner(ctx context.Context, taskID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return "", storage.ErrNotFound
	}
	project, ok := s.projects[task.ProjectID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return project.UserID, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment.ID = uuid.NewString()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}

	stored := *comment
	stored.Replies = nil
	s.comments[comment.ID] = &stored
	s.commentsByTask[comment.TaskID] = append(s.commentsByTask[comment.TaskID], comment.ID)
	return comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, userID string, upd storage.CommentUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return 0, nil
	}
	c.Content = upd.Content
	c.FileAttachmentURL = upd.FileAttachmentURL
	return 1, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return 0, nil
	}
	delete(s.comments, id)

	ids := s.commentsByTask[c.TaskID]
	for i, cid := range ids {
		if cid == id {
			s.commentsByTask[c.TaskID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return 1, nil
}

func (s *Store) GetCommentsByTaskID(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.commentsByTask[taskID]
	comments := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			cp := *c
			comments = append(comments, &cp)
		}
	}
	// Insertion order breaks created_at ties.
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *Store) Close() error { return nil }
