// Package storagetest holds the behaviour every storage.Storage backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Storage

// Fixture is one user owning one project with one task.
type Fixture struct {
	User    *domain.User
	Project *domain.Project
	Task    *domain.Task
}

// NewFixture seeds a user -> project -> task chain.
func NewFixture(t *testing.T, s storage.Storage, username string) Fixture {
	t.Helper()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, &domain.User{Username: username})
	require.NoError(t, err)
	project, err := s.CreateProject(ctx, &domain.Project{UserID: user.ID, Name: username + "-project"})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, &domain.Task{
		ProjectID: project.ID,
		Title:     username + "-task",
		Priority:  domain.PriorityMedium,
		Status:    domain.StatusToDo,
	})
	require.NoError(t, err)
	return Fixture{User: user, Project: project, Task: task}
}

// Run executes the contract against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ResolveTaskOwner", func(t *testing.T) { testResolveTaskOwner(t, newStore(t)) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, newStore(t)) })
	t.Run("ProjectsAndTasks", func(t *testing.T) { testProjectsAndTasks(t, newStore(t)) })
	t.Run("CommentsOrdered", func(t *testing.T) { testCommentsOrdered(t, newStore(t)) })
	t.Run("UpdateCommentAuthorOnly", func(t *testing.T) { testUpdateCommentAuthorOnly(t, newStore(t)) })
	t.Run("DeleteCommentAuthorOnly", func(t *testing.T) { testDeleteCommentAuthorOnly(t, newStore(t)) })
	t.Run("UsersByIDs", func(t *testing.T) { testUsersByIDs(t, newStore(t)) })
	t.Run("CommentsSameTimestamp", func(t *testing.T) { testCommentsSameTimestamp(t, newStore(t)) })
	t.Run("UpdateProject", func(t *testing.T) { testUpdateProject(t, newStore(t)) })
	t.Run("DeleteProjectCascades", func(t *testing.T) { testDeleteProjectCascades(t, newStore(t)) })
	t.Run("UpdateTask", func(t *testing.T) { testUpdateTask(t, newStore(t)) })
	t.Run("DeleteTaskCascades", func(t *testing.T) { testDeleteTaskCascades(t, newStore(t)) })
}

const unknownID = "7e57c0de-0000-4000-8000-000000000000"

func testResolveTaskOwner(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "owner")

	owner, err := s.ResolveTaskOwner(ctx, fx.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.User.ID, owner)

	_, err = s.ResolveTaskOwner(ctx, "6f1c0c3e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateUsername(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	_, err := s.CreateUser(ctx, &domain.User{Username: "alice"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, &domain.User{Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func testProjectsAndTasks(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "pm")
	other := NewFixture(t, s, "other")

	projects, err := s.GetProjectsByUserID(ctx, fx.User.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, fx.Project.ID, projects[0].ID)

	_, err = s.GetProjectByIDAndUserID(ctx, fx.Project.ID, other.User.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetProjectByIDAndUserID(ctx, fx.Project.ID, fx.User.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.Project.Name, got.Name)

	tasks, err := s.GetTasksByProjectID(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, fx.Task.ID, tasks[0].ID)
	assert.Equal(t, domain.PriorityMedium, tasks[0].Priority)
}

func testCommentsOrdered(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "writer")
	other := NewFixture(t, s, "elsewhere")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	second, err := s.CreateComment(ctx, &domain.Comment{
		TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "second", CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	first, err := s.CreateComment(ctx, &domain.Comment{
		TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "first", CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, &domain.Comment{
		TaskID: other.Task.ID, UserID: other.User.ID, Content: "unrelated", CreatedAt: base,
	})
	require.NoError(t, err)

	// Parent references are stored as given, even when they point nowhere.
	dangling := "7e57c0de-0000-4000-8000-000000000999"
	reply, err := s.CreateComment(ctx, &domain.Comment{
		TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "reply", ParentCommentID: &dangling,
		CreatedAt: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.ID)

	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
	assert.Equal(t, reply.ID, comments[2].ID)
	require.NotNil(t, comments[2].ParentCommentID)
	assert.Equal(t, dangling, *comments[2].ParentCommentID)
	assert.Nil(t, comments[0].ParentCommentID)

	empty, err := s.GetCommentsByTaskID(ctx, unknownID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUpdateCommentAuthorOnly(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "author")
	intruder := NewFixture(t, s, "intruder")

	c, err := s.CreateComment(ctx, &domain.Comment{TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "draft"})
	require.NoError(t, err)

	n, err := s.UpdateComment(ctx, c.ID, intruder.User.ID, storage.CommentUpdate{Content: "hijack"})
	require.NoError(t, err)
	assert.Zero(t, n)

	url := "https://files.example.com/notes.pdf"
	n, err = s.UpdateComment(ctx, c.ID, fx.User.ID, storage.CommentUpdate{Content: "final", FileAttachmentURL: &url})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "final", comments[0].Content)
	require.NotNil(t, comments[0].FileAttachmentURL)
	assert.Equal(t, url, *comments[0].FileAttachmentURL)
}

func testDeleteCommentAuthorOnly(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "deleter")
	intruder := NewFixture(t, s, "vandal")

	parent, err := s.CreateComment(ctx, &domain.Comment{TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "parent"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, &domain.Comment{
		TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "child", ParentCommentID: &parent.ID,
	})
	require.NoError(t, err)

	n, err := s.DeleteComment(ctx, parent.ID, intruder.User.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteComment(ctx, parent.ID, fx.User.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// No cascade: the reply stays behind as an orphan.
	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "child", comments[0].Content)

	n, err = s.DeleteComment(ctx, parent.ID, fx.User.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUsersByIDs(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := NewFixture(t, s, "ann")
	b := NewFixture(t, s, "bob")

	users, err := s.GetUsersByIDs(ctx, []string{a.User.ID, b.User.ID, unknownID})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann", users[a.User.ID].Username)
	assert.Equal(t, "bob", users[b.User.ID].Username)
}

func testCommentsSameTimestamp(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "burst")

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var want []string
	for i := 0; i < 5; i++ {
		c, err := s.CreateComment(ctx, &domain.Comment{
			TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "same instant", CreatedAt: at,
		})
		require.NoError(t, err)
		want = append(want, c.ID)
	}

	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	got := make([]string, len(comments))
	for i, c := range comments {
		got[i] = c.ID
	}
	assert.Equal(t, want, got, "insertion order breaks created_at ties")
}

func testUpdateProject(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "renamer")

	n, err := s.UpdateProject(ctx, &domain.Project{ID: fx.Project.ID, Name: "renamed", Description: "new text"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetProjectByIDAndUserID(ctx, fx.Project.ID, fx.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "new text", got.Description)
	assert.Equal(t, fx.User.ID, got.UserID)

	n, err = s.UpdateProject(ctx, &domain.Project{ID: unknownID, Name: "ghost"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testDeleteProjectCascades(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "closer")
	kept := NewFixture(t, s, "bystander")

	_, err := s.CreateComment(ctx, &domain.Comment{TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "gone soon"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, &domain.Comment{TaskID: kept.Task.ID, UserID: kept.User.ID, Content: "stays"})
	require.NoError(t, err)

	n, err := s.DeleteProject(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	projects, err := s.GetProjectsByUserID(ctx, fx.User.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
	tasks, err := s.GetTasksByProjectID(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	_, err = s.ResolveTaskOwner(ctx, fx.Task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	comments, err = s.GetCommentsByTaskID(ctx, kept.Task.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	n, err = s.DeleteProject(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUpdateTask(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "planner")

	deadline := time.Date(2024, 6, 30, 17, 0, 0, 0, time.UTC)
	url := "https://files.example.com/plan.pdf"
	n, err := s.UpdateTask(ctx, &domain.Task{
		ID:                fx.Task.ID,
		Title:             "retitled",
		Description:       "details",
		Priority:          domain.PriorityHigh,
		Status:            domain.StatusDone,
		Deadline:          &deadline,
		FileAttachmentURL: &url,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	tasks, err := s.GetTasksByProjectID(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, "retitled", got.Title)
	assert.Equal(t, "details", got.Description)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, fx.Project.ID, got.ProjectID)
	require.NotNil(t, got.Deadline)
	assert.WithinDuration(t, deadline, *got.Deadline, time.Second)
	require.NotNil(t, got.FileAttachmentURL)
	assert.Equal(t, url, *got.FileAttachmentURL)

	// nil pointers clear the optional columns
	n, err = s.UpdateTask(ctx, &domain.Task{
		ID: fx.Task.ID, Title: "retitled", Priority: domain.PriorityLow, Status: domain.StatusToDo,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	tasks, err = s.GetTasksByProjectID(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Nil(t, tasks[0].Deadline)
	assert.Nil(t, tasks[0].FileAttachmentURL)

	n, err = s.UpdateTask(ctx, &domain.Task{ID: unknownID, Title: "ghost"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testDeleteTaskCascades(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	fx := NewFixture(t, s, "finisher")

	sibling, err := s.CreateTask(ctx, &domain.Task{
		ProjectID: fx.Project.ID, Title: "sibling", Priority: domain.PriorityMedium, Status: domain.StatusToDo,
	})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, &domain.Comment{TaskID: fx.Task.ID, UserID: fx.User.ID, Content: "on the doomed task"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, &domain.Comment{TaskID: sibling.ID, UserID: fx.User.ID, Content: "on the sibling"})
	require.NoError(t, err)

	n, err := s.DeleteTask(ctx, fx.Task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.ResolveTaskOwner(ctx, fx.Task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	comments, err := s.GetCommentsByTaskID(ctx, fx.Task.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	tasks, err := s.GetTasksByProjectID(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, sibling.ID, tasks[0].ID)
	comments, err = s.GetCommentsByTaskID(ctx, sibling.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	n, err = s.DeleteTask(ctx, fx.Task.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
