package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=255"`
}

type projectRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type taskRequest struct {
	Title             string     `json:"title" validate:"required,max=255"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	Status            string     `json:"status" validate:"omitempty,oneof=to-do in-progress done"`
	Deadline          *time.Time `json:"deadline"`
	FileAttachmentURL *string    `json:"file_attachment_url" validate:"omitempty,url"`
}

var (
	userErrors = errorMessages{
		internal: "Server error during registration.",
	}
	projectErrors = errorMessages{
		notFound: "Project not found or you do not have access to it.",
		internal: "Server error handling projects.",
	}
	taskErrors = errorMessages{
		notFound: "Project not found or you do not have access to it.",
		internal: "Server error handling tasks.",
	}
	updateProjectErrors = errorMessages{
		notFound: "Project not found or you do not have permission to update it.",
		internal: "Server error updating project.",
	}
	deleteProjectErrors = errorMessages{
		notFound: "Project not found or you do not have permission to delete it.",
		internal: "Server error deleting project.",
	}
	updateTaskErrors = errorMessages{
		notFound: "Task not found or you do not have permission to update it.",
		internal: "Server error updating task.",
	}
	deleteTaskErrors = errorMessages{
		notFound: "Task not found or you do not have permission to delete it.",
		internal: "Server error deleting task.",
	}
)

// task builds the stored form of req, filling the default priority and status.
func (req taskRequest) task(id, projectID string) *domain.Task {
	task := &domain.Task{
		ID:                id,
		ProjectID:         projectID,
		Title:             req.Title,
		Description:       req.Description,
		Priority:          req.Priority,
		Status:            req.Status,
		Deadline:          req.Deadline,
		FileAttachmentURL: req.FileAttachmentURL,
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.Status == "" {
		task.Status = domain.StatusToDo
	}
	return task
}

// affected turns a zero row count into ErrNotFoundOrForbidden.
func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFoundOrForbidden
	}
	return nil
}

// requireFields maps the first failed tag onto a 400 message.
func (h *Handler) requireFields(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return domain.NewValidationError("%s is required.", fe.Field())
		}
		return domain.NewValidationError("%s is invalid.", fe.Field())
	}
	return err
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, userErrors)
		return
	}
	if err := h.requireFields(req); err != nil {
		h.fail(w, r, err, userErrors)
		return
	}

	user, err := h.Store.CreateUser(r.Context(), &domain.User{Username: req.Username})
	if errors.Is(err, storage.ErrConflict) {
		writeMessage(w, http.StatusConflict, "Username already taken.")
		return
	}
	if err != nil {
		h.fail(w, r, err, userErrors)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully!",
		"userId":  user.ID,
	})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.GetProjectsByUserID(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, projectErrors)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, projectErrors)
		return
	}
	if err := h.requireFields(req); err != nil {
		h.fail(w, r, err, projectErrors)
		return
	}

	project, err := h.Store.CreateProject(r.Context(), &domain.Project{
		UserID:      UserIDFrom(r.Context()),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, err, projectErrors)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   "Project created successfully!",
		"projectId": project.ID,
	})
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, updateProjectErrors)
		return
	}
	if err := h.requireFields(req); err != nil {
		h.fail(w, r, err, updateProjectErrors)
		return
	}

	project, err := h.ownedProject(r)
	if err != nil {
		h.fail(w, r, err, updateProjectErrors)
		return
	}
	project.Name = req.Name
	project.Description = req.Description
	if err := affected(h.Store.UpdateProject(r.Context(), project)); err != nil {
		h.fail(w, r, err, updateProjectErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Project updated successfully!")
}

// deleteProject removes the project with its tasks and their comments.
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.ownedProject(r)
	if err != nil {
		h.fail(w, r, err, deleteProjectErrors)
		return
	}
	if err := affected(h.Store.DeleteProject(r.Context(), project.ID)); err != nil {
		h.fail(w, r, err, deleteProjectErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted successfully!")
}

// ownedProject loads the project only if the caller owns it.
func (h *Handler) ownedProject(r *http.Request) (*domain.Project, error) {
	project, err := h.Store.GetProjectByIDAndUserID(r.Context(), chi.URLParam(r, "projectId"), UserIDFrom(r.Context()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNotFoundOrForbidden
	}
	return project, err
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	project, err := h.ownedProject(r)
	if err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}
	tasks, err := h.Store.GetTasksByProjectID(r.Context(), project.ID)
	if err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}
	if err := h.requireFields(req); err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}

	project, err := h.ownedProject(r)
	if err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}

	created, err := h.Store.CreateTask(r.Context(), req.task("", project.ID))
	if err != nil {
		h.fail(w, r, err, taskErrors)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Task created successfully!",
		"taskId":  created.ID,
	})
}

// ownedTask checks that the caller owns the project of the task in the URL and
// returns the task id. Absence and foreign ownership look the same.
func (h *Handler) ownedTask(r *http.Request) (string, error) {
	taskID := chi.URLParam(r, "taskId")
	owner, err := h.Store.ResolveTaskOwner(r.Context(), taskID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && owner != UserIDFrom(r.Context())) {
		return "", domain.ErrNotFoundOrForbidden
	}
	return taskID, err
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, updateTaskErrors)
		return
	}
	if err := h.requireFields(req); err != nil {
		h.fail(w, r, err, updateTaskErrors)
		return
	}

	taskID, err := h.ownedTask(r)
	if err != nil {
		h.fail(w, r, err, updateTaskErrors)
		return
	}
	if err := affected(h.Store.UpdateTask(r.Context(), req.task(taskID, ""))); err != nil {
		h.fail(w, r, err, updateTaskErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Task updated successfully!")
}

// deleteTask removes the task and every comment on it.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.ownedTask(r)
	if err != nil {
		h.fail(w, r, err, deleteTaskErrors)
		return
	}
	if err := affected(h.Store.DeleteTask(r.Context(), taskID)); err != nil {
		h.fail(w, r, err, deleteTaskErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted successfully!")
}
