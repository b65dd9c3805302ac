// Package api exposes the service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/comments"
	"github.com/UkralStul/taskboard-comments/internal/dataloader"
	"github.com/UkralStul/taskboard-comments/internal/logging"
	"github.com/UkralStul/taskboard-comments/internal/observability"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// Handler holds the dependencies of every endpoint.
type Handler struct {
	Comments     *comments.Service
	Store        storage.Storage
	Metrics      *observability.Metrics
	PingInterval time.Duration

	logger   *slog.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewHandler wires a Handler. metrics may be nil.
func NewHandler(svc *comments.Service, store storage.Storage, metrics *observability.Metrics, logger *slog.Logger, pingInterval time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if pingInterval <= 0 {
		pingInterval = 10 * time.Second
	}
	return &Handler{
		Comments:     svc,
		Store:        store,
		Metrics:      metrics,
		PingInterval: pingInterval,
		logger:       logger,
		validate:     validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(h.logger))
	router.Use(middleware.Recoverer)
	if h.Metrics != nil {
		router.Use(h.Metrics.Middleware)
		router.Handle("/metrics", h.Metrics.Handler())
	}

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Task Management API is running!"))
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/users", h.createUser)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Use(dataloader.Middleware(h.Store))

			r.Get("/projects", h.listProjects)
			r.Post("/projects", h.createProject)
			r.Put("/projects/{projectId}", h.updateProject)
			r.Delete("/projects/{projectId}", h.deleteProject)
			r.Get("/projects/{projectId}/tasks", h.listTasks)
			r.Post("/projects/{projectId}/tasks", h.createTask)
			r.Put("/tasks/{taskId}", h.updateTask)
			r.Delete("/tasks/{taskId}", h.deleteTask)

			r.Get("/tasks/{taskId}/comments", h.listComments)
			r.Post("/tasks/{taskId}/comments", h.addComment)
			r.Get("/tasks/{taskId}/comments/feed", h.commentFeed)
			r.Put("/comments/{id}", h.updateComment)
			r.Delete("/comments/{id}", h.deleteComment)
		})
	})

	return router
}
