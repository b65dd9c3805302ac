package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/comments"
	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/observability"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/UkralStul/taskboard-comments/internal/storage/inmemory"
	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	server *httptest.Server
	store  *inmemory.Store
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := inmemory.New()
	metrics := observability.NewMetrics()
	svc := comments.NewService(store, comments.NewObserver(8), comments.WithMetrics(metrics))
	h := NewHandler(svc, store, metrics, nil, time.Second)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &apiEnv{server: srv, store: store}
}

// do sends body (marshalled when not nil) as userID and decodes the reply into out.
func (e *apiEnv) do(t *testing.T, method, path, userID string, body, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// seed registers a user with a project and a task over the API.
func (e *apiEnv) seed(t *testing.T, username string) (userID, taskID string) {
	t.Helper()
	var user map[string]string
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": username}, &user))
	userID = user["userId"]

	var project map[string]string
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/projects", userID, map[string]string{"name": "P"}, &project))

	var task map[string]string
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/projects/"+project["projectId"]+"/tasks", userID,
		map[string]string{"title": "T"}, &task))
	return userID, task["taskId"]
}

func TestAPI_HelloWorldScenario(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	u2, _ := env.seed(t, "u2")
	path := "/api/tasks/" + taskID + "/comments"

	var created map[string]string
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, u1, map[string]any{"content": "hello"}, &created))
	assert.Equal(t, "Comment added successfully!", created["message"])
	helloID := created["commentId"]

	var denied messageResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, u2, nil, &denied))
	assert.Equal(t, "Task not found or you do not have access to its comments.", denied.Message)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, u1,
		map[string]any{"content": "world", "parent_comment_id": helloID}, &created))
	worldID := created["commentId"]

	var tree []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, u1, nil, &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, helloID, tree[0]["id"])
	assert.Equal(t, "hello", tree[0]["content"])
	assert.Equal(t, "u1", tree[0]["username"])

	replies, ok := tree[0]["replies"].([]any)
	require.True(t, ok)
	require.Len(t, replies, 1)
	reply := replies[0].(map[string]any)
	assert.Equal(t, worldID, reply["id"])
	assert.Equal(t, "world", reply["content"])
	assert.NotContains(t, reply, "replies")
}

func TestAPI_NumericOrphanParent(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	path := "/api/tasks/" + taskID + "/comments"

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, u1,
		map[string]any{"content": "lost", "parent_comment_id": 999}, nil))

	stored, err := env.store.GetCommentsByTaskID(context.Background(), taskID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "999", *stored[0].ParentCommentID)

	var tree []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, u1, nil, &tree))
	assert.Empty(t, tree)
}

func TestAPI_AddComment_Errors(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	_, foreignTask := env.seed(t, "u2")

	var msg messageResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/comments", u1, map[string]any{}, &msg))
	assert.Equal(t, "Comment content is required.", msg.Message)

	missing := env.do(t, http.MethodPost, "/api/tasks/does-not-exist/comments", u1, map[string]any{"content": "x"}, &msg)
	missingMsg := msg.Message
	foreign := env.do(t, http.MethodPost, "/api/tasks/"+foreignTask+"/comments", u1, map[string]any{"content": "x"}, &msg)
	assert.Equal(t, http.StatusNotFound, missing)
	assert.Equal(t, missing, foreign)
	assert.Equal(t, missingMsg, msg.Message)
}

func TestAPI_MalformedBody(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/tasks/"+taskID+"/comments", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set(UserIDHeader, u1)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UpdateAndDelete_AuthorOnly(t *testing.T) {
	env := newAPIEnv(t)
	owner, taskID := env.seed(t, "owner")
	guest, _ := env.seed(t, "guest")

	// The guest's comment sits on the owner's task.
	c, err := env.store.CreateComment(context.Background(), &domain.Comment{TaskID: taskID, UserID: guest, Content: "guest says"})
	require.NoError(t, err)
	path := "/api/comments/" + c.ID

	var msg messageResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, owner, map[string]any{"content": "owner edit"}, &msg))
	assert.Equal(t, "Comment not found or you do not have permission to update it.", msg.Message)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, owner, nil, &msg))
	assert.Equal(t, "Comment not found or you do not have permission to delete it.", msg.Message)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, path, guest, map[string]any{"content": ""}, &msg))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path, guest,
		map[string]any{"content": "guest edit", "file_attachment_url": "https://x.example/y.pdf"}, &msg))
	assert.Equal(t, "Comment updated successfully!", msg.Message)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, guest, nil, &msg))
	assert.Equal(t, "Comment deleted successfully!", msg.Message)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, guest, nil, &msg))
}

func TestAPI_RequiresUser(t *testing.T) {
	env := newAPIEnv(t)

	var msg messageResponse
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/tasks/x/comments", "", nil, &msg))
	assert.Equal(t, "Authentication required.", msg.Message)
}

func TestAPI_ProjectsAndTasks(t *testing.T) {
	env := newAPIEnv(t)
	u1, _ := env.seed(t, "u1")
	u2, _ := env.seed(t, "u2")

	var projects []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects", u1, nil, &projects))
	require.Len(t, projects, 1)
	projectID := projects[0]["id"].(string)

	var tasks []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", u1, nil, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.PriorityMedium, tasks[0]["priority"])
	assert.Equal(t, domain.StatusToDo, tasks[0]["status"])

	var msg messageResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", u2, nil, &msg))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/projects", u1, map[string]any{}, &msg))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", u1,
		map[string]any{"title": "t", "priority": "Urgent"}, &msg))

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "u1"}, &msg))
}

func TestAPI_CommentFeed(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	u2, _ := env.seed(t, "u2")
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/tasks/" + taskID + "/comments/feed"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{UserIDHeader: {u2}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{UserIDHeader: {u1}})
	require.NoError(t, err)
	defer conn.Close()

	var created map[string]string
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/comments", u1,
		map[string]any{"content": "pushed"}, &created))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got domain.Comment
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, created["commentId"], got.ID)
	assert.Equal(t, "pushed", got.Content)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	env.do(t, http.MethodGet, "/api/tasks/"+taskID+"/comments", u1, nil, nil)

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskboard_comments_operations_total{op="list",outcome="success"} 1`)
	assert.Contains(t, string(body), `route="/api/tasks/{taskId}/comments"`)
}

// brokenStore fails every comment fetch.
type brokenStore struct {
	storage.Storage
}

func (brokenStore) GetCommentsByTaskID(context.Context, string) ([]*domain.Comment, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestAPI_InternalErrorIsGeneric(t *testing.T) {
	mem := inmemory.New()
	ctx := context.Background()
	user, err := mem.CreateUser(ctx, &domain.User{Username: "u"})
	require.NoError(t, err)
	project, err := mem.CreateProject(ctx, &domain.Project{UserID: user.ID, Name: "p"})
	require.NoError(t, err)
	task, err := mem.CreateTask(ctx, &domain.Task{ProjectID: project.ID, Title: "t"})
	require.NoError(t, err)

	store := brokenStore{Storage: mem}
	h := NewHandler(comments.NewService(store, nil), store, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID+"/comments", nil)
	req.Header.Set(UserIDHeader, user.ID)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Server error fetching comments."}`, rec.Body.String())
}

func TestAPI_RequiresUser_NotAUUID(t *testing.T) {
	env := newAPIEnv(t)

	var msg messageResponse
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/projects", "alice",
		map[string]string{"name": "P"}, &msg))
	assert.Equal(t, "Authentication required.", msg.Message)
}

func TestAPI_ZeroParentIsRoot(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	path := "/api/tasks/" + taskID + "/comments"

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, u1,
		map[string]any{"content": "top", "parent_comment_id": 0}, nil))
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, u1,
		map[string]any{"content": "also top", "parent_comment_id": ""}, nil))

	stored, err := env.store.GetCommentsByTaskID(context.Background(), taskID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Nil(t, stored[0].ParentCommentID)
	assert.Nil(t, stored[1].ParentCommentID)

	var tree []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, u1, nil, &tree))
	assert.Len(t, tree, 2)
}

func TestIDRef_Unmarshal(t *testing.T) {
	tests := []struct {
		body string
		want *string
	}{
		{`{}`, nil},
		{`{"parent_comment_id": null}`, nil},
		{`{"parent_comment_id": 0}`, ptr("")},
		{`{"parent_comment_id": 42}`, ptr("42")},
		{`{"parent_comment_id": "0"}`, ptr("0")},
		{`{"parent_comment_id": "abc"}`, ptr("abc")},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req addCommentRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.ParentCommentID.ptr())
		})
	}
}

func ptr(s string) *string { return &s }

func TestAPI_UpdateAndDeleteProject(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	u2, _ := env.seed(t, "u2")

	var projects []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects", u1, nil, &projects))
	path := "/api/projects/" + projects[0]["id"].(string)

	var msg messageResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, path, u1, map[string]any{}, &msg))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, u2, map[string]any{"name": "stolen"}, &msg))
	assert.Equal(t, "Project not found or you do not have permission to update it.", msg.Message)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path, u1,
		map[string]any{"name": "Renamed", "description": "d"}, &msg))
	assert.Equal(t, "Project updated successfully!", msg.Message)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects", u1, nil, &projects))
	assert.Equal(t, "Renamed", projects[0]["name"])

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/comments", u1,
		map[string]any{"content": "c"}, nil))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, u2, nil, &msg))
	assert.Equal(t, "Project not found or you do not have permission to delete it.", msg.Message)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, u1, nil, &msg))
	assert.Equal(t, "Project deleted successfully!", msg.Message)

	// The project took its task and comments with it.
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/tasks/"+taskID+"/comments", u1, nil, &msg))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, u1, nil, &msg))
}

func TestAPI_UpdateAndDeleteTask(t *testing.T) {
	env := newAPIEnv(t)
	u1, taskID := env.seed(t, "u1")
	u2, _ := env.seed(t, "u2")
	path := "/api/tasks/" + taskID
	commentsPath := path + "/comments"

	var msg messageResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, path, u1, map[string]any{"description": "no title"}, &msg))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, u2, map[string]any{"title": "stolen"}, &msg))
	assert.Equal(t, "Task not found or you do not have permission to update it.", msg.Message)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path, u1,
		map[string]any{"title": "Ship it", "status": "done", "priority": "High"}, &msg))
	assert.Equal(t, "Task updated successfully!", msg.Message)

	var projects []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects", u1, nil, &projects))
	var tasks []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects/"+projects[0]["id"].(string)+"/tasks", u1, nil, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Ship it", tasks[0]["title"])
	assert.Equal(t, domain.StatusDone, tasks[0]["status"])
	assert.Equal(t, domain.PriorityHigh, tasks[0]["priority"])

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, commentsPath, u1, map[string]any{"content": "c"}, nil))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, u2, nil, &msg))
	assert.Equal(t, "Task not found or you do not have permission to delete it.", msg.Message)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, u1, nil, &msg))
	assert.Equal(t, "Task deleted successfully!", msg.Message)

	// Comments of a deleted task are unreachable and gone from storage.
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, commentsPath, u1, nil, &msg))
	assert.Equal(t, "Task not found or you do not have access to its comments.", msg.Message)
	stored, err := env.store.GetCommentsByTaskID(context.Background(), taskID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, u1, nil, &msg))
}
