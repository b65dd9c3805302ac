package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const feedWriteWait = 5 * time.Second

var feedErrors = errorMessages{
	notFound: "Task not found or you do not have access to its comments.",
	internal: "Server error opening comment feed.",
}

// commentFeed upgrades to a websocket and pushes every comment added to the task
// as a JSON text frame. Authorization happens before the upgrade so a refused
// caller gets a plain 404.
func (h *Handler) commentFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, err := h.Comments.Subscribe(ctx, chi.URLParam(r, "taskId"), UserIDFrom(ctx))
	if err != nil {
		h.fail(w, r, err, feedErrors)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.Metrics.FeedOpened()
	defer h.Metrics.FeedClosed()

	// The client never sends data; reading only notices when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.PingInterval)
	defer ping.Stop()

	for {
		select {
		case c, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(c); err != nil {
				h.logger.Debug("comment feed write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
