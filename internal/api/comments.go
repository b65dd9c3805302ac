package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/UkralStul/taskboard-comments/internal/comments"
	"github.com/UkralStul/taskboard-comments/internal/dataloader"
	"github.com/go-chi/chi/v5"
)

// idRef accepts an id written either as a JSON string or a bare number. An empty
// result is treated as absent by the comment service.
type idRef string

func (r *idRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = idRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	// A numeric zero never names a comment; it means "no parent".
	if f, err := n.Float64(); err == nil && f == 0 {
		*r = ""
		return nil
	}
	*r = idRef(n.String())
	return nil
}

func (r *idRef) ptr() *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

type addCommentRequest struct {
	Content           string  `json:"content"`
	ParentCommentID   *idRef  `json:"parent_comment_id"`
	FileAttachmentURL *string `json:"file_attachment_url"`
}

type updateCommentRequest struct {
	Content           string  `json:"content"`
	FileAttachmentURL *string `json:"file_attachment_url"`
}

type addCommentResponse struct {
	Message   string `json:"message"`
	CommentID string `json:"commentId"`
}

var (
	listCommentsErrors = errorMessages{
		notFound: "Task not found or you do not have access to its comments.",
		internal: "Server error fetching comments.",
	}
	addCommentErrors = errorMessages{
		notFound: "Task not found or you do not have access to add comments to it.",
		internal: "Server error adding comment.",
	}
	updateCommentErrors = errorMessages{
		notFound: "Comment not found or you do not have permission to update it.",
		internal: "Server error updating comment.",
	}
	deleteCommentErrors = errorMessages{
		notFound: "Comment not found or you do not have permission to delete it.",
		internal: "Server error deleting comment.",
	}
)

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tree, err := h.Comments.ListComments(ctx, chi.URLParam(r, "taskId"), UserIDFrom(ctx))
	if err != nil {
		h.fail(w, r, err, listCommentsErrors)
		return
	}

	if loaders := dataloader.For(ctx); loaders != nil {
		if err := loaders.AttachUsernames(ctx, tree); err != nil {
			h.fail(w, r, err, listCommentsErrors)
			return
		}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, addCommentErrors)
		return
	}

	ctx := r.Context()
	id, err := h.Comments.AddComment(ctx, chi.URLParam(r, "taskId"), UserIDFrom(ctx), comments.AddCommentInput{
		Content:           req.Content,
		ParentCommentID:   req.ParentCommentID.ptr(),
		FileAttachmentURL: req.FileAttachmentURL,
	})
	if err != nil {
		h.fail(w, r, err, addCommentErrors)
		return
	}
	writeJSON(w, http.StatusCreated, addCommentResponse{Message: "Comment added successfully!", CommentID: id})
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, updateCommentErrors)
		return
	}

	ctx := r.Context()
	err := h.Comments.UpdateComment(ctx, chi.URLParam(r, "id"), UserIDFrom(ctx), comments.UpdateCommentInput{
		Content:           req.Content,
		FileAttachmentURL: req.FileAttachmentURL,
	})
	if err != nil {
		h.fail(w, r, err, updateCommentErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Comment updated successfully!")
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Comments.DeleteComment(ctx, chi.URLParam(r, "id"), UserIDFrom(ctx)); err != nil {
		h.fail(w, r, err, deleteCommentErrors)
		return
	}
	writeMessage(w, http.StatusOK, "Comment deleted successfully!")
}
