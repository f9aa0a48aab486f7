package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListMessages returns the latest messages of a room's chat.
func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.svc.ListMessages(c.Request.Context(), principal(c), c.Param("room_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type postMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostMessage appends the caller's message to a room's chat.
func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.PostMessage(c.Request.Context(), principal(c), c.Param("room_id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead clears a chat's unread count.
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), principal(c), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
