package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/workflow"
)

type advanceRoomRequest struct {
	Status  model.RoomStatus `json:"status" binding:"required"`
	Message string           `json:"message"`
}

// AgentAdvanceRoom applies an agent status change.
func (h *Handler) AgentAdvanceRoom(c *gin.Context) {
	var req advanceRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.svc.AdvanceRoom(c.Request.Context(), c.Param("room_id"), req.Status, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type detectionsRequest struct {
	Objects []workflow.DetectionInput `json:"objects" binding:"required,dive"`
}

// AgentReportDetections stores detected objects.
func (h *Handler) AgentReportDetections(c *gin.Context) {
	var req detectionsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.svc.ReportDetections(c.Request.Context(), c.Param("room_id"), req.Objects)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objectsCount": n})
}

type agentMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// AgentPostMessage posts to a room's chat as the agent.
func (h *Handler) AgentPostMessage(c *gin.Context) {
	var req agentMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.PostAgentMessage(c.Request.Context(), c.Param("room_id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// AgentPurgeRoom removes a room the agent finished deleting.
func (h *Handler) AgentPurgeRoom(c *gin.Context) {
	if err := h.svc.PurgeRoom(c.Request.Context(), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type comparisonRequest struct {
	MissingObjects []model.MissingObject `json:"missingObjects"`
}

// AgentRecordComparison stores the exit-photo comparison result.
func (h *Handler) AgentRecordComparison(c *gin.Context) {
	var req comparisonRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.svc.RecordComparison(c.Request.Context(), c.Param("checkout_id"), req.MissingObjects)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
