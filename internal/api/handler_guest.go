package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcheck-backend/internal/workflow"
)

// GetAvailableRooms lists rooms open for check-in.
func (h *Handler) GetAvailableRooms(c *gin.Context) {
	rooms, err := h.svc.AvailableRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetCurrentStay returns the caller's room and checkout, or null.
func (h *Handler) GetCurrentStay(c *gin.Context) {
	stay, err := h.svc.CurrentStay(c.Request.Context(), principal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stay": stay})
}

// CheckIn locks a room for the caller.
func (h *Handler) CheckIn(c *gin.Context) {
	room, err := h.svc.CheckIn(c.Request.Context(), principal(c), c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type startCheckoutRequest struct {
	WillUploadPhotos *bool `json:"willUploadPhotos" binding:"required"`
}

// StartCheckout opens a checkout for the caller's room.
func (h *Handler) StartCheckout(c *gin.Context) {
	var req startCheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	checkout, err := h.svc.StartCheckout(c.Request.Context(), principal(c), c.Param("room_id"), *req.WillUploadPhotos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

type photosRequest struct {
	Photos []workflow.PhotoInfo `json:"photos" binding:"required,dive"`
}

// BeginPhotoUpload issues upload URLs for a batch of exit photos.
func (h *Handler) BeginPhotoUpload(c *gin.Context) {
	var req photosRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := h.svc.BeginPhotoUpload(c.Request.Context(), principal(c).ID,
		c.Param("room_id"), c.Param("checkout_id"), req.Photos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// CompletePhotoUpload hands an uploaded batch to the agent.
func (h *Handler) CompletePhotoUpload(c *gin.Context) {
	checkout, err := h.svc.CompletePhotoUpload(c.Request.Context(), principal(c).ID,
		c.Param("room_id"), c.Param("checkout_id"), c.Param("batch_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

type failBatchRequest struct {
	Reason string `json:"reason"`
}

// FailPhotoUpload abandons a batch.
func (h *Handler) FailPhotoUpload(c *gin.Context) {
	var req failBatchRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	err := h.svc.FailPhotoUpload(c.Request.Context(), principal(c).ID,
		c.Param("room_id"), c.Param("checkout_id"), c.Param("batch_id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRefundSummary returns the refund breakdown for a checkout.
func (h *Handler) GetRefundSummary(c *gin.Context) {
	view, err := h.svc.RefundSummary(c.Request.Context(), principal(c).ID, c.Param("room_id"), c.Param("checkout_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ConfirmRefund accepts the refund and releases the room.
func (h *Handler) ConfirmRefund(c *gin.Context) {
	view, err := h.svc.ConfirmRefund(c.Request.Context(), principal(c), c.Param("room_id"), c.Param("checkout_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
