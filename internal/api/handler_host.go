package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"roomcheck-backend/internal/store"
)

type createRoomRequest struct {
	Name          string           `json:"name" binding:"required"`
	DepositAmount *decimal.Decimal `json:"depositAmount"`
}

// CreateRoom adds a room for the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.svc.CreateRoom(c.Request.Context(), principal(c).ID, req.Name, req.DepositAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ListRooms lists the caller's rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context(), principal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom returns one of the caller's rooms.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.svc.GetRoom(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type depositRequest struct {
	DepositAmount *decimal.Decimal `json:"depositAmount" binding:"required"`
}

// UpdateDeposit changes a room's deposit.
func (h *Handler) UpdateDeposit(c *gin.Context) {
	var req depositRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.svc.UpdateDeposit(c.Request.Context(), principal(c).ID, c.Param("room_id"), *req.DepositAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// AddBaselinePhotos issues upload URLs for baseline photos.
func (h *Handler) AddBaselinePhotos(c *gin.Context) {
	var req photosRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.AddBaselinePhotos(c.Request.Context(), principal(c).ID, c.Param("room_id"), req.Photos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RequestProcessing starts object detection.
func (h *Handler) RequestProcessing(c *gin.Context) {
	room, err := h.svc.RequestProcessing(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// ApproveReview opens a reviewed room to guests.
func (h *Handler) ApproveReview(c *gin.Context) {
	room, err := h.svc.ApproveReview(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeleteRoom marks a room for deletion.
func (h *Handler) DeleteRoom(c *gin.Context) {
	room, err := h.svc.DeleteRoom(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, room)
}

// UnlockRoom releases a room.
func (h *Handler) UnlockRoom(c *gin.Context) {
	released, err := h.svc.UnlockRoom(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// ListObjects lists a room's detected objects.
func (h *Handler) ListObjects(c *gin.Context) {
	objects, err := h.svc.ListObjects(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

type updateObjectRequest struct {
	Label    *string `json:"label"`
	Verified *bool   `json:"verified"`
}

// UpdateObject relabels or verifies an object.
func (h *Handler) UpdateObject(c *gin.Context) {
	var req updateObjectRequest
	if !bindJSON(c, &req) {
		return
	}
	obj, err := h.svc.UpdateObject(c.Request.Context(), principal(c).ID, c.Param("room_id"), c.Param("object_id"),
		store.ObjectPatch{Label: req.Label, Verified: req.Verified})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// ListCheckouts lists a room's checkouts.
func (h *Handler) ListCheckouts(c *gin.Context) {
	checkouts, err := h.svc.ListCheckouts(c.Request.Context(), principal(c).ID, c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkouts": checkouts})
}

type settleRequest struct {
	Deduction *decimal.Decimal `json:"deduction" binding:"required"`
}

// SettleManualRefund closes a checkout with a host-decided deduction.
func (h *Handler) SettleManualRefund(c *gin.Context) {
	var req settleRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.svc.SettleManualRefund(c.Request.Context(), principal(c).ID,
		c.Param("room_id"), c.Param("checkout_id"), *req.Deduction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
