package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/logger"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/mw"
	"roomcheck-backend/internal/workflow"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *workflow.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(svc *workflow.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		svc:     svc,
		webpush: webpushOptions,
	}
}

var statusByCode = map[string]int{
	model.ErrAlreadyCheckedIn.Code:        http.StatusConflict,
	model.ErrRoomOccupied.Code:            http.StatusConflict,
	model.ErrRoomNotReady.Code:            http.StatusConflict,
	model.ErrRoomNotFound.Code:            http.StatusNotFound,
	model.ErrNotCheckedIn.Code:            http.StatusForbidden,
	model.ErrNotAwaitingConfirmation.Code: http.StatusConflict,
	model.ErrCheckoutNotFound.Code:        http.StatusNotFound,
	model.ErrCheckoutInProgress.Code:      http.StatusConflict,
	model.ErrCheckoutFinalized.Code:       http.StatusConflict,
	model.ErrInvalidTransition.Code:       http.StatusConflict,
	model.ErrNotRoomOwner.Code:            http.StatusForbidden,
	model.ErrObjectNotFound.Code:          http.StatusNotFound,
	model.ErrBatchNotFound.Code:           http.StatusNotFound,
	model.ErrBatchExpired.Code:            http.StatusGone,
	model.ErrInvalidInput.Code:            http.StatusBadRequest,
	model.ErrUnauthorized.Code:            http.StatusUnauthorized,
	model.ErrForbidden.Code:               http.StatusForbidden,
	model.ErrRateLimited.Code:             http.StatusTooManyRequests,
}

// respondError renders err as {"error", "message", "hint"}. Errors that are
// not domain errors are logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	var de *model.DomainError
	if errors.As(err, &de) {
		status, ok := statusByCode[de.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, model.DomainError{Code: de.Code, Message: err.Error(), Hint: de.Hint})
		return
	}

	logger.FromGin(c).Error("Request failed", zap.Error(err))
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.DomainError{
		Code:    "INTERNAL",
		Message: "internal server error",
		Hint:    "Please try again.",
	})
}

// bindJSON binds the request body and renders a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, model.DomainError{
			Code:    model.ErrInvalidInput.Code,
			Message: "invalid request: " + err.Error(),
		})
		return false
	}
	return true
}

func principal(c *gin.Context) auth.Principal {
	p, _ := mw.PrincipalFrom(c)
	return p
}
