package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcheck-backend/internal/model"
)

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, model.DomainError{
			Code:    "PUSH_DISABLED",
			Message: "vapid keys are not configured",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
