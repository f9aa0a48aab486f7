package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/logger"
	"roomcheck-backend/internal/mw"
	"roomcheck-backend/internal/workflow"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *workflow.Service, tokens *auth.Service, webpushOptions *webpush.Options, cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(log), logger.Recovery(log))

	handler := NewHandler(svc, webpushOptions)
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	listings := mw.NewListingCache(cfg.CacheTTL)
	availability := listings.InvalidateOnSuccess()

	api := r.Group("/api")
	api.Use(mw.Authenticate(tokens), rateLimiter)
	{
		guest := api.Group("/guest", mw.RequireRole(auth.RoleGuest))
		guest.GET("/rooms", listings.Serve(), handler.GetAvailableRooms)
		guest.GET("/current", handler.GetCurrentStay)
		guest.POST("/rooms/:room_id/checkin", availability, handler.CheckIn)
		guest.POST("/rooms/:room_id/checkout", availability, handler.StartCheckout)
		guest.POST("/rooms/:room_id/checkouts/:checkout_id/batches", handler.BeginPhotoUpload)
		guest.POST("/rooms/:room_id/checkouts/:checkout_id/batches/:batch_id/complete", handler.CompletePhotoUpload)
		guest.POST("/rooms/:room_id/checkouts/:checkout_id/batches/:batch_id/fail", handler.FailPhotoUpload)
		guest.GET("/rooms/:room_id/checkouts/:checkout_id/refund", handler.GetRefundSummary)
		guest.POST("/rooms/:room_id/checkouts/:checkout_id/confirm", availability, handler.ConfirmRefund)

		host := api.Group("/host", mw.RequireRole(auth.RoleHost))
		host.GET("/rooms", handler.ListRooms)
		host.POST("/rooms", handler.CreateRoom)
		host.GET("/rooms/:room_id", handler.GetRoom)
		host.DELETE("/rooms/:room_id", availability, handler.DeleteRoom)
		host.PATCH("/rooms/:room_id/deposit", handler.UpdateDeposit)
		host.POST("/rooms/:room_id/photos", handler.AddBaselinePhotos)
		host.POST("/rooms/:room_id/process", handler.RequestProcessing)
		host.POST("/rooms/:room_id/approve", availability, handler.ApproveReview)
		host.POST("/rooms/:room_id/unlock", availability, handler.UnlockRoom)
		host.GET("/rooms/:room_id/objects", handler.ListObjects)
		host.PATCH("/rooms/:room_id/objects/:object_id", handler.UpdateObject)
		host.GET("/rooms/:room_id/checkouts", handler.ListCheckouts)
		host.POST("/rooms/:room_id/checkouts/:checkout_id/settle", availability, handler.SettleManualRefund)

		api.GET("/rooms/:room_id/messages", handler.ListMessages)
		api.POST("/rooms/:room_id/messages", handler.PostMessage)
		api.POST("/rooms/:room_id/messages/read", handler.MarkRead)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	agent := r.Group("/agent")
	agent.Use(mw.Authenticate(tokens), mw.RequireRole(auth.RoleAgent))
	{
		agent.POST("/rooms/:room_id/status", availability, handler.AgentAdvanceRoom)
		agent.POST("/rooms/:room_id/objects", handler.AgentReportDetections)
		agent.POST("/rooms/:room_id/messages", handler.AgentPostMessage)
		agent.DELETE("/rooms/:room_id", availability, handler.AgentPurgeRoom)
		agent.POST("/checkouts/:checkout_id/comparison", handler.AgentRecordComparison)
	}

	return r
}
