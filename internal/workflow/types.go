package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/refund"
	"roomcheck-backend/internal/storage"
)

const (
	maxPhotosPerBatch = 50
	maxPhotoSize      = 20 << 20
)

// PhotoInfo describes one photo a client is about to upload.
type PhotoInfo struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Size        int64  `json:"size"`
}

func validatePhotos(photos []PhotoInfo) error {
	if len(photos) == 0 || len(photos) > maxPhotosPerBatch {
		return fmt.Errorf("%w: between 1 and %d photos are required", model.ErrInvalidInput, maxPhotosPerBatch)
	}
	for _, p := range photos {
		if strings.TrimSpace(p.Filename) == "" {
			return fmt.Errorf("%w: photo filename is required", model.ErrInvalidInput)
		}
		if !strings.HasPrefix(p.ContentType, "image/") {
			return fmt.Errorf("%w: %s is not an image", model.ErrInvalidInput, p.Filename)
		}
		if p.Size < 0 || p.Size > maxPhotoSize {
			return fmt.Errorf("%w: %s exceeds the size limit", model.ErrInvalidInput, p.Filename)
		}
	}
	return nil
}

// BatchTicket is returned when a guest starts uploading exit photos.
type BatchTicket struct {
	Batch     *model.UploadBatch     `json:"batch"`
	Uploads   []storage.PresignedURL `json:"uploads"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

// BaselineUpload is returned when a host adds baseline photos.
type BaselineUpload struct {
	Room    *model.Room            `json:"room"`
	Uploads []storage.PresignedURL `json:"uploads"`
}

// CurrentStay is the room a guest holds and their checkout in it, if any.
type CurrentStay struct {
	Room     *model.Room     `json:"room"`
	Checkout *model.Checkout `json:"checkout"`
}

// MissingItemView is a missing object with a viewable evidence link.
type MissingItemView struct {
	model.MissingObject
	EvidenceURL string `json:"evidenceUrl,omitempty"`
}

// RefundView is the refund breakdown shown before and after confirmation.
type RefundView struct {
	CheckoutID      string               `json:"checkoutId"`
	Status          model.CheckoutStatus `json:"status"`
	DepositAmount   decimal.Decimal      `json:"depositAmount"`
	PenaltyPerItem  decimal.Decimal      `json:"penaltyPerItem"`
	RefundDeduction decimal.Decimal      `json:"refundDeduction"`
	RefundAmount    decimal.Decimal      `json:"refundAmount"`
	MissingObjects  []MissingItemView    `json:"missingObjects"`
	SkippedPhotos   bool                 `json:"skippedPhotos"`
	Escalated       bool                 `json:"escalated"`
	CompletedAt     *time.Time           `json:"completedAt"`
}

func newRefundView(c *model.Checkout) *RefundView {
	sum := refund.Summarize(c)
	v := &RefundView{
		CheckoutID:      c.ID,
		Status:          c.Status,
		DepositAmount:   sum.DepositAmount,
		PenaltyPerItem:  sum.PenaltyPerItem,
		RefundDeduction: sum.RefundDeduction,
		RefundAmount:    sum.RefundAmount,
		MissingObjects:  make([]MissingItemView, 0, len(sum.MissingObjects)),
		SkippedPhotos:   c.SkippedPhotos,
		Escalated:       c.Escalated,
		CompletedAt:     c.CompletedAt,
	}
	for _, m := range sum.MissingObjects {
		v.MissingObjects = append(v.MissingObjects, MissingItemView{MissingObject: m})
	}
	return v
}

// ObjectView is a detected object with a viewable crop link.
type ObjectView struct {
	model.DetectedObject
	CropURL string `json:"cropUrl,omitempty"`
}

// DetectionInput is one object reported by the agent.
type DetectionInput struct {
	ID         string  `json:"id"`
	Label      string  `json:"label" binding:"required"`
	Confidence float64 `json:"confidence"`
	CropPath   string  `json:"cropPath"`
}
