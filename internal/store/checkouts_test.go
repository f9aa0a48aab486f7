package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcheck-backend/internal/model"
)

// checkedInRoom returns a ready room held by guest-a.
func checkedInRoom(t *testing.T, s Store) *model.Room {
	t.Helper()
	room := seedRoom(t, s, "R101", model.RoomStatusComplete)
	_, err := s.CheckIn(context.Background(), room.ID, "guest-a", "Alice", time.Now())
	require.NoError(t, err)
	return room
}

func TestStartCheckout_SkipPhotosUnlocksImmediately(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)

	c, err := s.StartCheckout(ctx, room.ID, "guest-a", false)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusSkippedPhotos, c.Status)
	assert.True(t, c.SkippedPhotos)
	assert.Equal(t, "Alice", c.GuestName)
	assert.Equal(t, "host-1", c.HostID)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
	assert.Nil(t, got.LockedByGuestID)

	active, err := s.ActiveCheckout(ctx, room.ID, "guest-a")
	require.NoError(t, err)
	assert.Nil(t, active, "skipped_photos is not an active checkout")

	kinds := eventKinds(t, db, room.ID)
	assert.Contains(t, kinds, model.EventCheckoutSkipped)
	assert.Contains(t, kinds, model.EventRoomUnlocked)
}

func TestStartCheckout_WithPhotosDefersUnlockUntilConfirm(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)

	c, err := s.StartCheckout(ctx, room.ID, "guest-a", true)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPending, c.Status)
	assert.True(t, c.DepositAmount.Equal(decimal.NewFromInt(100)))

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.HeldBy("guest-a"))

	_, err = s.StartCheckout(ctx, room.ID, "guest-a", true)
	assert.ErrorIs(t, err, model.ErrCheckoutInProgress)

	_, err = s.ConfirmRefund(ctx, room.ID, c.ID, "guest-a", time.Now())
	assert.ErrorIs(t, err, model.ErrNotAwaitingConfirmation)

	_, err = s.RecordComparison(ctx, c.ID, []model.MissingObject{{Label: "lamp"}})
	require.NoError(t, err)

	_, err = s.ConfirmRefund(ctx, room.ID, c.ID, "guest-b", time.Now())
	assert.ErrorIs(t, err, model.ErrNotCheckedIn)

	done, err := s.ConfirmRefund(ctx, room.ID, c.ID, "guest-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusComplete, done.Status)
	assert.True(t, done.ConfirmedByGuest)
	assert.NotNil(t, done.CompletedAt)

	got, err = s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
}

func TestStartCheckout_RequiresLockHolder(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)

	_, err := s.StartCheckout(ctx, room.ID, "guest-b", true)
	assert.ErrorIs(t, err, model.ErrNotCheckedIn)

	_, err = s.StartCheckout(ctx, "missing", "guest-a", true)
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestStartCheckout_SnapshotsDeposit(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)

	c, err := s.StartCheckout(ctx, room.ID, "guest-a", true)
	require.NoError(t, err)

	_, err = s.UpdateDeposit(ctx, room.ID, decimal.NewFromInt(250))
	require.NoError(t, err)

	got, err := s.GetCheckout(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.DepositAmount.Equal(decimal.NewFromInt(100)))
}

func TestRecordComparison_DerivesDeductionAndFreezesAfterComplete(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)
	c, err := s.StartCheckout(ctx, room.ID, "guest-a", true)
	require.NoError(t, err)

	missing := []model.MissingObject{
		{ObjectID: "o1", Label: "lamp", EvidenceRef: "crops/o1.jpg"},
		{ObjectID: "o2", Label: "towel"},
	}
	got, err := s.RecordComparison(ctx, c.ID, missing)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusAwaitingConfirmation, got.Status)
	assert.True(t, got.RefundDeduction.Equal(decimal.NewFromInt(20)))
	assert.Len(t, got.MissingObjects, 2)
	assert.Equal(t, "lamp", got.MissingObjects[0].Label)

	_, err = s.RecordComparison(ctx, c.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "results are recorded once")

	_, err = s.ConfirmRefund(ctx, room.ID, c.ID, "guest-a", time.Now())
	require.NoError(t, err)

	_, err = s.RecordComparison(ctx, c.ID, nil)
	assert.ErrorIs(t, err, model.ErrCheckoutFinalized)

	final, err := s.GetCheckout(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusComplete, final.Status)
	assert.True(t, final.RefundDeduction.Equal(decimal.NewFromInt(20)))
	assert.Len(t, final.MissingObjects, 2)

	_, err = s.RecordComparison(ctx, "missing", nil)
	assert.ErrorIs(t, err, model.ErrCheckoutNotFound)
}

func TestSettleManualRefund(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)
	c, err := s.StartCheckout(ctx, room.ID, "guest-a", false)
	require.NoError(t, err)

	_, err = s.SettleManualRefund(ctx, room.ID, c.ID, decimal.NewFromInt(150), time.Now())
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	got, err := s.SettleManualRefund(ctx, room.ID, c.ID, decimal.NewFromInt(30), time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusComplete, got.Status)
	assert.True(t, got.RefundDeduction.Equal(decimal.NewFromInt(30)))
	assert.False(t, got.ConfirmedByGuest)

	_, err = s.SettleManualRefund(ctx, room.ID, c.ID, decimal.Zero, time.Now())
	assert.ErrorIs(t, err, model.ErrCheckoutFinalized)
}

func TestUploadBatchLifecycle(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)
	c, err := s.StartCheckout(ctx, room.ID, "guest-a", true)
	require.NoError(t, err)

	newBatch := func() *model.UploadBatch {
		return &model.UploadBatch{
			ID:         uuid.NewString(),
			RoomID:     room.ID,
			CheckoutID: c.ID,
			GuestID:    "guest-a",
			Photos: []model.BatchPhoto{
				{Filename: "a.jpg", StorageKey: "k/a.jpg"},
				{Filename: "b.jpg", StorageKey: "k/b.jpg"},
			},
		}
	}

	intruder := newBatch()
	intruder.GuestID = "guest-b"
	assert.ErrorIs(t, s.CreateUploadBatch(ctx, intruder), model.ErrNotCheckedIn)

	batch := newBatch()
	require.NoError(t, s.CreateUploadBatch(ctx, batch))
	got, err := s.GetCheckout(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusUploading, got.Status)

	failed := newBatch()
	require.NoError(t, s.CreateUploadBatch(ctx, failed))
	require.NoError(t, s.FailUploadBatch(ctx, failed.ID, "expired"))
	require.NoError(t, s.FailUploadBatch(ctx, failed.ID, "expired"))
	_, err = s.CompleteUploadBatch(ctx, failed.ID, time.Now())
	assert.ErrorIs(t, err, model.ErrBatchExpired)

	now := time.Now().UTC()
	got, err = s.CompleteUploadBatch(ctx, batch.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusProcessing, got.Status)
	assert.True(t, got.PhotosUploaded)
	assert.Equal(t, 2, got.PhotoCount)
	require.NotNil(t, got.ProcessingStartedAt)

	stored, err := s.GetUploadBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusUploaded, stored.Status)
	assert.Contains(t, eventKinds(t, db, room.ID), model.EventCheckoutCompareRequested)

	_, err = s.GetUploadBatch(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrBatchNotFound)
}

func TestWatchdogQueries(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	room := checkedInRoom(t, s)
	c, err := s.StartCheckout(ctx, room.ID, "guest-a", true)
	require.NoError(t, err)

	batch := &model.UploadBatch{
		ID: uuid.NewString(), RoomID: room.ID, CheckoutID: c.ID, GuestID: "guest-a",
		Photos: []model.BatchPhoto{{Filename: "a.jpg", StorageKey: "k/a.jpg"}},
	}
	require.NoError(t, s.CreateUploadBatch(ctx, batch))
	started := time.Now().UTC().Add(-time.Hour)
	_, err = s.CompleteUploadBatch(ctx, batch.ID, started)
	require.NoError(t, err)

	stale, err := s.StaleCheckouts(ctx, started.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = s.StaleCheckouts(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, c.ID, stale[0].ID)

	requeued, err := s.RequeueComparison(ctx, c.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, requeued.AgentAttempts)

	stale, err = s.StaleCheckouts(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale, "requeue restarts the clock")

	escalated, err := s.EscalateCheckout(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, escalated.Escalated)
	assert.Contains(t, eventKinds(t, db, room.ID), model.EventCheckoutEscalated)

	_, err = s.EscalateCheckout(ctx, c.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stale, err = s.StaleCheckouts(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale, "escalated checkouts are left to the host")

	settled, err := s.SettleManualRefund(ctx, room.ID, c.ID, decimal.NewFromInt(20), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusComplete, settled.Status)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked, "settling an escalated checkout releases the room")
}
