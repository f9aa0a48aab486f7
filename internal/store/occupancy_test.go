package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcheck-backend/internal/model"
)

func TestCheckIn_ClaimsFreeRoom(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	room := seedRoom(t, s, "R101", model.RoomStatusComplete)
	now := time.Now().UTC().Truncate(time.Second)

	got, err := s.CheckIn(ctx, room.ID, "guest-a", "Alice", now)
	require.NoError(t, err)

	assert.True(t, got.IsLocked)
	require.NotNil(t, got.LockedByGuestID)
	assert.Equal(t, "guest-a", *got.LockedByGuestID)
	require.NotNil(t, got.LockedByGuestName)
	assert.Equal(t, "Alice", *got.LockedByGuestName)
	require.NotNil(t, got.LockedAt)
	assert.True(t, now.Equal(*got.LockedAt))
	assert.Contains(t, eventKinds(t, db, room.ID), model.EventRoomCheckedIn)

	current, err := s.RoomForGuest(ctx, "guest-a")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, room.ID, current.ID)
}

func TestCheckIn_Preconditions(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	ready := seedRoom(t, s, "R101", model.RoomStatusComplete)
	other := seedRoom(t, s, "R102", model.RoomStatusComplete)
	notReady := seedRoom(t, s, "R103", model.RoomStatusProcessing)
	now := time.Now()

	_, err := s.CheckIn(ctx, ready.ID, "guest-a", "Alice", now)
	require.NoError(t, err)

	t.Run("second guest on a locked room", func(t *testing.T) {
		_, err := s.CheckIn(ctx, ready.ID, "guest-b", "Bob", now)
		assert.ErrorIs(t, err, model.ErrRoomOccupied)

		room, err := s.GetRoom(ctx, ready.ID)
		require.NoError(t, err)
		assert.True(t, room.HeldBy("guest-a"), "lock holder must not change")
	})

	t.Run("same guest on a second room", func(t *testing.T) {
		_, err := s.CheckIn(ctx, other.ID, "guest-a", "Alice", now)
		assert.ErrorIs(t, err, model.ErrAlreadyCheckedIn)

		room, err := s.GetRoom(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, room.IsLocked)
	})

	t.Run("room not ready", func(t *testing.T) {
		_, err := s.CheckIn(ctx, notReady.ID, "guest-c", "Carol", now)
		assert.ErrorIs(t, err, model.ErrRoomNotReady)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := s.CheckIn(ctx, "missing", "guest-c", "Carol", now)
		assert.ErrorIs(t, err, model.ErrRoomNotFound)
	})
}

func TestCheckIn_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	room := seedRoom(t, s, "R101", model.RoomStatusComplete)

	const guests = 8
	var wg sync.WaitGroup
	errs := make([]error, guests)
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CheckIn(ctx, room.ID, fmt.Sprintf("guest-%d", i), "Guest", time.Now())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, model.ErrRoomOccupied):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestUnlock_IsIdempotent(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	room := seedRoom(t, s, "R101", model.RoomStatusComplete)
	_, err := s.CheckIn(ctx, room.ID, "guest-a", "Alice", time.Now())
	require.NoError(t, err)

	released, err := s.Unlock(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, released)
	first, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)

	released, err = s.Unlock(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, released)
	second, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)

	assert.False(t, second.IsLocked)
	assert.Nil(t, second.LockedByGuestID)
	assert.Nil(t, second.LockedByGuestName)
	assert.Nil(t, second.LockedAt)
	assert.Equal(t, first.IsLocked, second.IsLocked)

	unlocked := 0
	for _, kind := range eventKinds(t, db, room.ID) {
		if kind == model.EventRoomUnlocked {
			unlocked++
		}
	}
	assert.Equal(t, 1, unlocked, "only a real release is announced")

	_, err = s.Unlock(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}
