package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name  string
		actor Actor
		from  RoomStatus
		to    RoomStatus
		want  bool
	}{
		{"agent acknowledges new room", ActorAgent, RoomStatusCreated, RoomStatusAwaitingPhotos, true},
		{"host cannot skip agent step", ActorHost, RoomStatusCreated, RoomStatusAwaitingPhotos, false},
		{"host uploads photos", ActorHost, RoomStatusAwaitingPhotos, RoomStatusUploading, true},
		{"agent finishes upload", ActorAgent, RoomStatusUploading, RoomStatusReadyToProcess, true},
		{"host adds more photos", ActorHost, RoomStatusReadyToProcess, RoomStatusUploading, true},
		{"host triggers processing", ActorHost, RoomStatusReadyToProcess, RoomStatusProcessing, true},
		{"agent completes detection", ActorAgent, RoomStatusProcessing, RoomStatusComplete, true},
		{"agent asks for review", ActorAgent, RoomStatusProcessing, RoomStatusReview, true},
		{"host approves review", ActorHost, RoomStatusReview, RoomStatusComplete, true},
		{"agent cannot trigger processing", ActorAgent, RoomStatusReadyToProcess, RoomStatusProcessing, false},
		{"host deletes from any state", ActorHost, RoomStatusComplete, RoomStatusDeleting, true},
		{"agent cannot request delete", ActorAgent, RoomStatusComplete, RoomStatusDeleting, false},
		{"deleting is absorbing", ActorHost, RoomStatusDeleting, RoomStatusComplete, false},
		{"deleting twice is rejected", ActorHost, RoomStatusDeleting, RoomStatusDeleting, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.actor, tc.from, tc.to))
		})
	}
}

func TestRoom_HeldByAndAvailable(t *testing.T) {
	guest := "guest-a"
	room := Room{Status: RoomStatusComplete}
	assert.True(t, room.Available())
	assert.False(t, room.HeldBy(guest))

	room.IsLocked = true
	room.LockedByGuestID = &guest
	assert.False(t, room.Available())
	assert.True(t, room.HeldBy(guest))
	assert.False(t, room.HeldBy("guest-b"))
}

func TestCheckoutStatus_IsActive(t *testing.T) {
	assert.True(t, CheckoutStatusPending.IsActive())
	assert.True(t, CheckoutStatusAwaitingConfirmation.IsActive())
	assert.False(t, CheckoutStatusComplete.IsActive())
	assert.False(t, CheckoutStatusSkippedPhotos.IsActive())
}
