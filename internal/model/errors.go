package model

// DomainError is a business-rule violation. It is returned to callers as-is
// and is never retried.
type DomainError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message, hint string) *DomainError {
	return &DomainError{Code: code, Message: message, Hint: hint}
}

// Check-in and occupancy errors.
var (
	ErrAlreadyCheckedIn = NewDomainError("ALREADY_CHECKED_IN",
		"guest is already checked into another room",
		"Check out of your current room before checking into a new one.")
	ErrRoomOccupied = NewDomainError("ROOM_OCCUPIED",
		"room is already occupied by another guest",
		"This room just became unavailable, please pick another.")
	ErrRoomNotReady = NewDomainError("ROOM_NOT_READY",
		"room is not ready for guests",
		"The host is still preparing this room, please pick another.")
	ErrRoomNotFound = NewDomainError("ROOM_NOT_FOUND",
		"room not found",
		"The room may have been removed by its host.")
	ErrNotCheckedIn = NewDomainError("NOT_CHECKED_IN",
		"guest is not checked into this room",
		"Check into the room before starting checkout.")
)

// Checkout errors.
var (
	ErrNotAwaitingConfirmation = NewDomainError("NOT_AWAITING_CONFIRMATION",
		"checkout is not awaiting confirmation",
		"Your photos are still being reviewed, please wait for the refund summary.")
	ErrCheckoutNotFound = NewDomainError("CHECKOUT_NOT_FOUND",
		"checkout not found", "")
	ErrCheckoutInProgress = NewDomainError("CHECKOUT_IN_PROGRESS",
		"a checkout is already in progress for this room",
		"Finish the current checkout before starting a new one.")
	ErrCheckoutFinalized = NewDomainError("CHECKOUT_FINALIZED",
		"checkout is already complete and cannot change", "")
)

// Room, object and upload errors.
var (
	ErrInvalidTransition = NewDomainError("INVALID_TRANSITION",
		"operation not allowed in the current state", "Refresh and try again.")
	ErrNotRoomOwner = NewDomainError("NOT_ROOM_OWNER",
		"room belongs to another host", "")
	ErrObjectNotFound = NewDomainError("OBJECT_NOT_FOUND",
		"object not found", "")
	ErrBatchNotFound = NewDomainError("BATCH_NOT_FOUND",
		"upload batch not found", "")
	ErrBatchExpired = NewDomainError("BATCH_EXPIRED",
		"upload batch expired before completion",
		"Start a new upload to get fresh upload links.")
	ErrInvalidInput = NewDomainError("INVALID_INPUT",
		"invalid input provided", "")
)

var (
	ErrUnauthorized = NewDomainError("UNAUTHORIZED",
		"missing or invalid bearer token", "Sign in again.")
	ErrForbidden = NewDomainError("FORBIDDEN",
		"this operation is not available to your role", "")
	ErrRateLimited = NewDomainError("RATE_LIMITED",
		"too many requests", "Slow down and try again shortly.")
)
