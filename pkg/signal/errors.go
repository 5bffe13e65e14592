package signal

import "errors"

var (
	// ErrRoomNotFound join or signaling referenced a room that does not exist
	ErrRoomNotFound = errors.New("couldn't join room, invalid room id")
	// ErrRoomFull a third participant tried to join a two-party room
	ErrRoomFull = errors.New("room full, maximum capacity is 2")
	// ErrNoPendingOffer answer or candidate arrived with no live negotiation
	ErrNoPendingOffer = errors.New("no pending offer for this room")
	// ErrStaleOffer answer references an offer that has been superseded
	ErrStaleOffer = errors.New("answer references a superseded offer")
	// ErrUnknownTarget destination connection is not the other room member
	ErrUnknownTarget = errors.New("target is not a member of this room")
	// ErrInvalidTransition the call state machine rejected an event
	ErrInvalidTransition = errors.New("invalid call state transition")
)
