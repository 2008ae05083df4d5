package core

import "errors"

// Error taxonomy surfaced to connection sessions. Each maps to one `error`
// event at the transport boundary; none of these crash a session.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomExists           = errors.New("room already exists")
	ErrInvalidRoomID        = errors.New("room id must match [A-Za-z0-9_-]+")
	ErrInvalidRoomName      = errors.New("room name must be 2-50 characters")
	ErrRoomFull             = errors.New("room is full")
	ErrForbidden            = errors.New("forbidden")
	ErrMessageNotFound      = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
)
