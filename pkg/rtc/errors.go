package rtc

import "errors"

var (
	ErrRoomIDRequired = errors.New("room id is required")
	ErrEmptyMessage   = errors.New("chat message is empty")
	ErrSessionClosed  = errors.New("session has already closed")
)
