package domain

import "errors"

type RoomCode string

const (
	MinRoomCodeLen = 4
	MaxRoomCodeLen = 16
)

var ErrBadRoomCode = errors.New("bad room code")

// ParseRoomCode validates a wire-level room code.
func ParseRoomCode(s string) (RoomCode, error) {
	if len(s) < MinRoomCodeLen || len(s) > MaxRoomCodeLen {
		return "", ErrBadRoomCode
	}
	return RoomCode(s), nil
}
