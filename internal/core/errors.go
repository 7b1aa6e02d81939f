package core

import "errors"

// State and protocol errors surfaced to clients as typed error codes.
// The signal adapter owns the mapping to wire codes.
var (
	ErrRoleConflict      = errors.New("room already has a teacher")
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotInRoom         = errors.New("participant not in a room")
	ErrRoomClosed        = errors.New("room closed")
	ErrTransportNotFound = errors.New("transport not found")
	ErrTransportNotReady = errors.New("transport not connected")
	ErrNegotiationFailed = errors.New("media negotiation failed")
	ErrAlreadyRunning    = errors.New("exam already running")
	ErrAlreadySubmitted  = errors.New("exam already submitted")
	ErrNoExam            = errors.New("no exam in progress")
	ErrNotTeacher        = errors.New("teacher-only operation")
	ErrNotStudent        = errors.New("student-only operation")
	ErrBadDuration       = errors.New("exam duration must be positive")
	ErrStudentNotFound   = errors.New("addressed student not in room")
)
