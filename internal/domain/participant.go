// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxNameLen = 64

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
	ErrInvalidRole = errors.New("invalid role")
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole validates a wire-level role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher, RoleStudent:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

type ParticipantID string

type ConnStatus string

const (
	ConnActive       ConnStatus = "active"
	ConnDisconnected ConnStatus = "disconnected"
)

type Participant struct {
	ID     ParticipantID `json:"id"`
	Name   string        `json:"name"`
	Role   Role          `json:"role"`
	Status ConnStatus    `json:"-"`
}

// NewParticipant keeps construction and validation in one place so adapters
// never build ad-hoc struct literals.
func NewParticipant(name string, role Role) (*Participant, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if role != RoleTeacher && role != RoleStudent {
		return nil, ErrInvalidRole
	}
	return &Participant{
		ID:     ParticipantID(uuid.NewString()),
		Name:   name,
		Role:   role,
		Status: ConnActive,
	}, nil
}
