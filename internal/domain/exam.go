package domain

import "time"

type ExamID string

type ExamStatus string

const (
	ExamNotStarted ExamStatus = "not-started"
	ExamRunning    ExamStatus = "running"
	ExamSubmitted  ExamStatus = "submitted"
	ExamExpired    ExamStatus = "expired"
)

// Terminal reports whether no further status transitions are allowed.
func (s ExamStatus) Terminal() bool {
	return s == ExamSubmitted || s == ExamExpired
}

// Answer is the last-write-wins value for one (student, question) pair.
type Answer struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Exam is a catalog entry: what a teacher schedules ahead of a session.
type Exam struct {
	ID           ExamID     `json:"id"`
	Title        string     `json:"title"`
	Duration     int        `json:"duration"` // minutes
	Questions    []Question `json:"questions"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	CreatedAt    time.Time  `json:"createdAt"`
	RoomCode     RoomCode   `json:"roomCode"`
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"` // multiple-choice, essay
	Options []Option `json:"options,omitempty"`
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
