package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/baryshev/examroom/internal/domain"
)

// Frame is a ready-to-send wire payload.
type Frame []byte

// SignalConnection abstracts the per-participant messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// TransportInfo carries the engine-provided negotiation parameters returned
// to the client in transportCreated.
type TransportInfo struct {
	ID             domain.TransportID
	ICEParameters  json.RawMessage
	ICECandidates  json.RawMessage
	DTLSParameters json.RawMessage
}

// MediaEngine is the capability interface to the external media stack.
// The core never looks inside the negotiation parameters; it only sequences
// the calls and owns the resulting identifiers.
type MediaEngine interface {
	CreateTransport(ctx context.Context, room domain.RoomCode, owner domain.ParticipantID, dir domain.TransportDirection) (*TransportInfo, error)
	ConnectTransport(ctx context.Context, id domain.TransportID, dtlsParameters json.RawMessage) error
	CreateProducer(ctx context.Context, transport domain.TransportID, kind domain.MediaKind, rtpParameters json.RawMessage) (domain.ProducerID, error)
	CloseTransport(id domain.TransportID)
}

// AnswerRecord is one ledger entry in a finalized submission.
type AnswerRecord struct {
	StudentID  domain.ParticipantID `json:"studentId"`
	QuestionID string               `json:"questionId"`
	Value      string               `json:"value"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// SubmissionRecord is handed to the persistence sink exactly once per
// finalized exam session.
type SubmissionRecord struct {
	ExamID           domain.ExamID     `json:"examId"`
	RoomCode         domain.RoomCode   `json:"roomCode"`
	Status           domain.ExamStatus `json:"status"`
	DurationSeconds  int               `json:"durationSeconds"`
	RemainingSeconds int               `json:"remainingSeconds"`
	FinishedAt       time.Time         `json:"finishedAt"`
	Answers          []AnswerRecord    `json:"answers"`
}

// SubmissionSink persists finalized exam submissions.
type SubmissionSink interface {
	Archive(ctx context.Context, rec *SubmissionRecord) error
}

// Recipient is a delivery target captured under the room lock at the moment
// an event is committed, so fan-out reflects exactly the roster at commit.
type Recipient struct {
	ID   domain.ParticipantID
	Conn SignalConnection
}

// NotifyFunc lets the core emit timer-driven events (exam expiry) through
// the signal adapter without knowing its transport.
type NotifyFunc func(rcpts []Recipient, msgType string, data any)
