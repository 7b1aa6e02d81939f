package wire

import "encoding/json"

// Client -> server payloads.

type JoinRoom struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateTransport struct {
	Sender bool `json:"sender"`
}

type ConnectTransport struct {
	TransportID    string          `json:"transportId"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

type Produce struct {
	TransportID   string          `json:"transportId"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

type StartExam struct {
	DurationSeconds int `json:"durationSeconds"`
}

type RecordAnswer struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type SubmitExam struct {
	ExamID        string            `json:"examId"`
	Answers       map[string]string `json:"answers,omitempty"`
	RemainingTime int               `json:"remainingTime"`
}

type ProctorMessage struct {
	Message         string `json:"message"`
	TargetStudentID string `json:"targetStudentId,omitempty"`
}

// Server -> client payloads.

type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type ExamSnapshot struct {
	ExamID           string `json:"examId"`
	Status           string `json:"status"`
	DurationSeconds  int    `json:"durationSeconds"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type RoomJoined struct {
	RoomID       string            `json:"roomId"`
	Participants []ParticipantInfo `json:"participants"`
	Exam         *ExamSnapshot     `json:"examSessionSnapshot,omitempty"`
}

type TransportCreated struct {
	ID             string          `json:"id"`
	ICEParameters  json.RawMessage `json:"iceParameters"`
	ICECandidates  json.RawMessage `json:"iceCandidates"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

type TransportConnected struct {
	TransportID string `json:"transportId"`
	Connected   bool   `json:"connected"`
}

type ProducerCreated struct {
	ProducerID string `json:"producerId"`
}

type NewProducer struct {
	ProducerID    string `json:"producerId"`
	ParticipantID string `json:"participantId"`
	Kind          string `json:"kind"`
}

type UserJoined struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type UserLeft struct {
	UserID string `json:"userId"`
}

type ProctorMessageOut struct {
	Message string `json:"message"`
	From    string `json:"from"`
}

type ExamStarted struct {
	ExamID          string `json:"examId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type ExamExpired struct {
	RemainingTime int `json:"remainingTime"`
}

type ExamSubmitted struct {
	ExamID string `json:"examId"`
}

type AnswerRecorded struct {
	QuestionID string `json:"questionId"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
