// Package wire is the single source of truth for the signaling protocol:
// envelope framing, message types, payload shapes and error codes shared by
// the server core and the websocket adapter.
package wire

import "encoding/json"

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server message types.
const (
	TypeJoinRoom         = "joinRoom"
	TypeCreateTransport  = "createWebRtcTransport"
	TypeConnectTransport = "connectTransport"
	TypeProduce          = "produce"
	TypeStartExam        = "startExam"
	TypeRecordAnswer     = "recordAnswer"
	TypeSubmitExam       = "submitExam"
	TypeProctorMessage   = "proctorMessage"
)

// Server -> client message types.
const (
	TypeRoomJoined         = "roomJoined"
	TypeTransportCreated   = "transportCreated"
	TypeTransportConnected = "transportConnected"
	TypeProducerCreated    = "producerCreated"
	TypeNewProducer        = "newProducer"
	TypeUserJoined         = "userJoined"
	TypeUserLeft           = "userLeft"
	TypeExamStarted        = "examStarted"
	TypeExamExpired        = "examExpired"
	TypeExamSubmitted      = "examSubmitted"
	TypeAnswerRecorded     = "answerRecorded"
	TypeError              = "error"
)

// Error codes surfaced to clients.
const (
	CodeInvalidRole       = "InvalidRole"
	CodeRoleConflict      = "RoleConflict"
	CodeRoomNotFound      = "RoomNotFound"
	CodeTransportNotReady = "TransportNotReady"
	CodeNegotiationFailed = "NegotiationFailed"
	CodeAlreadyRunning    = "AlreadyRunning"
	CodeAlreadySubmitted  = "AlreadySubmitted"
	CodeNotTeacher        = "NotTeacher"
	CodeNoExam            = "NoExam"
	CodeStudentNotFound   = "StudentNotFound"
	CodeMalformed         = "Malformed"
)

// Encode marshals a typed payload into a ready-to-send frame.
func Encode(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw})
}

// Decode splits a frame into its envelope. The payload stays raw so each
// handler can unmarshal its own shape.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
