package domain

type (
	TransportID string
	ProducerID  string
)

type TransportDirection string

const (
	DirectionSend    TransportDirection = "send"
	DirectionReceive TransportDirection = "receive"
)

type TransportState string

const (
	TransportCreated    TransportState = "created"
	TransportConnecting TransportState = "connecting"
	TransportConnected  TransportState = "connected"
	TransportClosed     TransportState = "closed"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind validates a wire-level kind string.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case MediaAudio, MediaVideo:
		return MediaKind(s), true
	default:
		return "", false
	}
}

// Transport is a negotiated media channel owned by one participant.
type Transport struct {
	ID        TransportID
	Owner     ParticipantID
	Direction TransportDirection
	State     TransportState
}

type ProducerState string

const (
	ProducerActive ProducerState = "active"
	ProducerClosed ProducerState = "closed"
)

// Producer is a media stream flowing over a connected Transport.
type Producer struct {
	ID        ProducerID
	Transport TransportID
	Kind      MediaKind
	State     ProducerState
}
