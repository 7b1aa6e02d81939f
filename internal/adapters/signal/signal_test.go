package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/baryshev/examroom/internal/adapters/signal"
	"github.com/baryshev/examroom/internal/config"
	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/core/mocks"
	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

type countingSink struct {
	mu      sync.Mutex
	records []*core.SubmissionRecord
}

func (s *countingSink) Archive(_ context.Context, rec *core.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type harness struct {
	reg  *core.Registry
	sink *countingSink
	url  string
}

func newHarness(t *testing.T, tick time.Duration) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng := mocks.NewMockMediaEngine(gomock.NewController(t))
	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.RoomCode, domain.ParticipantID, domain.TransportDirection) (*core.TransportInfo, error) {
			return &core.TransportInfo{
				ID:             domain.TransportID(uuid.NewString()),
				ICEParameters:  json.RawMessage(`{}`),
				ICECandidates:  json.RawMessage(`[]`),
				DTLSParameters: json.RawMessage(`{}`),
			}, nil
		}).AnyTimes()
	eng.EXPECT().ConnectTransport(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	eng.EXPECT().CreateProducer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.TransportID, domain.MediaKind, json.RawMessage) (domain.ProducerID, error) {
			return domain.ProducerID(uuid.NewString()), nil
		}).AnyTimes()
	eng.EXPECT().CloseTransport(gomock.Any()).AnyTimes()

	sink := &countingSink{}
	reg := core.NewRegistry(eng, sink, core.Options{Tick: tick})
	cfg := &config.Config{
		PingPeriod: time.Minute,
		ReadLimit:  65536,
		JoinLimit:  100,
		JoinWindow: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ctl := signal.NewController(ctx, cfg, reg)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{
		reg:  reg,
		sink: sink,
		url:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// wsClient drives one websocket connection with typed envelopes.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T) *wsClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	frame, err := wire.Encode(msgType, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

func (c *wsClient) recv() *wire.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	env, err := wire.Decode(data)
	require.NoError(c.t, err)
	return env
}

func (c *wsClient) expect(msgType string) *wire.Envelope {
	c.t.Helper()
	env := c.recv()
	require.Equal(c.t, msgType, env.Type, "payload: %s", env.Data)
	return env
}

func unmarshal[T any](t *testing.T, env *wire.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (h *harness) join(t *testing.T, room, name, role string) (*wsClient, wire.RoomJoined) {
	t.Helper()
	cl := h.dial(t)
	cl.send(wire.TypeJoinRoom, wire.JoinRoom{Room: room, Username: name, Role: role})
	return cl, unmarshal[wire.RoomJoined](t, cl.expect(wire.TypeRoomJoined))
}

func TestJoinAndRosterOverWire(t *testing.T) {
	h := newHarness(t, time.Hour)

	student, joined := h.join(t, "EXAM001", "alice", "student")
	assert.Equal(t, "EXAM001", joined.RoomID)
	assert.Empty(t, joined.Participants)
	assert.Nil(t, joined.Exam)

	_, joined = h.join(t, "EXAM001", "Teacher001", "teacher")
	require.Len(t, joined.Participants, 1)
	assert.Equal(t, "alice", joined.Participants[0].Name)
	assert.Equal(t, "student", joined.Participants[0].Role)

	// The already-present student hears about the teacher.
	evt := unmarshal[wire.UserJoined](t, student.expect(wire.TypeUserJoined))
	assert.Equal(t, "Teacher001", evt.Name)
	assert.Equal(t, "teacher", evt.Role)
}

func TestJoinValidationOverWire(t *testing.T) {
	h := newHarness(t, time.Hour)

	cl := h.dial(t)
	cl.send(wire.TypeJoinRoom, wire.JoinRoom{Room: "EXAM001", Username: "bob", Role: "proctor"})
	errMsg := unmarshal[wire.Error](t, cl.expect(wire.TypeError))
	assert.Equal(t, wire.CodeInvalidRole, errMsg.Code)

	// The connection survives the rejection; a valid join still works.
	cl.send(wire.TypeJoinRoom, wire.JoinRoom{Room: "EXAM001", Username: "bob", Role: "student"})
	cl.expect(wire.TypeRoomJoined)
}

func TestMessagesBeforeJoinRejected(t *testing.T) {
	h := newHarness(t, time.Hour)

	cl := h.dial(t)
	cl.send(wire.TypeStartExam, wire.StartExam{DurationSeconds: 60})
	errMsg := unmarshal[wire.Error](t, cl.expect(wire.TypeError))
	assert.Equal(t, wire.CodeRoomNotFound, errMsg.Code)
}

func TestMalformedFrame(t *testing.T) {
	h := newHarness(t, time.Hour)

	cl := h.dial(t)
	require.NoError(t, cl.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	errMsg := unmarshal[wire.Error](t, cl.expect(wire.TypeError))
	assert.Equal(t, wire.CodeMalformed, errMsg.Code)
}

func TestNegotiationOverWire(t *testing.T) {
	h := newHarness(t, time.Hour)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	student.expect(wire.TypeUserJoined)

	student.send(wire.TypeCreateTransport, wire.CreateTransport{Sender: true})
	created := unmarshal[wire.TransportCreated](t, student.expect(wire.TypeTransportCreated))
	require.NotEmpty(t, created.ID)

	// produce before connectTransport is refused.
	student.send(wire.TypeProduce, wire.Produce{TransportID: created.ID, Kind: "video"})
	errMsg := unmarshal[wire.Error](t, student.expect(wire.TypeError))
	assert.Equal(t, wire.CodeTransportNotReady, errMsg.Code)

	student.send(wire.TypeConnectTransport, wire.ConnectTransport{
		TransportID:    created.ID,
		DTLSParameters: json.RawMessage(`{"role":"client"}`),
	})
	connected := unmarshal[wire.TransportConnected](t, student.expect(wire.TypeTransportConnected))
	assert.True(t, connected.Connected)
	assert.Equal(t, created.ID, connected.TransportID)

	student.send(wire.TypeProduce, wire.Produce{TransportID: created.ID, Kind: "video"})
	producer := unmarshal[wire.ProducerCreated](t, student.expect(wire.TypeProducerCreated))
	require.NotEmpty(t, producer.ProducerID)

	// Everyone else in the room learns about the new producer.
	evt := unmarshal[wire.NewProducer](t, teacher.expect(wire.TypeNewProducer))
	assert.Equal(t, producer.ProducerID, evt.ProducerID)
	assert.Equal(t, "video", evt.Kind)
}

func TestExamLifecycleOverWire(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	student.expect(wire.TypeUserJoined)

	student.send(wire.TypeStartExam, wire.StartExam{DurationSeconds: 40})
	errMsg := unmarshal[wire.Error](t, student.expect(wire.TypeError))
	assert.Equal(t, wire.CodeNotTeacher, errMsg.Code)

	// 40 ticks at the 5ms test tick: long enough to record an answer,
	// short enough to observe expiry.
	teacher.send(wire.TypeStartExam, wire.StartExam{DurationSeconds: 40})
	started := unmarshal[wire.ExamStarted](t, teacher.expect(wire.TypeExamStarted))
	assert.Equal(t, 40, started.DurationSeconds)
	student.expect(wire.TypeExamStarted)

	student.send(wire.TypeRecordAnswer, wire.RecordAnswer{QuestionID: "q1", Value: "b"})
	ack := unmarshal[wire.AnswerRecorded](t, student.expect(wire.TypeAnswerRecorded))
	assert.Equal(t, "q1", ack.QuestionID)

	// The countdown runs server-side and expires the session for everyone.
	expired := unmarshal[wire.ExamExpired](t, student.expect(wire.TypeExamExpired))
	assert.Equal(t, 0, expired.RemainingTime)
	teacher.expect(wire.TypeExamExpired)

	assert.Eventually(t, func() bool { return h.sink.count() == 1 },
		time.Second, 10*time.Millisecond, "expired session is archived exactly once")
}

func TestSubmitExamOverWire(t *testing.T) {
	h := newHarness(t, time.Hour)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	student.expect(wire.TypeUserJoined)

	teacher.send(wire.TypeStartExam, wire.StartExam{DurationSeconds: 600})
	teacher.expect(wire.TypeExamStarted)
	started := unmarshal[wire.ExamStarted](t, student.expect(wire.TypeExamStarted))

	student.send(wire.TypeSubmitExam, wire.SubmitExam{
		ExamID:  started.ExamID,
		Answers: map[string]string{"q1": "b"},
	})
	submitted := unmarshal[wire.ExamSubmitted](t, student.expect(wire.TypeExamSubmitted))
	assert.Equal(t, started.ExamID, submitted.ExamID)

	// The only student is done, so the session closes room-wide and the
	// teacher hears about it.
	teacher.expect(wire.TypeExamSubmitted)
	assert.Eventually(t, func() bool { return h.sink.count() == 1 },
		time.Second, 10*time.Millisecond)

	student.send(wire.TypeSubmitExam, wire.SubmitExam{ExamID: started.ExamID})
	errMsg := unmarshal[wire.Error](t, student.expect(wire.TypeError))
	assert.Equal(t, wire.CodeAlreadySubmitted, errMsg.Code)
}

func TestProctorMessageOverWire(t *testing.T) {
	h := newHarness(t, time.Hour)

	alice, _ := h.join(t, "EXAM001", "alice", "student")
	bob, _ := h.join(t, "EXAM001", "bob", "student")
	alice.expect(wire.TypeUserJoined)
	teacher, teacherJoined := h.join(t, "EXAM001", "Teacher001", "teacher")
	alice.expect(wire.TypeUserJoined)
	bob.expect(wire.TypeUserJoined)

	var bobID string
	for _, p := range teacherJoined.Participants {
		if p.Name == "bob" {
			bobID = p.ID
		}
	}
	require.NotEmpty(t, bobID)

	// Students cannot proctor.
	alice.send(wire.TypeProctorMessage, wire.ProctorMessage{Message: "psst"})
	errMsg := unmarshal[wire.Error](t, alice.expect(wire.TypeError))
	assert.Equal(t, wire.CodeNotTeacher, errMsg.Code)

	// Targeted message reaches only the named student.
	teacher.send(wire.TypeProctorMessage, wire.ProctorMessage{
		Message:         "eyes on your own screen",
		TargetStudentID: bobID,
	})
	msg := unmarshal[wire.ProctorMessageOut](t, bob.expect(wire.TypeProctorMessage))
	assert.Equal(t, "eyes on your own screen", msg.Message)

	// Broadcast reaches all students. Alice's next message being the
	// broadcast proves the targeted one skipped her.
	teacher.send(wire.TypeProctorMessage, wire.ProctorMessage{Message: "10 minutes left"})
	msg = unmarshal[wire.ProctorMessageOut](t, alice.expect(wire.TypeProctorMessage))
	assert.Equal(t, "10 minutes left", msg.Message)
	bob.expect(wire.TypeProctorMessage)
}

func TestCountdownSurvivesTeacherDisconnect(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	student.expect(wire.TypeUserJoined)

	teacher.send(wire.TypeStartExam, wire.StartExam{DurationSeconds: 100})
	teacher.expect(wire.TypeExamStarted)
	student.expect(wire.TypeExamStarted)

	// The proctor's socket dies mid-exam; the server-side timer keeps
	// running and still expires the session for the students.
	require.NoError(t, teacher.conn.Close())
	student.expect(wire.TypeUserLeft)

	expired := unmarshal[wire.ExamExpired](t, student.expect(wire.TypeExamExpired))
	assert.Equal(t, 0, expired.RemainingTime)
	assert.Eventually(t, func() bool { return h.sink.count() == 1 },
		time.Second, 10*time.Millisecond, "expired session still reaches the sink")
}

func TestStateErrorCodes(t *testing.T) {
	h := newHarness(t, time.Hour)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	student.expect(wire.TypeUserJoined)

	// A well-formed recordAnswer with no session is a state error, not a
	// malformed frame.
	student.send(wire.TypeRecordAnswer, wire.RecordAnswer{QuestionID: "q1", Value: "a"})
	errMsg := unmarshal[wire.Error](t, student.expect(wire.TypeError))
	assert.Equal(t, wire.CodeNoExam, errMsg.Code)

	teacher.send(wire.TypeProctorMessage, wire.ProctorMessage{
		Message:         "hello",
		TargetStudentID: "nope",
	})
	errMsg = unmarshal[wire.Error](t, teacher.expect(wire.TypeError))
	assert.Equal(t, wire.CodeStudentNotFound, errMsg.Code)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	h := newHarness(t, time.Hour)

	student, _ := h.join(t, "EXAM001", "alice", "student")
	teacher, _ := h.join(t, "EXAM001", "Teacher001", "teacher")
	evt := unmarshal[wire.UserJoined](t, student.expect(wire.TypeUserJoined))

	require.NoError(t, teacher.conn.Close())

	left := unmarshal[wire.UserLeft](t, student.expect(wire.TypeUserLeft))
	assert.Equal(t, evt.ID, left.UserID)

	// Once the room drains completely it is torn down.
	require.NoError(t, student.conn.Close())
	assert.Eventually(t, func() bool {
		_, ok := h.reg.Get("EXAM001")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
