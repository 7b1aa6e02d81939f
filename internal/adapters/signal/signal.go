package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/config"
	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the websocket side of the protocol: one connection per
// participant, envelope dispatch, and fan-out on behalf of the registry.
type Controller struct {
	ctx     context.Context
	cfg     *config.Config
	reg     *core.Registry
	limiter *joinLimiter
}

// NewController binds the controller to the server-lifetime ctx. Work a
// connection starts but does not own (the exam countdown) runs on that ctx,
// so it survives the initiating socket.
func NewController(ctx context.Context, cfg *config.Config, reg *core.Registry) *Controller {
	ctl := &Controller{
		ctx:     ctx,
		cfg:     cfg,
		reg:     reg,
		limiter: newJoinLimiter(cfg.JoinLimit, cfg.JoinWindow),
	}
	reg.SetNotifier(ctl.Fanout)
	return ctl
}

// wsConn wraps a websocket with a buffered send channel so slow readers
// never block the room critical section.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// client tracks one connection's room binding. A participant belongs to at
// most one room for the connection's lifetime.
type client struct {
	ctx  context.Context
	conn *wsConn
	key  string // rate-limiter key, stable per connection

	mu   sync.Mutex
	room *core.Room
	pid  domain.ParticipantID
}

func (cl *client) bind(room *core.Room, pid domain.ParticipantID) {
	cl.mu.Lock()
	cl.room, cl.pid = room, pid
	cl.mu.Unlock()
}

func (cl *client) session() (*core.Room, domain.ParticipantID, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.room, cl.pid, cl.room != nil
}

// take clears the binding and returns it, so disconnect cleanup runs once.
func (cl *client) take() (*core.Room, domain.ParticipantID, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	room, pid := cl.room, cl.pid
	cl.room, cl.pid = nil, ""
	return room, pid, room != nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the HTTP request and runs the connection until the
// socket dies, then performs participant cleanup.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := &wsConn{conn: ws, send: make(chan core.Frame, 32)}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := &client{ctx: ctx, conn: conn, key: uuid.NewString()}

	log.Info().Str("module", "signal").Str("remote", ws.RemoteAddr().String()).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, cl)
	ctl.disconnect(cl)
}

// disconnect releases everything the participant owned and tells the room.
// Idempotent: the binding is taken exactly once.
func (ctl *Controller) disconnect(cl *client) {
	cl.conn.Close()
	ctl.limiter.forget(cl.key)
	room, pid, ok := cl.take()
	if !ok {
		return
	}
	res := ctl.reg.Leave(room, pid)
	if res.Found {
		ctl.Fanout(res.Notify, wire.TypeUserLeft, wire.UserLeft{UserID: string(pid)})
	}
}

func (ctl *Controller) dispatch(cl *client, data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad json")
		return
	}

	if env.Type == wire.TypeJoinRoom {
		ctl.handleJoinRoom(cl, env.Data)
		return
	}

	room, pid, ok := cl.session()
	if !ok {
		ctl.sendErr(cl.conn, wire.CodeRoomNotFound, "join a room first")
		return
	}

	switch env.Type {
	case wire.TypeCreateTransport:
		ctl.handleCreateTransport(cl, room, pid, env.Data)
	case wire.TypeConnectTransport:
		ctl.handleConnectTransport(cl, room, pid, env.Data)
	case wire.TypeProduce:
		ctl.handleProduce(cl, room, pid, env.Data)
	case wire.TypeStartExam:
		ctl.handleStartExam(cl, room, pid, env.Data)
	case wire.TypeRecordAnswer:
		ctl.handleRecordAnswer(cl, room, pid, env.Data)
	case wire.TypeSubmitExam:
		ctl.handleSubmitExam(cl, room, pid, env.Data)
	case wire.TypeProctorMessage:
		ctl.handleProctorMessage(cl, room, pid, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
		ctl.sendErr(cl.conn, wire.CodeMalformed, "unknown message type: "+env.Type)
	}
}

func (ctl *Controller) sendJSON(c core.SignalConnection, msgType string, data any) {
	frame, err := wire.Encode(msgType, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("encode")
		return
	}
	if err := c.TrySend(frame); err != nil {
		// The dead socket's own read loop runs the full cleanup.
		log.Warn().Err(err).Str("module", "signal").Str("type", msgType).Msg("send failed, closing")
		c.Close()
	}
}

func (ctl *Controller) sendErr(c core.SignalConnection, code, msg string) {
	ctl.sendJSON(c, wire.TypeError, wire.Error{Code: code, Message: msg})
}

func (ctl *Controller) replyErr(c core.SignalConnection, err error) {
	ctl.sendErr(c, codeFor(err), err.Error())
}

// Fanout delivers one event to a recipient snapshot. Best-effort per
// connection: a failed send closes only that member's socket.
func (ctl *Controller) Fanout(rcpts []core.Recipient, msgType string, data any) {
	if len(rcpts) == 0 {
		return
	}
	frame, err := wire.Encode(msgType, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("encode")
		return
	}
	for _, rc := range rcpts {
		if err := rc.Conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "signal").
				Str("participant", string(rc.ID)).Str("type", msgType).Msg("fanout drop, closing")
			rc.Conn.Close()
		}
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRole), errors.Is(err, core.ErrNotStudent):
		return wire.CodeInvalidRole
	case errors.Is(err, core.ErrRoleConflict):
		return wire.CodeRoleConflict
	case errors.Is(err, core.ErrRoomNotFound),
		errors.Is(err, core.ErrNotInRoom),
		errors.Is(err, core.ErrRoomClosed):
		return wire.CodeRoomNotFound
	case errors.Is(err, core.ErrTransportNotReady):
		return wire.CodeTransportNotReady
	case errors.Is(err, core.ErrNegotiationFailed), errors.Is(err, core.ErrTransportNotFound):
		return wire.CodeNegotiationFailed
	case errors.Is(err, core.ErrAlreadyRunning):
		return wire.CodeAlreadyRunning
	case errors.Is(err, core.ErrAlreadySubmitted):
		return wire.CodeAlreadySubmitted
	case errors.Is(err, core.ErrNotTeacher):
		return wire.CodeNotTeacher
	case errors.Is(err, core.ErrNoExam):
		return wire.CodeNoExam
	case errors.Is(err, core.ErrStudentNotFound):
		return wire.CodeStudentNotFound
	default:
		return wire.CodeMalformed
	}
}

// sendDeadline bounds a single websocket write.
const sendDeadline = 5 * time.Second
