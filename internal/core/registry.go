package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

// Options tune registry policy; zero values fall back to defaults.
type Options struct {
	TeacherRejoin TeacherRejoinPolicy
	Tick          time.Duration // countdown granularity, wall-clock second in production
}

// Registry maps room codes to rooms, owns creation-on-first-join and
// teardown-on-empty, and coordinates the engine and the persistence sink
// around room state transitions. Rooms are independent units of
// concurrency; the registry lock only guards the map.
type Registry struct {
	engine MediaEngine
	sink   SubmissionSink
	policy TeacherRejoinPolicy
	tick   time.Duration

	mu     sync.RWMutex
	rooms  map[domain.RoomCode]*Room
	notify NotifyFunc
}

func NewRegistry(engine MediaEngine, sink SubmissionSink, opts Options) *Registry {
	if opts.TeacherRejoin != TeacherReject {
		opts.TeacherRejoin = TeacherReplace
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	return &Registry{
		engine: engine,
		sink:   sink,
		policy: opts.TeacherRejoin,
		tick:   opts.Tick,
		rooms:  make(map[domain.RoomCode]*Room),
		notify: func([]Recipient, string, any) {},
	}
}

// SetNotifier wires the signal adapter's fan-out for timer-driven events.
func (g *Registry) SetNotifier(fn NotifyFunc) {
	if fn != nil {
		g.notify = fn
	}
}

func (g *Registry) Engine() MediaEngine { return g.engine }

func (g *Registry) getOrCreate(code domain.RoomCode) *Room {
	g.mu.RLock()
	room, ok := g.rooms[code]
	g.mu.RUnlock()
	if ok {
		return room
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok = g.rooms[code]; ok {
		return room
	}
	room = NewRoom(code)
	g.rooms[code] = room
	log.Info().Str("module", "core.registry").Str("room", string(code)).Msg("room created")
	return room
}

// Get returns an existing room.
func (g *Registry) Get(code domain.RoomCode) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	return room, ok
}

// Join admits a participant, creating the room on first join. When the
// teacher-replace policy evicted a previous teacher, its engine resources
// are released here.
func (g *Registry) Join(code domain.RoomCode, name string, roleStr string, conn SignalConnection) (*Room, *JoinResult, error) {
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return nil, nil, err
	}
	p, err := domain.NewParticipant(name, role)
	if err != nil {
		return nil, nil, err
	}

	for {
		room := g.getOrCreate(code)
		res, err := room.Join(p, conn, g.policy)
		if err == ErrRoomClosed {
			// Lost a race with teardown; the next getOrCreate makes a fresh room.
			continue
		}
		if err != nil {
			g.removeIfIdle(room)
			return nil, nil, err
		}
		for _, tid := range res.ReplacedTransports {
			g.engine.CloseTransport(tid)
		}
		return room, res, nil
	}
}

// Leave removes a participant, releases its media resources and tears the
// room down once it is empty with no running exam. Idempotent.
func (g *Registry) Leave(room *Room, pid domain.ParticipantID) *LeaveResult {
	res := room.Leave(pid)
	for _, tid := range res.Transports {
		g.engine.CloseTransport(tid)
	}
	if res.Record != nil {
		// The departure left only finalized students, which closed the session.
		g.archive(res.Record)
		g.notify(res.Notify, wire.TypeExamSubmitted, wire.ExamSubmitted{ExamID: string(res.Record.ExamID)})
	}
	if res.Empty && !res.ExamActive {
		g.removeIfIdle(room)
	}
	return res
}

func (g *Registry) removeIfIdle(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room.markClosedIfIdle() {
		delete(g.rooms, room.Code())
		log.Info().Str("module", "core.registry").Str("room", string(room.Code())).Msg("room removed")
	}
}

// StartExam starts the session and its countdown goroutine. The countdown
// serializes with every other room operation through the room mutex. ctx
// must be server-lifetime, not connection-bound: the timer outlives the
// teacher's socket.
func (g *Registry) StartExam(ctx context.Context, room *Room, pid domain.ParticipantID, durationSeconds int) (*ExamStartResult, error) {
	res, err := room.StartExam(pid, durationSeconds)
	if err != nil {
		return nil, err
	}
	go g.countdown(ctx, room, res.ExamID)
	return res, nil
}

// countdown drives one session's ticks. The exam id pins the goroutine to
// its own session, so a leftover ticker from a finished exam cannot drive a
// restarted one.
func (g *Registry) countdown(ctx context.Context, room *Room, id domain.ExamID) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := room.Tick(id)
			if res.Expired {
				g.archive(res.Record)
				g.notify(res.Notify, wire.TypeExamExpired, wire.ExamExpired{RemainingTime: 0})
				g.removeIfIdle(room)
			}
			if res.Done {
				return
			}
		}
	}
}

// SubmitExam records a student's (or the teacher's forced) submission and
// archives the session when it reached room-wide submitted.
func (g *Registry) SubmitExam(room *Room, pid domain.ParticipantID, answers map[string]string) (*SubmitResult, error) {
	res, err := room.SubmitExam(pid, answers)
	if err != nil {
		return nil, err
	}
	if res.RoomFinal {
		g.archive(res.Record)
	}
	return res, nil
}

// archive hands one finalized session to the sink. The record is produced
// exactly once by the terminal transition, so a sink failure is logged,
// not retried into a duplicate.
func (g *Registry) archive(rec *SubmissionRecord) {
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.sink.Archive(ctx, rec); err != nil {
		log.Error().Err(err).Str("module", "core.registry").
			Str("exam", string(rec.ExamID)).Msg("archive failed")
		return
	}
	log.Info().Str("module", "core.registry").Str("exam", string(rec.ExamID)).
		Str("status", string(rec.Status)).Msg("submission archived")
}

type RoomInfo struct {
	Code        domain.RoomCode   `json:"code"`
	MemberCount int               `json:"memberCount"`
	ExamStatus  domain.ExamStatus `json:"examStatus"`
}

// List snapshots all rooms for the HTTP API.
func (g *Registry) List() []RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RoomInfo, 0, len(g.rooms))
	for code, r := range g.rooms {
		out = append(out, RoomInfo{
			Code:        code,
			MemberCount: r.MemberCount(),
			ExamStatus:  r.ExamStatus(),
		})
	}
	return out
}
