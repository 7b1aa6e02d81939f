package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

// member pairs participant meta with its signal endpoint and the media
// resources it owns. Destroyed together on leave or room teardown.
type member struct {
	p          *domain.Participant
	conn       SignalConnection
	transports map[domain.TransportID]*domain.Transport
	producers  map[domain.ProducerID]*domain.Producer
}

// Room is the unit of concurrency: every operation mutating its state runs
// under r.mu, so a countdown tick and a concurrent submit cannot race.
// Engine calls are made with the lock released and re-validated on resume
// (see negotiator.go).
type Room struct {
	code domain.RoomCode

	mu      sync.Mutex
	order   []domain.ParticipantID // join order
	members map[domain.ParticipantID]*member
	session *examSession
	closed  bool
}

func NewRoom(code domain.RoomCode) *Room {
	return &Room{
		code:    code,
		members: make(map[domain.ParticipantID]*member),
	}
}

func (r *Room) Code() domain.RoomCode { return r.code }

type TeacherRejoinPolicy string

const (
	TeacherReplace TeacherRejoinPolicy = "replace"
	TeacherReject  TeacherRejoinPolicy = "reject"
)

// JoinResult is everything the caller needs to answer the joiner and fan
// out userJoined, captured atomically with the roster change.
type JoinResult struct {
	Participant *domain.Participant
	Roster      []wire.ParticipantInfo // other members at commit time
	Exam        *wire.ExamSnapshot
	Notify      []Recipient

	// Set when a rejoining teacher replaced a previous identity.
	Replaced           *domain.Participant
	ReplacedConn       SignalConnection
	ReplacedTransports []domain.TransportID
}

func (r *Room) Join(p *domain.Participant, conn SignalConnection, policy TeacherRejoinPolicy) (*JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}

	res := &JoinResult{Participant: p}

	if p.Role == domain.RoleTeacher {
		if old := r.teacherLocked(); old != nil {
			if policy == TeacherReject {
				return nil, ErrRoleConflict
			}
			res.Replaced = old.p
			res.ReplacedConn = old.conn
			res.ReplacedTransports = r.removeLocked(old.p.ID)
		}
	}

	r.members[p.ID] = &member{
		p:          p,
		conn:       conn,
		transports: make(map[domain.TransportID]*domain.Transport),
		producers:  make(map[domain.ProducerID]*domain.Producer),
	}
	r.order = append(r.order, p.ID)

	res.Roster = make([]wire.ParticipantInfo, 0, len(r.members))
	for _, id := range r.order {
		if id == p.ID {
			continue
		}
		m := r.members[id]
		res.Roster = append(res.Roster, wire.ParticipantInfo{
			ID: string(id), Name: m.p.Name, Role: string(m.p.Role),
		})
		res.Notify = append(res.Notify, Recipient{ID: id, Conn: m.conn})
	}
	res.Exam = r.examSnapshotLocked()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).
		Str("participant", string(p.ID)).Str("role", string(p.Role)).Msg("member joined")
	return res, nil
}

// teacherLocked returns the current teacher member, if any.
func (r *Room) teacherLocked() *member {
	for _, m := range r.members {
		if m.p.Role == domain.RoleTeacher {
			return m
		}
	}
	return nil
}

// removeLocked detaches a member and returns the transport ids the caller
// must release through the engine. Producers die with their transports.
func (r *Room) removeLocked(id domain.ParticipantID) []domain.TransportID {
	m, ok := r.members[id]
	if !ok {
		return nil
	}
	var tids []domain.TransportID
	for tid, t := range m.transports {
		t.State = domain.TransportClosed
		tids = append(tids, tid)
	}
	for _, pr := range m.producers {
		pr.State = domain.ProducerClosed
	}
	m.p.Status = domain.ConnDisconnected
	delete(r.members, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return tids
}

type LeaveResult struct {
	Found      bool
	Left       *domain.Participant
	Transports []domain.TransportID
	Notify     []Recipient
	Empty      bool
	ExamActive bool

	// Record is set when this departure closed the session: the leaver was
	// the last student still working while everyone remaining had already
	// finalized.
	Record *SubmissionRecord
}

func (r *Room) Leave(id domain.ParticipantID) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return &LeaveResult{Empty: len(r.members) == 0, ExamActive: r.examActiveLocked()}
	}
	res := &LeaveResult{Found: true, Left: m.p}
	res.Transports = r.removeLocked(id)
	res.Notify = r.recipientsLocked(id)
	if r.examActiveLocked() && r.allStudentsFinalizedLocked() {
		res.Record = r.finalizeLocked(domain.ExamSubmitted)
	}
	res.Empty = len(r.members) == 0
	res.ExamActive = r.examActiveLocked()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).
		Str("participant", string(id)).Msg("member left")
	return res
}

func (r *Room) examActiveLocked() bool {
	return r.session != nil && r.session.status == domain.ExamRunning
}

// recipientsLocked snapshots everyone except exclude, in join order.
func (r *Room) recipientsLocked(exclude domain.ParticipantID) []Recipient {
	out := make([]Recipient, 0, len(r.members))
	for _, id := range r.order {
		if id == exclude {
			continue
		}
		out = append(out, Recipient{ID: id, Conn: r.members[id].conn})
	}
	return out
}

// ProctorRecipients resolves the audience of a proctorMessage: one student,
// or every student when no target is named. Never includes the sender.
func (r *Room) ProctorRecipients(from domain.ParticipantID, target domain.ParticipantID) ([]Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.members[from]
	if !ok {
		return nil, ErrNotInRoom
	}
	if sender.p.Role != domain.RoleTeacher {
		return nil, ErrNotTeacher
	}
	if target != "" {
		m, ok := r.members[target]
		if !ok || m.p.Role != domain.RoleStudent {
			return nil, ErrStudentNotFound
		}
		return []Recipient{{ID: target, Conn: m.conn}}, nil
	}
	var out []Recipient
	for _, id := range r.order {
		m := r.members[id]
		if m.p.Role == domain.RoleStudent {
			out = append(out, Recipient{ID: id, Conn: m.conn})
		}
	}
	return out, nil
}

// MemberCount is used by the rooms listing API.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// markClosedIfIdle flips the room to closed when it holds no members and no
// running exam. A closed room rejects joins so the registry can safely drop
// it; the registry retries the join against a fresh room.
func (r *Room) markClosedIfIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 || r.examActiveLocked() {
		return false
	}
	r.closed = true
	return true
}
