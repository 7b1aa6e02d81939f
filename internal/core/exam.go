package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

type answerKey struct {
	student  domain.ParticipantID
	question string
}

// examSession is the authoritative timer/answer/status record of one exam
// instance. All access goes through the owning Room's mutex, which is what
// makes the running -> {submitted,expired} transition a compare-and-set:
// whichever of "timer fires" and "manual submit" observes running first
// wins, the loser becomes a no-op.
type examSession struct {
	id        domain.ExamID
	duration  int // seconds
	remaining int // seconds, non-increasing while running
	status    domain.ExamStatus
	answers   map[answerKey]domain.Answer
	finalized map[domain.ParticipantID]bool
}

func (r *Room) examSnapshotLocked() *wire.ExamSnapshot {
	s := r.session
	if s == nil {
		return nil
	}
	return &wire.ExamSnapshot{
		ExamID:           string(s.id),
		Status:           string(s.status),
		DurationSeconds:  s.duration,
		RemainingSeconds: s.remaining,
	}
}

type ExamStartResult struct {
	ExamID          domain.ExamID
	DurationSeconds int
	Notify          []Recipient
}

// StartExam begins the room's exam session. Teacher-only; a session that is
// not yet terminal cannot be restarted.
func (r *Room) StartExam(pid domain.ParticipantID, durationSeconds int) (*ExamStartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[pid]
	if !ok {
		return nil, ErrNotInRoom
	}
	if m.p.Role != domain.RoleTeacher {
		return nil, ErrNotTeacher
	}
	if durationSeconds <= 0 {
		return nil, ErrBadDuration
	}
	if r.session != nil && !r.session.status.Terminal() {
		return nil, ErrAlreadyRunning
	}

	r.session = &examSession{
		id:        domain.ExamID(uuid.NewString()),
		duration:  durationSeconds,
		remaining: durationSeconds,
		status:    domain.ExamRunning,
		answers:   make(map[answerKey]domain.Answer),
		finalized: make(map[domain.ParticipantID]bool),
	}
	log.Info().Str("module", "core.exam").Str("room", string(r.code)).
		Str("exam", string(r.session.id)).Int("duration_s", durationSeconds).Msg("exam started")
	return &ExamStartResult{
		ExamID:          r.session.id,
		DurationSeconds: durationSeconds,
		Notify:          r.recipientsLocked(pid),
	}, nil
}

// RecordAnswer writes one last-write-wins ledger entry for the calling
// student. Rejected once the session left the running state.
func (r *Room) RecordAnswer(pid domain.ParticipantID, questionID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[pid]
	if !ok {
		return ErrNotInRoom
	}
	if m.p.Role != domain.RoleStudent {
		return ErrNotStudent
	}
	s := r.session
	if s == nil {
		return ErrNoExam
	}
	if s.status.Terminal() {
		return ErrAlreadySubmitted
	}
	if s.finalized[pid] {
		return ErrAlreadySubmitted
	}
	s.answers[answerKey{student: pid, question: questionID}] = domain.Answer{
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return nil
}

type SubmitResult struct {
	ExamID    domain.ExamID
	RoomFinal bool              // the whole session reached submitted
	Record    *SubmissionRecord // non-nil exactly once, on RoomFinal
	Notify    []Recipient       // everyone else, when RoomFinal
}

// SubmitExam finalizes the calling student's contribution, merging any
// answers carried with the submit. When every remaining student is
// finalized — or the teacher forces closure — the session becomes
// submitted. Re-submission after the student's own final submit is
// rejected with ErrAlreadySubmitted.
func (r *Room) SubmitExam(pid domain.ParticipantID, answers map[string]string) (*SubmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[pid]
	if !ok {
		return nil, ErrNotInRoom
	}
	s := r.session
	if s == nil {
		return nil, ErrNoExam
	}
	if s.status.Terminal() {
		return nil, ErrAlreadySubmitted
	}

	res := &SubmitResult{ExamID: s.id}

	if m.p.Role == domain.RoleTeacher {
		// Teacher submit = force closure for the whole room.
		res.Record = r.finalizeLocked(domain.ExamSubmitted)
		res.RoomFinal = true
		res.Notify = r.recipientsLocked(pid)
		return res, nil
	}

	if s.finalized[pid] {
		return nil, ErrAlreadySubmitted
	}
	now := time.Now()
	for q, v := range answers {
		s.answers[answerKey{student: pid, question: q}] = domain.Answer{Value: v, UpdatedAt: now}
	}
	s.finalized[pid] = true

	if r.allStudentsFinalizedLocked() {
		res.Record = r.finalizeLocked(domain.ExamSubmitted)
		res.RoomFinal = true
		res.Notify = r.recipientsLocked(pid)
	}
	return res, nil
}

func (r *Room) allStudentsFinalizedLocked() bool {
	students := 0
	for _, m := range r.members {
		if m.p.Role != domain.RoleStudent {
			continue
		}
		students++
		if !r.session.finalized[m.p.ID] {
			return false
		}
	}
	return students > 0
}

type TickResult struct {
	Done      bool // countdown loop should stop
	Expired   bool
	Remaining int
	Record    *SubmissionRecord
	Notify    []Recipient
}

// Tick advances the countdown by one second inside the room's critical
// section. Ticks are scoped to the session they were scheduled for: after a
// manual submit won the terminal transition, or a fresh session replaced
// this one, remaining scheduled ticks become no-ops.
func (r *Room) Tick(id domain.ExamID) *TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session
	if s == nil || s.id != id || s.status != domain.ExamRunning {
		return &TickResult{Done: true}
	}
	s.remaining--
	if s.remaining > 0 {
		return &TickResult{Remaining: s.remaining}
	}
	s.remaining = 0
	rec := r.finalizeLocked(domain.ExamExpired)
	return &TickResult{
		Done:    true,
		Expired: true,
		Record:  rec,
		Notify:  r.recipientsLocked(""),
	}
}

// finalizeLocked performs the single terminal transition and builds the
// submission record. Returns nil when another path already finalized the
// session, so the persistence sink sees exactly one write.
func (r *Room) finalizeLocked(status domain.ExamStatus) *SubmissionRecord {
	s := r.session
	if s == nil || s.status.Terminal() {
		return nil
	}
	s.status = status

	rec := &SubmissionRecord{
		ExamID:           s.id,
		RoomCode:         r.code,
		Status:           status,
		DurationSeconds:  s.duration,
		RemainingSeconds: s.remaining,
		FinishedAt:       time.Now(),
		Answers:          make([]AnswerRecord, 0, len(s.answers)),
	}
	for k, a := range s.answers {
		rec.Answers = append(rec.Answers, AnswerRecord{
			StudentID:  k.student,
			QuestionID: k.question,
			Value:      a.Value,
			UpdatedAt:  a.UpdatedAt,
		})
	}
	sort.Slice(rec.Answers, func(i, j int) bool {
		if rec.Answers[i].StudentID != rec.Answers[j].StudentID {
			return rec.Answers[i].StudentID < rec.Answers[j].StudentID
		}
		return rec.Answers[i].QuestionID < rec.Answers[j].QuestionID
	})

	log.Info().Str("module", "core.exam").Str("room", string(r.code)).
		Str("exam", string(s.id)).Str("status", string(status)).
		Int("answers", len(rec.Answers)).Msg("exam finalized")
	return rec
}

// ExamStatus reports the current session status for tests and the rooms API.
func (r *Room) ExamStatus() domain.ExamStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return domain.ExamNotStarted
	}
	return r.session.status
}
