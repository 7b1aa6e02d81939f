package core

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baryshev/examroom/internal/domain"
)

const (
	roomCodeLen     = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Catalog is the in-memory exam store behind the REST API: scheduled exams
// with their question sets and the room codes participants rendezvous on.
type Catalog struct {
	mu    sync.RWMutex
	exams map[domain.ExamID]*domain.Exam
	codes map[domain.RoomCode]bool
}

func NewCatalog() *Catalog {
	return &Catalog{
		exams: make(map[domain.ExamID]*domain.Exam),
		codes: make(map[domain.RoomCode]bool),
	}
}

// Create schedules a new exam with a unique room code.
func (c *Catalog) Create(title string, durationMinutes int, questions []domain.Question, scheduledFor time.Time) *domain.Exam {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scheduledFor.IsZero() {
		scheduledFor = time.Now()
	}
	exam := &domain.Exam{
		ID:           domain.ExamID(uuid.NewString()),
		Title:        title,
		Duration:     durationMinutes,
		Questions:    questions,
		ScheduledFor: scheduledFor,
		CreatedAt:    time.Now(),
		RoomCode:     c.newRoomCodeLocked(),
	}
	c.exams[exam.ID] = exam
	return exam
}

func (c *Catalog) newRoomCodeLocked() domain.RoomCode {
	for {
		b := make([]byte, roomCodeLen)
		for i := range b {
			b[i] = roomCodeCharset[rand.IntN(len(roomCodeCharset))]
		}
		code := domain.RoomCode(b)
		if !c.codes[code] {
			c.codes[code] = true
			return code
		}
	}
}

func (c *Catalog) Get(id domain.ExamID) (*domain.Exam, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exam, ok := c.exams[id]
	return exam, ok
}

func (c *Catalog) List() []*domain.Exam {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Exam, 0, len(c.exams))
	for _, e := range c.exams {
		out = append(out, e)
	}
	return out
}
