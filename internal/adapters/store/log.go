package store

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/core"
)

// LogSink is the dev-mode sink: finalized submissions only hit the log.
type LogSink struct{}

func (LogSink) Archive(_ context.Context, rec *core.SubmissionRecord) error {
	log.Info().Str("module", "store.log").
		Str("exam", string(rec.ExamID)).
		Str("room", string(rec.RoomCode)).
		Str("status", string(rec.Status)).
		Int("remaining_s", rec.RemainingSeconds).
		Int("answers", len(rec.Answers)).
		Msg("submission archived")
	return nil
}
