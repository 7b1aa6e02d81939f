// Package store provides SubmissionSink implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/core"
)

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS exam_submissions (
	id BIGSERIAL PRIMARY KEY,
	exam_id TEXT NOT NULL,
	room_code TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_seconds INT NOT NULL,
	remaining_seconds INT NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	answers JSONB NOT NULL,
	UNIQUE (exam_id)
)`

// Postgres archives finalized exam submissions, one row per session.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createSubmissionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Archive(ctx context.Context, rec *core.SubmissionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO exam_submissions
			(exam_id, room_code, status, duration_seconds, remaining_seconds, finished_at, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (exam_id) DO NOTHING`,
		string(rec.ExamID), string(rec.RoomCode), string(rec.Status),
		rec.DurationSeconds, rec.RemainingSeconds, rec.FinishedAt, answers,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	log.Info().Str("module", "store.postgres").Str("exam", string(rec.ExamID)).Msg("submission stored")
	return nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}
