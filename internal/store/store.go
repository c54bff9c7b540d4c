// Package store persists finished task transcripts to PostgreSQL. A
// transcript is the terminal TaskResult only; nothing passing through the
// credential path is ever written here.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/observability"
)

// DBPool abstracts the pgxpool.Pool so tests can mock it.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL transcript sink.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates the store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.GetLogger()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// Migrate creates the transcripts table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transcripts (
			task_id     UUID PRIMARY KEY,
			input       TEXT NOT NULL,
			action      TEXT NOT NULL,
			status      TEXT NOT NULL,
			response    TEXT NOT NULL,
			error_kind  TEXT NOT NULL DEFAULT '',
			iterations  INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}
	return nil
}

const insertTranscriptSQL = `
	INSERT INTO transcripts
		(task_id, input, action, status, response, error_kind, iterations, duration_ms, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// SaveTranscript records one terminal task result.
func (s *Store) SaveTranscript(ctx context.Context, result agent.TaskResult) error {
	_, err := s.pool.Exec(ctx, insertTranscriptSQL,
		result.TaskID,
		result.Input,
		string(result.Action),
		string(result.Status),
		result.Response,
		string(result.ErrorKind),
		result.Iterations,
		result.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	s.log.Debug("transcript saved", zap.String("task_id", result.TaskID))
	return nil
}
