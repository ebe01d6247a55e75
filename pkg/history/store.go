// Package history keeps past executions in SQLite so they can be listed and
// inspected after the process that ran them is gone.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/hooks"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

var ErrNotFound = errors.New("execution not found")

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Summary is one row of the execution list.
type Summary struct {
	ID          string
	CommandText string
	Status      command.ExecutionStatus
	Completion  float64
	Accuracy    float64
	StepCount   int
	StartedAt   time.Time
	EndedAt     *time.Time
}

// Store persists execution snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the history database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record implements hooks.Sink. Every snapshot overwrites the previous row
// for the same execution; failures are logged, never returned to the engine.
func (s *Store) Record(snapshot *command.Execution, final bool) {
	if err := s.Save(context.Background(), snapshot); err != nil {
		logger.WarnCF("history", "Failed to save execution", map[string]interface{}{
			"execution_id": snapshot.ID,
			"final":        final,
			"error":        err.Error(),
		})
	}
}

// Save upserts a redacted copy of exec.
func (s *Store) Save(ctx context.Context, exec *command.Execution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(exec.ID) == "" {
		return fmt.Errorf("execution id is required")
	}

	clean := hooks.RedactExecution(exec)
	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	blob := encoder.EncodeAll(raw, nil)

	var endedAt sql.NullInt64
	if clean.EndTime != nil {
		endedAt = sql.NullInt64{Int64: toMillis(*clean.EndTime), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO executions (
		   id, command_text, status, completion, accuracy, step_count,
		   started_at, ended_at, updated_at, snapshot
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   completion = excluded.completion,
		   accuracy = excluded.accuracy,
		   step_count = excluded.step_count,
		   ended_at = excluded.ended_at,
		   updated_at = excluded.updated_at,
		   snapshot = excluded.snapshot`,
		clean.ID,
		clean.CommandText,
		string(clean.OverallStatus),
		clean.CompletionPercentage,
		clean.AccuracyPercentage,
		len(clean.Steps),
		toMillis(clean.StartTime),
		endedAt,
		toMillis(time.Now()),
		blob,
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// Get returns the latest stored snapshot of one execution.
func (s *Store) Get(ctx context.Context, id string) (*command.Execution, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var blob []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT snapshot FROM executions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}

	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var exec command.Execution
	if err := json.Unmarshal(raw, &exec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &exec, nil
}

// List returns the most recent executions first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, command_text, status, completion, accuracy, step_count, started_at, ended_at
		 FROM executions
		 ORDER BY started_at DESC, id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			status    string
			startedAt int64
			endedAt   sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &sum.CommandText, &status, &sum.Completion, &sum.Accuracy, &sum.StepCount, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		sum.Status = command.ExecutionStatus(status)
		sum.StartedAt = fromMillis(startedAt)
		if endedAt.Valid {
			t := fromMillis(endedAt.Int64)
			sum.EndedAt = &t
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}
