// Package history keeps an optional sqlite log of execution results. It is
// bookkeeping only; a run is correct without it.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge/pkg/types"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL,
    operation_id TEXT NOT NULL,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    error_detail TEXT,
    output_path TEXT,
    instruction TEXT,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_video ON results(video_id);
`

// Record is one stored execution result.
type Record struct {
	VideoID     string
	Instruction string
	Result      types.ExecutionResult
	CreatedAt   time.Time
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create history directory")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set %s", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create history schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append logs the results of one run.
func (s *Store) Append(ctx context.Context, videoID, instruction string, results []types.ExecutionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin history transaction")
	}

	now := time.Now().UTC()
	for _, r := range results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO results (video_id, operation_id, status, attempts, error_detail, output_path, instruction, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			videoID, r.OperationID, string(r.Status), r.Attempts, r.ErrorDetail, r.OutputPath, instruction, now,
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to insert history record")
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit history")
}

// List returns stored records, newest first, optionally filtered by video.
func (s *Store) List(ctx context.Context, videoID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT video_id, operation_id, status, attempts, error_detail, output_path, instruction, created_at
	          FROM results`
	args := []any{}
	if videoID != "" {
		query += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(
			&rec.VideoID, &rec.Result.OperationID, &status, &rec.Result.Attempts,
			&rec.Result.ErrorDetail, &rec.Result.OutputPath, &rec.Instruction, &rec.CreatedAt,
		); err != nil {
			return nil, errors.WithStack(err)
		}
		rec.Result.Status = types.Status(status)
		records = append(records, rec)
	}
	return records, errors.WithStack(rows.Err())
}
