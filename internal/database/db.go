package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/Alias1177/signalrank/models"
)

// DB persists ranked runs to PostgreSQL. The sink is optional: callers skip
// it entirely when no DSN is configured.
type DB struct {
	*sql.DB
}

// New opens a connection from a DSN and ensures the schema exists.
func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ranking_runs (
			run_id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			total INT NOT NULL,
			selected INT NOT NULL,
			rejected INT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ranked_results (
			run_id UUID NOT NULL REFERENCES ranking_runs(run_id),
			rank INT NOT NULL,
			submission_id TEXT NOT NULL,
			source TEXT NOT NULL,
			asset TEXT NOT NULL,
			direction TEXT NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL,
			user_confidence DOUBLE PRECISION NOT NULL,
			structural_reliability DOUBLE PRECISION NOT NULL,
			confidence_reliability DOUBLE PRECISION NOT NULL,
			entry_score DOUBLE PRECISION,
			final_score DOUBLE PRECISION NOT NULL,
			reliability TEXT NOT NULL,
			selected BOOLEAN NOT NULL,
			gate_reason TEXT,
			PRIMARY KEY (run_id, rank)
		)
	`)
	return err
}

// StoreRun inserts a ranked batch atomically and returns the run ID.
func (db *DB) StoreRun(ctx context.Context, ranked []models.RankedResult, rejectedCount int) (string, error) {
	runID := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	selectedCount := 0
	for _, row := range ranked {
		if row.Selected {
			selectedCount++
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_runs (run_id, created_at, total, selected, rejected)
		VALUES ($1, $2, $3, $4, $5)
	`, runID, time.Now().UTC(), len(ranked), selectedCount, rejectedCount)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranked_results (
			run_id, rank, submission_id, source, asset, direction, issued_at,
			user_confidence, structural_reliability, confidence_reliability,
			entry_score, final_score, reliability, selected, gate_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range ranked {
		var entryScore sql.NullFloat64
		if score, ok := row.Breakdown.EntryScore(); ok {
			entryScore = sql.NullFloat64{Float64: score, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			runID,
			row.Rank,
			row.Prediction.SubmissionID,
			row.Prediction.Source,
			row.Prediction.Asset,
			string(row.Prediction.Direction),
			row.Prediction.IssuedAt.UTC(),
			row.Prediction.Confidence,
			row.Breakdown.StructuralReliability,
			row.Breakdown.ConfidenceReliability,
			entryScore,
			row.Breakdown.FinalScore,
			row.Breakdown.Reliability,
			row.Selected,
			nullString(row.GateReason),
		)
		if err != nil {
			return "", fmt.Errorf("inserting result %d: %w", row.Rank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
