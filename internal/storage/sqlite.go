// Package storage provides the SQLite implementation of CallStore.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kotaehq/kotae/internal/models"
)

// SQLiteStore implements CallStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS calls (
		id TEXT PRIMARY KEY,
		call_sid TEXT NOT NULL,
		caller TEXT,
		org TEXT NOT NULL,
		transcript TEXT,
		reply TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_calls_org ON calls(org);
	CREATE INDEX IF NOT EXISTS idx_calls_call_sid ON calls(call_sid);
	CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateCall inserts a call record, assigning an ID and timestamp if unset.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *models.CallRecord) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, call_sid, caller, org, transcript, reply, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.CallSID, call.Caller, call.Org, call.Transcript, call.Reply, call.CreatedAt,
	)
	return err
}

// GetCall returns a call record by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*models.CallRecord, error) {
	return s.getCall(ctx, `SELECT id, call_sid, caller, org, transcript, reply, created_at
		 FROM calls WHERE id = ?`, id)
}

// GetCallBySID returns the most recent call record for a telephony call SID.
func (s *SQLiteStore) GetCallBySID(ctx context.Context, callSID string) (*models.CallRecord, error) {
	return s.getCall(ctx, `SELECT id, call_sid, caller, org, transcript, reply, created_at
		 FROM calls WHERE call_sid = ? ORDER BY created_at DESC LIMIT 1`, callSID)
}

func (s *SQLiteStore) getCall(ctx context.Context, query, arg string) (*models.CallRecord, error) {
	var call models.CallRecord
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&call.ID, &call.CallSID, &call.Caller, &call.Org,
		&call.Transcript, &call.Reply, &call.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("call not found: %s", arg)
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// ListCalls returns call records for an organization with offset and limit,
// newest first. An empty org matches all organizations.
func (s *SQLiteStore) ListCalls(ctx context.Context, org string, offset, limit int) ([]*models.CallRecord, error) {
	query := `SELECT id, call_sid, caller, org, transcript, reply, created_at
		 FROM calls WHERE (? = '' OR org = ?) ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, org, org, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*models.CallRecord
	for rows.Next() {
		var call models.CallRecord
		if err := rows.Scan(&call.ID, &call.CallSID, &call.Caller, &call.Org,
			&call.Transcript, &call.Reply, &call.CreatedAt); err != nil {
			return nil, err
		}
		calls = append(calls, &call)
	}
	return calls, rows.Err()
}

// CountCalls returns the number of calls recorded for an organization.
// An empty org counts all organizations.
func (s *SQLiteStore) CountCalls(ctx context.Context, org string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calls WHERE (? = '' OR org = ?)`, org, org).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
