// Package store persists usage events and scan watermarks in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrBusy marks a query that timed out waiting on the database lock.
var ErrBusy = errors.New("database busy")

// Store is the durable record of usage events and per-file watermarks.
// WAL mode lets the IPC server read while the indexer writes; lock waits
// are bounded by a 30s busy timeout after which queries fail with ErrBusy.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// wrapBusy converts driver lock-timeout errors into ErrBusy.
func wrapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// UpsertMessage inserts or replaces a record by msg_id. Overwriting is
// not an error; re-indexed files simply win.
func (s *Store) UpsertMessage(ctx context.Context, rec model.MessageRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO messages
		(msg_id, session_id, ts, input, output, reasoning, cache_read, cache_write, model, provider_id, model_id, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`,
		rec.MsgID, rec.SessionID, rec.Ts,
		rec.Input, rec.Output, rec.Reasoning, rec.CacheRead, rec.CacheWrite,
		rec.Model, rec.ProviderID, rec.ModelID, rec.Role,
	)
	return wrapBusy(err)
}

// Watermark returns the stored mtime for a path, if any.
func (s *Store) Watermark(ctx context.Context, path string) (int64, bool, error) {
	var mtimeNs int64
	err := s.db.QueryRowContext(ctx, "SELECT mtime_ns FROM files WHERE path = ?", path).Scan(&mtimeNs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapBusy(err)
	}
	return mtimeNs, true, nil
}

// SetWatermark records the last-seen mtime for a path. Called only after
// the file's record has been upserted.
func (s *Store) SetWatermark(ctx context.Context, path string, mtimeNs int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO files (path, mtime_ns) VALUES (?, ?)", path, mtimeNs)
	return wrapBusy(err)
}

// MessageCount returns the raw (non-deduplicated) row count.
func (s *Store) MessageCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	return n, wrapBusy(err)
}

// LatestSessionID returns the session of the most recently timestamped record.
func (s *Store) LatestSessionID(ctx context.Context) (string, bool, error) {
	var sid sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id FROM messages ORDER BY ts DESC LIMIT 1").Scan(&sid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapBusy(err)
	}
	return sid.String, sid.Valid, nil
}

// SessionStart returns the earliest timestamp within a session.
func (s *Store) SessionStart(ctx context.Context, sessionID string) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(ts) FROM messages WHERE session_id = ?", sessionID).Scan(&ts)
	if err != nil {
		return 0, false, wrapBusy(err)
	}
	return ts.Int64, ts.Valid, nil
}

// EarliestTs returns the oldest record timestamp in the store.
func (s *Store) EarliestTs(ctx context.Context) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MIN(ts) FROM messages").Scan(&ts)
	if err != nil {
		return 0, false, wrapBusy(err)
	}
	return ts.Int64, ts.Valid, nil
}

// BackfillRoles fills in the role column for legacy rows that were
// indexed before role extraction existed: rows with token usage become
// assistant, the rest user. Returns the number of rows fixed.
func (s *Store) BackfillRoles(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET role = 'assistant'
		WHERE role IS NULL
		AND (input > 0 OR output > 0 OR reasoning > 0 OR cache_read > 0 OR cache_write > 0)`)
	if err != nil {
		return 0, wrapBusy(err)
	}
	fixed, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, "UPDATE messages SET role = 'user' WHERE role IS NULL")
	if err != nil {
		return fixed, wrapBusy(err)
	}
	n, _ := res.RowsAffected()
	return fixed + n, nil
}
