package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"keytrail/internal/hotkey"
	"keytrail/internal/savedlog"
)

// Store represents the SQLite metadata store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertSavedLog records a finalized log and returns its ID. Saving the same
// session twice replaces the earlier row.
func (s *Store) InsertSavedLog(rec *SavedLog) (int64, error) {
	info := rec.Info.Normalize()
	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO saved_logs (session_id, source_path, root_folder, boss_folder, difficulty_folder, checksum, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			source_path = excluded.source_path,
			root_folder = excluded.root_folder,
			boss_folder = excluded.boss_folder,
			difficulty_folder = excluded.difficulty_folder,
			checksum = excluded.checksum,
			saved_at = excluded.saved_at`,
		rec.SessionID, info.SourcePath, info.RootFolder, info.BossFolder, info.DifficultyFolder, rec.Checksum, savedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert saved log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

const savedLogColumns = `id, session_id, source_path, root_folder, boss_folder, difficulty_folder, checksum, saved_at`

// LatestSavedLog returns the most recently saved log, or nil if none exists.
func (s *Store) LatestSavedLog() (*SavedLog, error) {
	row := s.db.QueryRow(`SELECT ` + savedLogColumns + ` FROM saved_logs ORDER BY saved_at DESC, id DESC LIMIT 1`)
	rec, err := scanSavedLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest saved log: %w", err)
	}
	return rec, nil
}

// GetSavedLog returns the saved log for a session, or nil if none exists.
func (s *Store) GetSavedLog(sessionID string) (*SavedLog, error) {
	row := s.db.QueryRow(`SELECT `+savedLogColumns+` FROM saved_logs WHERE session_id = ?`, sessionID)
	rec, err := scanSavedLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get saved log: %w", err)
	}
	return rec, nil
}

// ListSavedLogs returns up to limit saved logs, newest first. A non-positive
// limit returns all of them.
func (s *Store) ListSavedLogs(limit int) ([]SavedLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+savedLogColumns+` FROM saved_logs ORDER BY saved_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query saved logs: %w", err)
	}
	defer rows.Close()

	var out []SavedLog
	for rows.Next() {
		rec, err := scanSavedLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved log: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved logs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSavedLog(row scanner) (*SavedLog, error) {
	var rec SavedLog
	var info savedlog.Info
	var savedAt int64
	if err := row.Scan(&rec.ID, &rec.SessionID, &info.SourcePath, &info.RootFolder, &info.BossFolder, &info.DifficultyFolder, &rec.Checksum, &savedAt); err != nil {
		return nil, err
	}
	rec.Info = info
	rec.SavedAt = time.Unix(0, savedAt)
	return &rec, nil
}

// InsertActivations stores a session's debug hotkey history in one transaction.
func (s *Store) InsertActivations(sessionID string, acts []hotkey.Activation) error {
	if len(acts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO hotkey_activations (session_id, ordinal, key_id, arena, prev_ts, ts)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, a := range acts {
		if _, err := stmt.Exec(sessionID, i, a.KeyID, a.Arena, a.PrevTimestamp, a.Timestamp); err != nil {
			return fmt.Errorf("insert activation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ActivationsForSession returns a session's activations in recording order.
func (s *Store) ActivationsForSession(sessionID string) ([]hotkey.Activation, error) {
	rows, err := s.db.Query(`
		SELECT key_id, arena, prev_ts, ts
		FROM hotkey_activations
		WHERE session_id = ?
		ORDER BY ordinal ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query activations: %w", err)
	}
	defer rows.Close()

	var out []hotkey.Activation
	for rows.Next() {
		var a hotkey.Activation
		if err := rows.Scan(&a.KeyID, &a.Arena, &a.PrevTimestamp, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activations: %w", err)
	}
	return out, nil
}

// PutSessionStats inserts or replaces a session summary.
func (s *Store) PutSessionStats(st *SessionStats) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO session_stats (session_id, started_ms, ended_ms, records, warnings, write_errors, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.SessionID, st.StartedMs, st.EndedMs, st.Records, st.Warnings, st.WriteErrors, st.Dropped,
	)
	if err != nil {
		return fmt.Errorf("put session stats: %w", err)
	}
	return nil
}

// GetSessionStats returns a session summary, or nil if none exists.
func (s *Store) GetSessionStats(sessionID string) (*SessionStats, error) {
	var st SessionStats
	err := s.db.QueryRow(`
		SELECT session_id, started_ms, ended_ms, records, warnings, write_errors, dropped
		FROM session_stats WHERE session_id = ?`, sessionID,
	).Scan(&st.SessionID, &st.StartedMs, &st.EndedMs, &st.Records, &st.Warnings, &st.WriteErrors, &st.Dropped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session stats: %w", err)
	}
	return &st, nil
}
