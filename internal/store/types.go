// Package store persists saved-log metadata and session side tables in SQLite.
package store

import (
	"time"

	"keytrail/internal/savedlog"
)

// SavedLog is one finalized session log.
type SavedLog struct {
	ID        int64
	SessionID string
	Info      savedlog.Info
	Checksum  string // hex SHA-256 of the file at save time
	SavedAt   time.Time
}

// SessionStats summarizes one recording session.
type SessionStats struct {
	SessionID   string
	StartedMs   int64
	EndedMs     int64
	Records     int64
	Warnings    int64
	WriteErrors int64
	Dropped     int64
}
