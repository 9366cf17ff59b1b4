package db

import (
	"database/sql"
	"time"
)

// Journal records sessions and flush decisions for later tuning. Notes are
// never read back from it.
type Journal struct {
	db *sql.DB
}

// NewJournal wraps an initialized database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// DB returns the underlying database.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// SessionStarted records a new session.
func (j *Journal) SessionStarted(id, device string, at time.Time) error {
	return InsertSession(j.db, &Session{ID: id, Device: device, StartedAt: at.UnixMilli()})
}

// SessionEnded records the end of a session.
func (j *Journal) SessionEnded(id string, at time.Time, notes, filtered int) error {
	return FinishSession(j.db, id, at.UnixMilli(), notes, filtered)
}

// Record stores one flush decision.
func (j *Journal) Record(seg Segment) error {
	return InsertSegment(j.db, &seg)
}

// Recent returns the newest segments matching opts.
func (j *Journal) Recent(opts ListOptions) ([]Segment, int, error) {
	return ListSegments(j.db, opts)
}
