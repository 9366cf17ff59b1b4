package db

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/jot/internal/errors"
)

// Segment outcomes, one per flush decision.
const (
	OutcomeAccepted       = "accepted"
	OutcomeLowQuality     = "low_quality"
	OutcomeExactDuplicate = "exact_duplicate"
	OutcomeNearDuplicate  = "near_duplicate"
	OutcomeBoardDuplicate = "board_duplicate"
)

// Session is one recording session.
type Session struct {
	ID        string `json:"id"`
	Device    string `json:"device"`
	StartedAt int64  `json:"started_at"`
	EndedAt   *int64 `json:"ended_at,omitempty"`
	Notes     int    `json:"notes"`
	Filtered  int    `json:"filtered"`
}

// Segment is one flushed buffer and what became of it. Timestamps are unix
// milliseconds.
type Segment struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Words     int     `json:"words"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	Outcome   string  `json:"outcome"`
	Detail    string  `json:"detail,omitempty"`
	NoteID    string  `json:"note_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// ListOptions filters ListSegments. Zero values mean no filter.
type ListOptions struct {
	SessionID string
	Outcome   string
	Limit     int
	Offset    int
}

// DefaultListLimit and MaxListLimit bound ListSegments pages.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// InsertSession stores a new session.
func InsertSession(db *sql.DB, s *Session) error {
	_, err := db.Exec(
		`INSERT INTO sessions (id, device, started_at, notes, filtered) VALUES (?, ?, ?, 0, 0)`,
		s.ID, s.Device, s.StartedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FinishSession records the end of a session and its totals.
func FinishSession(db *sql.DB, id string, endedAt int64, notes, filtered int) error {
	result, err := db.Exec(
		`UPDATE sessions SET ended_at = ?, notes = ?, filtered = ? WHERE id = ?`,
		endedAt, notes, filtered, id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// GetSession retrieves a session by ID.
func GetSession(db *sql.DB, id string) (*Session, error) {
	row := db.QueryRow(
		`SELECT id, device, started_at, ended_at, notes, filtered FROM sessions WHERE id = ?`, id,
	)

	var (
		s       Session
		endedAt sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.Device, &s.StartedAt, &endedAt, &s.Notes, &s.Filtered)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Int64
	}
	return &s, nil
}

// InsertSegment stores a flush decision and sets seg.ID.
func InsertSegment(db *sql.DB, seg *Segment) error {
	result, err := db.Exec(`
		INSERT INTO segments (
			session_id, text, words, score, reason, outcome, detail, note_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seg.SessionID, seg.Text, seg.Words, seg.Score, seg.Reason, seg.Outcome,
		toNullString(seg.Detail), toNullString(seg.NoteID), seg.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	seg.ID = id
	return nil
}

// ListSegments returns matching segments newest first, and the total number
// of matches ignoring limit and offset.
func ListSegments(db *sql.DB, opts ListOptions) ([]Segment, int, error) {
	var (
		where []string
		args  []any
	)
	if opts.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, opts.Outcome)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM segments"+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset := max(opts.Offset, 0)

	query := `
		SELECT id, session_id, text, words, score, reason, outcome, detail, note_id, created_at
		FROM segments` + clause + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	segments := []Segment{}
	for rows.Next() {
		var (
			seg    Segment
			detail sql.NullString
			noteID sql.NullString
		)
		if err := rows.Scan(
			&seg.ID, &seg.SessionID, &seg.Text, &seg.Words, &seg.Score,
			&seg.Reason, &seg.Outcome, &detail, &noteID, &seg.CreatedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		seg.Detail = detail.String
		seg.NoteID = noteID.String
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return segments, total, nil
}

// toNullString stores empty strings as NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
