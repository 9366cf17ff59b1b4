package note

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Note is a single accepted piece of speech, handed to the sink on emission.
// Placement and color belong to whoever renders it.
type Note struct {
	// ID is a ULID that uniquely identifies this note
	ID string `json:"id"`

	// Content is the cleaned note text
	Content string `json:"content"`

	// RawTranscript is the buffered transcript the note was built from
	RawTranscript string `json:"raw_transcript,omitempty"`

	// CreatedAt is when the note was accepted
	CreatedAt time.Time `json:"created_at"`
}

// New builds a note for raw transcript text accepted at now.
func New(raw string, now time.Time) (Note, error) {
	id, err := NewID(now)
	if err != nil {
		return Note{}, err
	}
	return Note{
		ID:            id,
		Content:       Clean(raw),
		RawTranscript: raw,
		CreatedAt:     now,
	}, nil
}

// NewID generates a new ULID timestamped at t.
func NewID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
