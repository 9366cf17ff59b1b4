// Package board is the in-memory note surface shown to the user. It is the
// pipeline's sink: the pipeline reads its contents for the acceptance gate
// and hands it every accepted note. Users may edit or remove notes, which
// changes what later notes are compared against.
package board

import (
	"strings"
	"sync"

	jerrors "github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/note"
)

// Board is safe for concurrent use.
type Board struct {
	mu    sync.RWMutex
	notes []note.Note

	subMu   sync.Mutex
	subs    map[int]chan note.Note
	nextSub int
}

// New returns an empty board.
func New() *Board {
	return &Board{subs: make(map[int]chan note.Note)}
}

// Contents returns the text of every note on the board, oldest first.
func (b *Board) Contents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.notes))
	for i, n := range b.notes {
		out[i] = n.Content
	}
	return out
}

// Accept adds n and notifies subscribers.
func (b *Board) Accept(n note.Note) {
	b.mu.Lock()
	b.notes = append(b.notes, n)
	b.mu.Unlock()

	b.publish(n)
}

// List returns a copy of the notes, oldest first.
func (b *Board) List() []note.Note {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]note.Note(nil), b.notes...)
}

// Len returns the number of notes.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.notes)
}

// Update replaces the content of the note with id.
func (b *Board) Update(id, content string) (note.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return note.Note{}, jerrors.NewInvalidRequest("content must not be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.index(id)
	if i < 0 {
		return note.Note{}, jerrors.NewNotFound(id)
	}
	b.notes[i].Content = content
	return b.notes[i], nil
}

// Remove deletes the note with id.
func (b *Board) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.index(id)
	if i < 0 {
		return jerrors.NewNotFound(id)
	}
	b.notes = append(b.notes[:i], b.notes[i+1:]...)
	return nil
}

// Subscribe returns a channel receiving every accepted note and a function
// that ends the subscription. A subscriber that falls more than buffer notes
// behind misses notes rather than blocking the pipeline.
func (b *Board) Subscribe(buffer int) (<-chan note.Note, func()) {
	ch := make(chan note.Note, buffer)

	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.subMu.Lock()
			delete(b.subs, id)
			b.subMu.Unlock()
			close(ch)
		})
	}
}

func (b *Board) publish(n note.Note) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// index must be called with mu held.
func (b *Board) index(id string) int {
	for i, n := range b.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
