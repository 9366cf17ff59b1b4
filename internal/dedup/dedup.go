// Package dedup keeps the per-session duplicate registries.
package dedup

import (
	"github.com/hpungsan/jot/internal/note"
	"github.com/hpungsan/jot/internal/similarity"
)

// MaxRemembered caps the emitted-text list used by the word-overlap gate.
const MaxRemembered = 256

// Registry holds the exact set of normalized note texts and the recent
// emitted texts of one session. It is owned by the session event loop and is
// not safe for concurrent use.
type Registry struct {
	exact   map[string]struct{}
	emitted []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{exact: make(map[string]struct{})}
}

// Seen reports whether text, normalized, was already accepted this session.
func (r *Registry) Seen(text string) bool {
	key := note.Normalize(text)
	if key == "" {
		return false
	}
	_, ok := r.exact[key]
	return ok
}

// NearDuplicate reports whether text overlaps any emitted text by word set.
// It returns the matching text when one is found.
func (r *Registry) NearDuplicate(text string) (string, bool) {
	for i := len(r.emitted) - 1; i >= 0; i-- {
		if similarity.IsWordDuplicate(text, r.emitted[i]) {
			return r.emitted[i], true
		}
	}
	return "", false
}

// Remember records text in both registries. The emitted list drops its
// oldest entry once it holds MaxRemembered texts; the exact set is
// unbounded because a session's distinct notes are few.
func (r *Registry) Remember(text string) {
	key := note.Normalize(text)
	if key == "" {
		return
	}
	r.exact[key] = struct{}{}
	if len(r.emitted) == MaxRemembered {
		copy(r.emitted, r.emitted[1:])
		r.emitted = r.emitted[:MaxRemembered-1]
	}
	r.emitted = append(r.emitted, text)
}

// Len returns the number of texts in the emitted list.
func (r *Registry) Len() int {
	return len(r.emitted)
}

// Reset clears both registries.
func (r *Registry) Reset() {
	clear(r.exact)
	r.emitted = r.emitted[:0]
}

// Conflicts reports whether text is an edit-distance duplicate of any of
// existing, the contents currently held by the sink.
func Conflicts(text string, existing []string) (string, bool) {
	for _, e := range existing {
		if similarity.IsEditDuplicate(text, e) {
			return e, true
		}
	}
	return "", false
}
