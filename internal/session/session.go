// Package session holds the mutable per-session counters shared by the
// segmenter and the capture lifecycle.
package session

import "time"

// State is owned by the session event loop and passed by pointer to the
// components that read or update it.
type State struct {
	// ConsecutiveErrors counts failed or empty transcriptions since the last success.
	ConsecutiveErrors int

	// FallbackUsed is set once the fallback note was flushed for the current outage.
	FallbackUsed bool

	// LastFlush is when the accumulation buffer was last flushed, or the
	// session start.
	LastFlush time.Time

	// SilenceStart is when the current silence began; zero while speaking.
	SilenceStart time.Time
}

// New returns a state for a session starting at now.
func New(now time.Time) *State {
	s := &State{}
	s.Reset(now)
	return s
}

// Reset returns every counter to its start-of-session value.
func (s *State) Reset(now time.Time) {
	*s = State{LastFlush: now}
}

// SinceFlush returns the time elapsed since the last flush.
func (s *State) SinceFlush(now time.Time) time.Duration {
	return now.Sub(s.LastFlush)
}

// Silent reports whether a silence period is running.
func (s *State) Silent() bool {
	return !s.SilenceStart.IsZero()
}
