// Package segment decides when accumulated speech becomes a note.
//
// The Segmenter is pure: it reads level samples, the buffer's word count and
// the session state, and returns a Reason. Time is always passed in.
package segment

import (
	"time"

	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/session"
)

// State is the segmenter's view of the speaker.
type State int

const (
	Idle State = iota
	Listening
	SilencePending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case SilencePending:
		return "silence_pending"
	default:
		return "unknown"
	}
}

// Reason says why the buffer should be flushed. ReasonNone means keep going.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonPause    Reason = "pause"
	ReasonLength   Reason = "length"
	ReasonStale    Reason = "stale"
	ReasonShutdown Reason = "shutdown"
	ReasonFallback Reason = "fallback"
)

// Config holds the segmentation thresholds.
type Config struct {
	SilenceLevel   float64
	SilenceSamples int
	Pause          time.Duration
	MinGap         time.Duration
	Stale          time.Duration
	MinWords       int
	MaxWords       int
}

// DefaultConfig returns the thresholds used for live speech.
func DefaultConfig() Config {
	return FromConfig(config.DefaultConfig())
}

// FromConfig reads the thresholds from application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		SilenceLevel:   cfg.MinSilenceLevel,
		SilenceSamples: 5,
		Pause:          config.Millis(cfg.PauseMS),
		MinGap:         config.Millis(cfg.MinNoteGapMS),
		Stale:          config.Millis(cfg.StaleMS),
		MinWords:       cfg.MinWords,
		MaxWords:       cfg.MaxWords,
	}
}

// Segmenter applies the pause, length, staleness and shutdown rules.
type Segmenter struct {
	cfg   Config
	state State
}

// New returns an idle segmenter.
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Start begins a session at now.
func (s *Segmenter) Start(st *session.State, now time.Time) {
	st.LastFlush = now
	st.SilenceStart = time.Time{}
	s.state = Listening
}

// Observe handles one level sample. recent holds the newest levels, oldest
// first, including the one just taken. words is the buffer's word count.
func (s *Segmenter) Observe(recent []float64, words int, st *session.State, now time.Time) Reason {
	if s.state == Idle {
		return ReasonNone
	}

	if s.silent(recent) {
		if s.state != SilencePending {
			s.state = SilencePending
			st.SilenceStart = now
		}
	} else {
		s.state = Listening
		st.SilenceStart = time.Time{}
	}

	if s.lengthDue(words, st, now) {
		return ReasonLength
	}

	if s.state == SilencePending &&
		now.Sub(st.SilenceStart) >= s.cfg.Pause &&
		words >= s.cfg.MinWords &&
		st.SinceFlush(now) >= s.cfg.MinGap {
		return ReasonPause
	}
	return ReasonNone
}

// FragmentArrived handles a transcript fragment that was just appended.
// words is the buffer's word count after appending.
func (s *Segmenter) FragmentArrived(words int, st *session.State, now time.Time) Reason {
	if s.state == Idle {
		return ReasonNone
	}
	if s.lengthDue(words, st, now) {
		return ReasonLength
	}
	// Staleness also needs MinWords, so a one or two word fragment is held
	// until a pause or stop instead of being flushed on its own.
	if st.SinceFlush(now) > s.cfg.Stale && words > 0 && words >= s.cfg.MinWords {
		return ReasonStale
	}
	return ReasonNone
}

// Flushed records a flush at now.
func (s *Segmenter) Flushed(st *session.State, now time.Time) {
	st.LastFlush = now
}

// Stop ends the session. It returns ReasonShutdown when words remain buffered.
func (s *Segmenter) Stop(words int) Reason {
	s.state = Idle
	if words > 0 {
		return ReasonShutdown
	}
	return ReasonNone
}

func (s *Segmenter) lengthDue(words int, st *session.State, now time.Time) bool {
	return words >= s.cfg.MaxWords && st.SinceFlush(now) > s.cfg.MinGap
}

// silent reports whether the newest SilenceSamples levels are all below the
// silence level. Fewer samples never count as silence.
func (s *Segmenter) silent(recent []float64) bool {
	n := s.cfg.SilenceSamples
	if n <= 0 || len(recent) < n {
		return false
	}
	for _, v := range recent[len(recent)-n:] {
		if v >= s.cfg.SilenceLevel {
			return false
		}
	}
	return true
}
