package segment

import (
	"testing"
	"time"

	"github.com/hpungsan/jot/internal/session"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

var (
	quiet = []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	loud  = []float64{0.3, 0.3, 0.3, 0.3, 0.3}
)

func started() (*Segmenter, *session.State) {
	s := New(DefaultConfig())
	st := session.New(t0)
	s.Start(st, t0)
	return s, st
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SilenceLevel != 0.02 || cfg.SilenceSamples != 5 {
		t.Errorf("silence = %v/%d", cfg.SilenceLevel, cfg.SilenceSamples)
	}
	if cfg.Pause != 400*time.Millisecond || cfg.MinGap != 800*time.Millisecond || cfg.Stale != 3*time.Second {
		t.Errorf("timings = %v %v %v", cfg.Pause, cfg.MinGap, cfg.Stale)
	}
	if cfg.MinWords != 3 || cfg.MaxWords != 150 {
		t.Errorf("words = %d/%d", cfg.MinWords, cfg.MaxWords)
	}
}

func TestObserve_IdleDoesNothing(t *testing.T) {
	s := New(DefaultConfig())
	st := session.New(t0)

	if got := s.Observe(quiet, 200, st, at(5000)); got != ReasonNone {
		t.Errorf("Observe while idle = %q", got)
	}
	if s.State() != Idle {
		t.Errorf("State = %v", s.State())
	}
}

func TestObserve_SilenceTransitions(t *testing.T) {
	s, st := started()

	s.Observe(loud, 0, st, at(100))
	if s.State() != Listening {
		t.Fatalf("State = %v, want listening", s.State())
	}

	s.Observe(quiet, 0, st, at(200))
	if s.State() != SilencePending {
		t.Fatalf("State = %v, want silence_pending", s.State())
	}
	if !st.SilenceStart.Equal(at(200)) {
		t.Errorf("SilenceStart = %v", st.SilenceStart)
	}

	// staying silent keeps the original start
	s.Observe(quiet, 0, st, at(300))
	if !st.SilenceStart.Equal(at(200)) {
		t.Errorf("SilenceStart moved to %v", st.SilenceStart)
	}

	s.Observe(append(quiet[:4:4], 0.5), 0, st, at(400))
	if s.State() != Listening || st.Silent() {
		t.Errorf("State = %v, silent = %v; want listening", s.State(), st.Silent())
	}
}

func TestObserve_FewSamplesAreNotSilence(t *testing.T) {
	s, st := started()

	s.Observe([]float64{0, 0, 0, 0}, 10, st, at(2000))
	if s.State() != Listening {
		t.Errorf("State = %v with four samples, want listening", s.State())
	}
}

func TestObserve_PauseFlush(t *testing.T) {
	s, st := started()

	if got := s.Observe(quiet, 5, st, at(1000)); got != ReasonNone {
		t.Fatalf("silence just began, got %q", got)
	}
	if got := s.Observe(quiet, 5, st, at(1399)); got != ReasonNone {
		t.Fatalf("399ms of silence, got %q", got)
	}
	if got := s.Observe(quiet, 5, st, at(1400)); got != ReasonPause {
		t.Fatalf("400ms of silence, got %q, want pause", got)
	}
}

func TestObserve_PauseNeedsWords(t *testing.T) {
	s, st := started()

	s.Observe(quiet, 2, st, at(1000))
	if got := s.Observe(quiet, 2, st, at(2000)); got != ReasonNone {
		t.Errorf("two words, got %q", got)
	}
	if got := s.Observe(quiet, 0, st, at(2100)); got != ReasonNone {
		t.Errorf("empty buffer, got %q", got)
	}
}

func TestObserve_PauseRespectsNoteGap(t *testing.T) {
	s, st := started()

	// silence starts right away, but the session began at t0
	s.Observe(quiet, 4, st, at(0))
	if got := s.Observe(quiet, 4, st, at(500)); got != ReasonNone {
		t.Errorf("500ms since last flush, got %q", got)
	}
	if got := s.Observe(quiet, 4, st, at(800)); got != ReasonPause {
		t.Errorf("800ms since last flush, got %q, want pause", got)
	}
}

func TestObserve_NoDoublePauseFlush(t *testing.T) {
	s, st := started()

	s.Observe(quiet, 5, st, at(1000))
	if got := s.Observe(quiet, 5, st, at(1500)); got != ReasonPause {
		t.Fatalf("got %q, want pause", got)
	}
	s.Flushed(st, at(1500))

	// new words arrive while still silent; within 800ms nothing flushes
	for ms := 1533; ms < 2300; ms += 33 {
		if got := s.Observe(quiet, 5, st, at(ms)); got != ReasonNone {
			t.Fatalf("flush %q at +%dms after previous flush", got, ms-1500)
		}
	}
	if got := s.Observe(quiet, 5, st, at(2300)); got != ReasonPause {
		t.Errorf("got %q after gap, want pause", got)
	}
}

func TestObserve_LengthFlush(t *testing.T) {
	s, st := started()

	if got := s.Observe(loud, 150, st, at(800)); got != ReasonNone {
		t.Errorf("exactly 800ms since flush, got %q", got)
	}
	if got := s.Observe(loud, 149, st, at(5000)); got != ReasonNone {
		t.Errorf("149 words, got %q", got)
	}
	if got := s.Observe(loud, 150, st, at(801)); got != ReasonLength {
		t.Errorf("150 words while speaking, got %q, want length", got)
	}
}

func TestObserve_LengthBeforePause(t *testing.T) {
	s, st := started()

	s.Observe(quiet, 200, st, at(500))
	if got := s.Observe(quiet, 200, st, at(1000)); got != ReasonLength {
		t.Errorf("got %q, want length", got)
	}
}

func TestFragmentArrived_Length(t *testing.T) {
	s, st := started()

	if got := s.FragmentArrived(150, st, at(900)); got != ReasonLength {
		t.Errorf("got %q, want length", got)
	}
}

func TestFragmentArrived_Stale(t *testing.T) {
	s, st := started()

	tests := []struct {
		name  string
		words int
		ms    int
		want  Reason
	}{
		{"fresh", 10, 2000, ReasonNone},
		{"exactly at ceiling", 10, 3000, ReasonNone},
		{"past ceiling", 10, 3001, ReasonStale},
		{"past ceiling empty", 0, 5000, ReasonNone},
		{"past ceiling below floor", 2, 5000, ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.FragmentArrived(tt.words, st, at(tt.ms)); got != tt.want {
				t.Errorf("FragmentArrived(%d, +%dms) = %q, want %q", tt.words, tt.ms, got, tt.want)
			}
		})
	}
}

func TestFragmentArrived_IndependentOfSilence(t *testing.T) {
	s, st := started()
	s.Observe(loud, 10, st, at(100))

	if got := s.FragmentArrived(10, st, at(3500)); got != ReasonStale {
		t.Errorf("got %q while speaking, want stale", got)
	}
}

func TestFlushed(t *testing.T) {
	s, st := started()
	s.Flushed(st, at(4000))

	if !st.LastFlush.Equal(at(4000)) {
		t.Errorf("LastFlush = %v", st.LastFlush)
	}
	if got := s.FragmentArrived(10, st, at(5000)); got != ReasonNone {
		t.Errorf("got %q one second after flush", got)
	}
}

func TestStop(t *testing.T) {
	s, _ := started()
	if got := s.Stop(0); got != ReasonNone {
		t.Errorf("Stop(0) = %q", got)
	}
	if s.State() != Idle {
		t.Errorf("State = %v after stop", s.State())
	}

	s, _ = started()
	if got := s.Stop(1); got != ReasonShutdown {
		t.Errorf("Stop(1) = %q, want shutdown", got)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{Idle: "idle", Listening: "listening", SilencePending: "silence_pending", State(9): "unknown"} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
