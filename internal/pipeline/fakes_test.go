package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/db"
)

// noiseAnalyser returns a loud noise window until closed.
type noiseAnalyser struct {
	closed atomic.Bool
	window []float64
}

func newNoiseAnalyser() *noiseAnalyser {
	rng := rand.New(rand.NewPCG(7, 11))
	w := make([]float64, audio.WindowSize)
	for i := range w {
		w[i] = rng.Float64() - 0.5
	}
	return &noiseAnalyser{window: w}
}

func (a *noiseAnalyser) Window(dst []float64) (int, error) {
	if a.closed.Load() {
		return 0, audio.ErrClosed
	}
	return copy(dst, a.window), nil
}

// fakeRecorder yields one chunk of speech, then silence.
type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	spoken   bool
}

func (r *fakeRecorder) Start() error {
	return r.startErr
}

func (r *fakeRecorder) Stop() (audio.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.spoken {
		r.spoken = true
		return audio.Chunk{Data: make([]byte, 16000), RMS: 0.3}, nil
	}
	return audio.Chunk{Data: make([]byte, 16000), RMS: 0}, nil
}

type fakeStream struct {
	analyser audio.Analyser
	recorder *fakeRecorder
	closed   atomic.Bool
}

func (s *fakeStream) Analyser() audio.Analyser { return s.analyser }

func (s *fakeStream) NewRecorder() (audio.Recorder, error) {
	return s.recorder, nil
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeDevice struct {
	stream  *fakeStream
	openErr error
}

func (d *fakeDevice) Name() string { return "fake-mic" }

func (d *fakeDevice) Open(context.Context) (audio.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{stream: &fakeStream{
		analyser: newNoiseAnalyser(),
		recorder: &fakeRecorder{},
	}}
}

var errDeviceBusy = errors.New("device busy")

// fakeJournal records everything in memory.
type fakeJournal struct {
	mu       sync.Mutex
	started  []string
	ended    []string
	segments []db.Segment
}

func (j *fakeJournal) SessionStarted(id, _ string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, id)
	return nil
}

func (j *fakeJournal) SessionEnded(id string, _ time.Time, _, _ int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended = append(j.ended, id)
	return nil
}

func (j *fakeJournal) Record(seg db.Segment) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments = append(j.segments, seg)
	return nil
}

func (j *fakeJournal) outcomes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.segments))
	for i, s := range j.segments {
		out[i] = s.Outcome
	}
	return out
}
