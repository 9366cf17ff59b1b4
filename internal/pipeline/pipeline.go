// Package pipeline runs a live capture session: it samples the input level,
// cuts and transcribes chunks, segments the transcript into notes, filters
// them and hands accepted notes to the sink.
//
// Each session runs a single event loop that owns the accumulation buffer,
// the segmenter, the duplicate registry and the session counters. Only the
// published status is shared.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/dedup"
	jerrors "github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/logger"
	"github.com/hpungsan/jot/internal/note"
	"github.com/hpungsan/jot/internal/quality"
	"github.com/hpungsan/jot/internal/segment"
	"github.com/hpungsan/jot/internal/transcribe"
)

// AcceptThreshold is the score at which a flushed segment becomes a note.
// It sits below quality.NoteworthyThreshold so borderline speech is kept.
const AcceptThreshold = 0.10

// Sink receives accepted notes. Contents is read at acceptance time and
// reflects edits made by the user.
type Sink interface {
	Contents() []string
	Accept(n note.Note)
}

// Journal records sessions and flush decisions.
type Journal interface {
	SessionStarted(id, device string, at time.Time) error
	SessionEnded(id string, at time.Time, notes, filtered int) error
	Record(seg db.Segment) error
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Active      bool                    `json:"active"`
	SessionID   string                  `json:"session_id,omitempty"`
	Device      string                  `json:"device,omitempty"`
	State       string                  `json:"state"`
	Level       float64                 `json:"level"`
	Busy        bool                    `json:"busy"`
	LastQuality *quality.ContentQuality `json:"last_quality,omitempty"`
	Filtered    int                     `json:"filtered"`
	Notes       int                     `json:"notes"`
	Buffered    int                     `json:"buffered_words"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal records every session and flush decision in j.
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs at most one session at a time.
type Pipeline struct {
	cfg     *config.Config
	tr      transcribe.Transcriber
	sink    Sink
	log     *logger.Logger
	journal Journal
	now     func() time.Time
	dedup   *dedup.Registry

	mu     sync.Mutex
	cur    *run
	status Status
}

// New returns an idle pipeline.
func New(cfg *config.Config, tr transcribe.Transcriber, sink Sink, log *logger.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	p := &Pipeline{
		cfg:    cfg,
		tr:     tr,
		sink:   sink,
		log:    log,
		now:    time.Now,
		dedup:  dedup.New(),
		status: Status{State: segment.Idle.String()},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartSession opens dev and starts a session. The session outlives ctx;
// end it with StopSession.
func (p *Pipeline) StartSession(ctx context.Context, dev audio.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur != nil {
		return jerrors.NewSessionActive(p.cur.id)
	}

	now := p.now()
	id, err := note.NewID(now)
	if err != nil {
		return jerrors.NewInternal(err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := dev.Open(sctx)
	if err != nil {
		cancel()
		return jerrors.NewDeviceAcquisition(dev.Name(), err)
	}

	r := newRun(p, id, dev.Name(), stream, sctx, cancel, now)
	if err := r.capture.Start(); err != nil {
		cancel()
		_ = stream.Close()
		return err
	}

	if p.journal != nil {
		if err := p.journal.SessionStarted(id, dev.Name(), now); err != nil {
			p.log.Warn("journal session start failed", "session", id, "error", err)
		}
	}

	p.cur = r
	p.status = r.snapshot()
	p.log.Info("session started", "session", id, "device", dev.Name())

	go r.loop()
	return nil
}

// StopSession ends the running session, flushing what is buffered. It
// returns once teardown is complete and is a no-op when idle.
func (p *Pipeline) StopSession() error {
	p.mu.Lock()
	r := p.cur
	p.mu.Unlock()

	if r == nil {
		return nil
	}
	r.requestStop()
	<-r.done
	return nil
}

// Done returns a channel closed when the current session ends. When idle
// the channel is already closed.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.cur.done
}

// Status returns the latest published status with the live input level.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.status
	if p.cur != nil {
		s.Level = p.cur.monitor.Current()
	}
	return s
}

// publish stores the status of r if it is still the current session.
func (p *Pipeline) publish(r *run) {
	s := r.snapshot()
	p.mu.Lock()
	if p.cur == r {
		p.status = s
	}
	p.mu.Unlock()
}

// release clears r as the current session and keeps its final totals.
func (p *Pipeline) release(r *run) {
	s := r.snapshot()
	s.Active = false
	s.Busy = false
	s.State = segment.Idle.String()

	p.mu.Lock()
	if p.cur == r {
		p.cur = nil
		p.status = s
	}
	p.mu.Unlock()
}
