package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/capture"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/dedup"
	"github.com/hpungsan/jot/internal/level"
	"github.com/hpungsan/jot/internal/note"
	"github.com/hpungsan/jot/internal/quality"
	"github.com/hpungsan/jot/internal/segment"
	"github.com/hpungsan/jot/internal/session"
)

// run is one session. Every field below the channels is owned by the loop
// goroutine.
type run struct {
	p      *Pipeline
	id     string
	device string
	stream audio.Stream
	ctx    context.Context
	cancel context.CancelFunc

	monitor *level.Monitor
	seg     *segment.Segmenter
	capture *capture.Lifecycle
	dedup   *dedup.Registry
	state   *session.State

	results  chan capture.Result
	stop     chan struct{}
	stopOnce sync.Once
	quit     chan struct{} // closed when the loop exits
	done     chan struct{} // closed when teardown is complete

	buf         strings.Builder
	words       int
	pending     int
	filtered    int
	notes       int
	lastQuality *quality.ContentQuality
}

func newRun(p *Pipeline, id, device string, stream audio.Stream, ctx context.Context, cancel context.CancelFunc, now time.Time) *run {
	r := &run{
		p:       p,
		id:      id,
		device:  device,
		stream:  stream,
		ctx:     ctx,
		cancel:  cancel,
		monitor: level.New(stream.Analyser()),
		seg:     segment.New(segment.FromConfig(p.cfg)),
		capture: capture.New(capture.FromConfig(p.cfg), stream, p.tr, p.log.With("session", id)),
		dedup:   p.dedup,
		state:   session.New(now),
		results: make(chan capture.Result),
		stop:    make(chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.dedup.Reset()
	r.seg.Start(r.state, now)
	return r
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// post hands a transcription result to the loop. Results arriving after
// the loop exited are dropped.
func (r *run) post(res capture.Result) {
	select {
	case r.results <- res:
	case <-r.quit:
	}
}

func (r *run) loop() {
	defer r.finish()

	cfg := r.p.cfg
	sampleTicker := time.NewTicker(config.Millis(cfg.SampleIntervalMS))
	defer sampleTicker.Stop()
	chunkTicker := time.NewTicker(config.Millis(cfg.ChunkMS))
	defer chunkTicker.Stop()

	for {
		select {
		case <-r.stop:
			r.shutdown(r.p.now())
			return

		case <-sampleTicker.C:
			err := r.sample(r.p.now())
			if errors.Is(err, audio.ErrClosed) {
				r.p.log.Warn("audio device lost, draining session", "session", r.id)
				r.drain()
				r.shutdown(r.p.now())
				return
			}
			if err != nil {
				r.p.log.Debug("level sample failed", "session", r.id, "error", err)
			}

		case <-chunkTicker.C:
			r.cut(true)

		case res := <-r.results:
			r.complete(res, r.p.now())
		}
		r.p.publish(r)
	}
}

// sample takes one level reading and applies the silence and length rules.
func (r *run) sample(now time.Time) error {
	if _, err := r.monitor.Sample(); err != nil {
		return err
	}
	r.observe(now)
	return nil
}

func (r *run) observe(now time.Time) {
	if reason := r.seg.Observe(r.monitor.History(), r.words, r.state, now); reason != segment.ReasonNone {
		r.flush(reason, now)
	}
}

// cut ends the current chunk.
func (r *run) cut(resume bool) {
	if r.capture.Cut(r.ctx, resume, r.post) {
		r.pending++
	}
}

// complete applies one transcription result.
func (r *run) complete(res capture.Result, now time.Time) {
	if r.pending > 0 {
		r.pending--
	}

	out := r.capture.Complete(r.state, res)
	if out.Fragment == "" {
		return
	}
	r.append(out.Fragment)

	if out.ForceFlush {
		r.flush(segment.ReasonFallback, now)
		return
	}
	if reason := r.seg.FragmentArrived(r.words, r.state, now); reason != segment.ReasonNone {
		r.flush(reason, now)
	}
}

// drain cuts the final chunk after the device is gone and waits for every
// outstanding transcription, unless a stop arrives first.
func (r *run) drain() {
	r.cut(false)

	timeout := time.NewTimer(config.Millis(r.p.cfg.TranscribeTimeoutMS) + time.Second)
	defer timeout.Stop()

	for r.pending > 0 {
		select {
		case res := <-r.results:
			r.complete(res, r.p.now())
			r.p.publish(r)
		case <-r.stop:
			return
		case <-timeout.C:
			r.p.log.Warn("gave up waiting for transcriptions", "session", r.id, "pending", r.pending)
			return
		}
	}
}

// shutdown stops capture and flushes whatever is buffered.
func (r *run) shutdown(now time.Time) {
	r.capture.Stop()
	if reason := r.seg.Stop(r.words); reason != segment.ReasonNone {
		r.flush(reason, now)
	}
}

// finish releases the session's resources once the loop has exited.
func (r *run) finish() {
	close(r.quit)
	r.cancel()
	r.capture.Wait()
	if err := r.stream.Close(); err != nil {
		r.p.log.Debug("stream close failed", "session", r.id, "error", err)
	}

	if r.p.journal != nil {
		if err := r.p.journal.SessionEnded(r.id, r.p.now(), r.notes, r.filtered); err != nil {
			r.p.log.Warn("journal session end failed", "session", r.id, "error", err)
		}
	}
	r.p.log.Info("session ended", "session", r.id, "notes", r.notes, "filtered", r.filtered, "remembered", r.dedup.Len())

	r.monitor.Reset()
	r.p.release(r)
	close(r.done)
}

func (r *run) append(fragment string) {
	if r.buf.Len() > 0 {
		r.buf.WriteByte(' ')
	}
	r.buf.WriteString(fragment)
	r.words += note.CountWords(fragment)
}

// flush empties the buffer and runs it through the gates: exact duplicate,
// quality, word overlap with earlier notes, then edit distance against the
// sink. Each gate that rejects counts toward filtered.
func (r *run) flush(reason segment.Reason, now time.Time) {
	text := strings.TrimSpace(r.buf.String())
	r.buf.Reset()
	r.words = 0
	r.seg.Flushed(r.state, now)

	if text == "" {
		return
	}

	seg := db.Segment{
		SessionID: r.id,
		Text:      text,
		Words:     note.CountWords(text),
		Reason:    string(reason),
		CreatedAt: now.UnixMilli(),
	}
	log := r.p.log.With("session", r.id, "reason", string(reason))

	if r.dedup.Seen(text) {
		r.reject(&seg, db.OutcomeExactDuplicate, "")
		log.Debug("dropped exact duplicate", "text", text)
		return
	}

	q := quality.Score(text)
	r.lastQuality = &q
	seg.Score = q.Score
	seg.Detail = q.Reason
	if q.Score < AcceptThreshold {
		r.reject(&seg, db.OutcomeLowQuality, q.Reason)
		log.Debug("dropped low quality segment", "score", q.Score, "why", q.Reason)
		return
	}

	if match, dup := r.dedup.NearDuplicate(text); dup {
		r.reject(&seg, db.OutcomeNearDuplicate, match)
		log.Debug("dropped near duplicate", "text", text, "match", match)
		return
	}
	r.dedup.Remember(text)

	n, err := note.New(text, now)
	if err != nil {
		log.Error("note creation failed", "error", err)
		return
	}

	if match, dup := dedup.Conflicts(n.Content, r.p.sink.Contents()); dup {
		r.reject(&seg, db.OutcomeBoardDuplicate, match)
		log.Debug("dropped duplicate of visible note", "text", text, "match", match)
		return
	}

	r.p.sink.Accept(n)
	r.notes++
	seg.Outcome = db.OutcomeAccepted
	seg.NoteID = n.ID
	r.record(seg)
	log.Info("note accepted", "note", n.ID, "score", q.Score, "words", seg.Words)
}

func (r *run) reject(seg *db.Segment, outcome, detail string) {
	r.filtered++
	seg.Outcome = outcome
	if detail != "" {
		seg.Detail = detail
	}
	r.record(*seg)
}

func (r *run) record(seg db.Segment) {
	if r.p.journal == nil {
		return
	}
	if err := r.p.journal.Record(seg); err != nil {
		r.p.log.Warn("journal record failed", "session", r.id, "error", err)
	}
}

func (r *run) snapshot() Status {
	return Status{
		Active:      true,
		SessionID:   r.id,
		Device:      r.device,
		State:       r.seg.State().String(),
		Level:       r.monitor.Current(),
		Busy:        r.pending > 0,
		LastQuality: r.lastQuality,
		Filtered:    r.filtered,
		Notes:       r.notes,
		Buffered:    r.words,
	}
}
