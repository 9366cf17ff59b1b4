// Package capture runs the recorder for a session: it cuts chunks at fixed
// boundaries, drops the ones not worth sending, dispatches the rest to the
// transcriber and keeps recording through recorder faults.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/config"
	jerrors "github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/logger"
	"github.com/hpungsan/jot/internal/session"
	"github.com/hpungsan/jot/internal/transcribe"
)

// FallbackText stands in for speech the transcriber keeps failing on.
const FallbackText = "speech detected but transcription unavailable"

// Config holds the capture thresholds.
type Config struct {
	MinChunkBytes int
	MinChunkRMS   float64
	Timeout       time.Duration
	Language      string
	MaxErrors     int
}

// FromConfig reads the capture thresholds from application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		MinChunkBytes: cfg.MinChunkBytes,
		MinChunkRMS:   cfg.MinChunkRMS,
		Timeout:       config.Millis(cfg.TranscribeTimeoutMS),
		Language:      cfg.Language,
		MaxErrors:     cfg.MaxTranscriptionErrs,
	}
}

// Result is what one transcription call produced.
type Result struct {
	Seq     uint64
	Text    string
	Err     error
	Elapsed time.Duration
}

// Outcome is how the session should treat a Result.
type Outcome struct {
	// Fragment is text to append to the buffer; empty means nothing.
	Fragment string
	// ForceFlush asks for an immediate flush after appending Fragment.
	ForceFlush bool
	// Err is the recoverable error the result carried, if any.
	Err error
}

// Lifecycle is driven by the session event loop. Only the transcription
// goroutines it starts run concurrently, and they talk back through post.
type Lifecycle struct {
	cfg    Config
	stream audio.Stream
	tr     transcribe.Transcriber
	log    *logger.Logger

	rec       audio.Recorder
	recording bool
	seq       uint64
	wg        sync.WaitGroup
}

// New returns a lifecycle over stream. It does not record until Start.
func New(cfg Config, stream audio.Stream, tr transcribe.Transcriber, log *logger.Logger) *Lifecycle {
	if log == nil {
		log = logger.Nop()
	}
	return &Lifecycle{cfg: cfg, stream: stream, tr: tr, log: log}
}

// Start creates the first recorder and starts it.
func (l *Lifecycle) Start() error {
	rec, err := l.stream.NewRecorder()
	if err != nil {
		return jerrors.NewRecorderFault("create", err)
	}
	if err := rec.Start(); err != nil {
		return jerrors.NewRecorderFault("start", err)
	}
	l.rec = rec
	l.recording = true
	return nil
}

// Recording reports whether a recorder is currently capturing.
func (l *Lifecycle) Recording() bool {
	return l.recording
}

// Cut ends the current chunk at a boundary. A chunk worth transcribing is
// sent to the transcriber in its own goroutine and the result handed to
// post; Cut reports whether that happened. With resume set, recording
// restarts afterwards, recreating the recorder if needed.
func (l *Lifecycle) Cut(ctx context.Context, resume bool, post func(Result)) bool {
	dispatched := false

	if l.recording {
		l.recording = false
		chunk, err := l.rec.Stop()
		switch {
		case err != nil:
			l.log.Warn("recorder stop failed", "error", jerrors.NewRecorderFault("stop", err))
		case chunk.Len() < l.cfg.MinChunkBytes:
			l.log.Debug("discarding undersized chunk", "bytes", chunk.Len())
		case chunk.RMS < l.cfg.MinChunkRMS:
			l.log.Debug("discarding silent chunk", "bytes", chunk.Len(), "rms", chunk.RMS)
		default:
			l.dispatch(ctx, chunk, post)
			dispatched = true
		}
	}

	if resume {
		l.resume()
	}
	return dispatched
}

func (l *Lifecycle) dispatch(ctx context.Context, chunk audio.Chunk, post func(Result)) {
	l.seq++
	seq := l.seq

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		tctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()

		start := time.Now()
		text, err := l.tr.Transcribe(tctx, chunk.Data, l.cfg.Language)
		res := Result{Seq: seq, Text: text, Elapsed: time.Since(start)}
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded):
			res.Err = jerrors.NewTranscriptionTimeout(l.cfg.Timeout)
		default:
			res.Err = jerrors.NewTranscriptionFailure(err)
		}
		post(res)
	}()
}

// resume restarts recording. A recorder that will not restart is replaced;
// when that fails too the next boundary tries again.
func (l *Lifecycle) resume() {
	if l.rec != nil {
		err := l.rec.Start()
		if err == nil {
			l.recording = true
			return
		}
		l.log.Warn("recorder restart failed, recreating", "error", jerrors.NewRecorderFault("start", err))
	}

	rec, err := l.stream.NewRecorder()
	if err != nil {
		l.rec = nil
		l.log.Warn("recorder recreation failed", "error", jerrors.NewRecorderFault("create", err))
		return
	}
	l.rec = rec
	if err := rec.Start(); err != nil {
		l.log.Warn("recorder recreation failed", "error", jerrors.NewRecorderFault("start", err))
		return
	}
	l.recording = true
}

// Complete applies a transcription result to the session counters.
func (l *Lifecycle) Complete(st *session.State, res Result) Outcome {
	text := strings.TrimSpace(res.Text)
	if res.Err == nil && text != "" {
		st.ConsecutiveErrors = 0
		st.FallbackUsed = false
		return Outcome{Fragment: text}
	}

	err := res.Err
	if err == nil {
		err = jerrors.NewTranscriptionFailure(nil)
	}
	st.ConsecutiveErrors++
	logFn := l.log.Warn
	if !jerrors.Recoverable(err) {
		logFn = l.log.Error
	}
	logFn("transcription failed", "seq", res.Seq, "consecutive", st.ConsecutiveErrors, "error", err)

	if st.ConsecutiveErrors >= l.cfg.MaxErrors && !st.FallbackUsed {
		st.FallbackUsed = true
		return Outcome{Fragment: FallbackText, ForceFlush: true, Err: err}
	}
	return Outcome{Err: err}
}

// Stop ends recording and drops the partial chunk.
func (l *Lifecycle) Stop() {
	if l.recording {
		l.recording = false
		if _, err := l.rec.Stop(); err != nil {
			l.log.Debug("recorder stop failed", "error", err)
		}
	}
}

// Wait blocks until every dispatched transcription has posted its result.
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}
