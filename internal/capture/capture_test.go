package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/config"
	jerrors "github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/logger"
	"github.com/hpungsan/jot/internal/session"
	"github.com/hpungsan/jot/internal/transcribe"
)

type fakeRecorder struct {
	startErr  error
	stopErr   error
	chunk     audio.Chunk
	starts    int
	stops     int
	recording bool
}

func (r *fakeRecorder) Start() error {
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() (audio.Chunk, error) {
	r.stops++
	r.recording = false
	if r.stopErr != nil {
		return audio.Chunk{}, r.stopErr
	}
	return r.chunk, nil
}

type fakeStream struct {
	recorders []*fakeRecorder
	createErr error
	next      func() *fakeRecorder
}

func (s *fakeStream) Analyser() audio.Analyser { return nil }
func (s *fakeStream) Close() error             { return nil }

func (s *fakeStream) NewRecorder() (audio.Recorder, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	r := &fakeRecorder{chunk: speechChunk()}
	if s.next != nil {
		r = s.next()
	}
	s.recorders = append(s.recorders, r)
	return r, nil
}

func speechChunk() audio.Chunk {
	return audio.Chunk{Data: make([]byte, 4000), RMS: 0.2}
}

func testConfig() Config {
	cfg := FromConfig(config.DefaultConfig())
	cfg.Timeout = time.Second
	return cfg
}

// collect gathers posted results.
type collect struct {
	mu      sync.Mutex
	results []Result
}

func (c *collect) post(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func echo(text string, err error) transcribe.Transcriber {
	return transcribe.Func(func(context.Context, []byte, string) (string, error) {
		return text, err
	})
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DefaultConfig())
	require.Equal(t, 800, cfg.MinChunkBytes)
	require.Equal(t, 0.005, cfg.MinChunkRMS)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, "en", cfg.Language)
	require.Equal(t, 3, cfg.MaxErrors)
}

func TestStart(t *testing.T) {
	stream := &fakeStream{}
	l := New(testConfig(), stream, echo("hi", nil), nil)

	require.NoError(t, l.Start())
	require.True(t, l.Recording())
	require.Len(t, stream.recorders, 1)
	require.True(t, stream.recorders[0].recording)
}

func TestStart_Faults(t *testing.T) {
	l := New(testConfig(), &fakeStream{createErr: errors.New("busy")}, echo("", nil), nil)
	err := l.Start()
	require.True(t, jerrors.Is(err, jerrors.ErrRecorderFault))

	stream := &fakeStream{next: func() *fakeRecorder { return &fakeRecorder{startErr: errors.New("denied")} }}
	l = New(testConfig(), stream, echo("", nil), nil)
	err = l.Start()
	require.True(t, jerrors.Is(err, jerrors.ErrRecorderFault))
	require.False(t, l.Recording())
}

func TestCut_DispatchesAndResumes(t *testing.T) {
	stream := &fakeStream{}
	var gotLang string
	tr := transcribe.Func(func(_ context.Context, wav []byte, lang string) (string, error) {
		gotLang = lang
		return "Budget approved", nil
	})
	l := New(testConfig(), stream, tr, nil)
	require.NoError(t, l.Start())

	var c collect
	require.True(t, l.Cut(context.Background(), true, c.post))
	l.Wait()

	require.Len(t, c.results, 1)
	require.Equal(t, "Budget approved", c.results[0].Text)
	require.NoError(t, c.results[0].Err)
	require.Equal(t, uint64(1), c.results[0].Seq)
	require.Equal(t, "en", gotLang)

	rec := stream.recorders[0]
	require.Equal(t, 1, rec.stops)
	require.Equal(t, 2, rec.starts)
	require.True(t, l.Recording())
}

func TestCut_DiscardsSmallAndSilentChunks(t *testing.T) {
	tests := []struct {
		name  string
		chunk audio.Chunk
	}{
		{"undersized", audio.Chunk{Data: make([]byte, 799), RMS: 0.5}},
		{"silent", audio.Chunk{Data: make([]byte, 32000), RMS: 0.001}},
		{"empty", audio.Chunk{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			tr := transcribe.Func(func(context.Context, []byte, string) (string, error) {
				called = true
				return "x", nil
			})
			stream := &fakeStream{next: func() *fakeRecorder { return &fakeRecorder{chunk: tt.chunk} }}
			l := New(testConfig(), stream, tr, nil)
			require.NoError(t, l.Start())

			var c collect
			require.False(t, l.Cut(context.Background(), true, c.post))
			l.Wait()
			require.False(t, called)
			require.Empty(t, c.results)
			require.True(t, l.Recording())
		})
	}
}

func TestCut_ExactMinimumIsSent(t *testing.T) {
	stream := &fakeStream{next: func() *fakeRecorder {
		return &fakeRecorder{chunk: audio.Chunk{Data: make([]byte, 800), RMS: 0.005}}
	}}
	l := New(testConfig(), stream, echo("ok", nil), nil)
	require.NoError(t, l.Start())

	var c collect
	require.True(t, l.Cut(context.Background(), false, c.post))
	l.Wait()
	require.Len(t, c.results, 1)
	require.False(t, l.Recording())
}

func TestCut_Timeout(t *testing.T) {
	tr := transcribe.Func(func(ctx context.Context, _ []byte, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	l := New(cfg, &fakeStream{}, tr, nil)
	require.NoError(t, l.Start())

	var c collect
	l.Cut(context.Background(), true, c.post)
	l.Wait()

	require.Len(t, c.results, 1)
	require.True(t, jerrors.Is(c.results[0].Err, jerrors.ErrTranscriptionTimeout))
}

func TestCut_Failure(t *testing.T) {
	l := New(testConfig(), &fakeStream{}, echo("", errors.New("503 from upstream")), nil)
	require.NoError(t, l.Start())

	var c collect
	l.Cut(context.Background(), true, c.post)
	l.Wait()

	require.Len(t, c.results, 1)
	require.True(t, jerrors.Is(c.results[0].Err, jerrors.ErrTranscriptionFailure))
}

func TestCut_RecreatesRecorder(t *testing.T) {
	first := &fakeRecorder{chunk: speechChunk()}
	calls := 0
	stream := &fakeStream{next: func() *fakeRecorder {
		calls++
		if calls == 1 {
			return first
		}
		return &fakeRecorder{chunk: speechChunk()}
	}}
	l := New(testConfig(), stream, echo("ok", nil), nil)
	require.NoError(t, l.Start())

	first.startErr = errors.New("device glitch")
	var c collect
	l.Cut(context.Background(), true, c.post)
	l.Wait()

	require.Len(t, stream.recorders, 2)
	require.True(t, stream.recorders[1].recording)
	require.True(t, l.Recording())
}

func TestCut_RetriesRecreationAtNextBoundary(t *testing.T) {
	stream := &fakeStream{}
	l := New(testConfig(), stream, echo("ok", nil), nil)
	require.NoError(t, l.Start())

	stream.recorders[0].startErr = errors.New("glitch")
	stream.createErr = errors.New("still broken")
	var c collect
	l.Cut(context.Background(), true, c.post)
	require.False(t, l.Recording())

	// nothing to stop at the next boundary; recreation is retried
	stream.createErr = nil
	require.False(t, l.Cut(context.Background(), true, c.post))
	require.True(t, l.Recording())
	require.Len(t, stream.recorders, 2)
	l.Wait()
}

func TestCut_StopFault(t *testing.T) {
	stream := &fakeStream{next: func() *fakeRecorder { return &fakeRecorder{stopErr: errors.New("io")} }}
	l := New(testConfig(), stream, echo("ok", nil), nil)
	require.NoError(t, l.Start())

	var c collect
	require.False(t, l.Cut(context.Background(), true, c.post))
	require.True(t, l.Recording())
}

func TestComplete_Success(t *testing.T) {
	l := New(testConfig(), &fakeStream{}, nil, nil)
	st := session.New(time.Now())
	st.ConsecutiveErrors = 2

	out := l.Complete(st, Result{Text: "  the report shows growth "})
	require.Equal(t, "the report shows growth", out.Fragment)
	require.False(t, out.ForceFlush)
	require.NoError(t, out.Err)
	require.Zero(t, st.ConsecutiveErrors)
}

func TestComplete_EmptyCountsAsFailure(t *testing.T) {
	l := New(testConfig(), &fakeStream{}, nil, nil)
	st := session.New(time.Now())

	out := l.Complete(st, Result{Text: "   "})
	require.Empty(t, out.Fragment)
	require.True(t, jerrors.Is(out.Err, jerrors.ErrTranscriptionFailure))
	require.Equal(t, 1, st.ConsecutiveErrors)
}

func TestComplete_FallbackOncePerOutage(t *testing.T) {
	l := New(testConfig(), &fakeStream{}, nil, nil)
	st := session.New(time.Now())
	fail := Result{Err: jerrors.NewTranscriptionFailure(errors.New("down"))}

	var fallbacks int
	for range 6 {
		out := l.Complete(st, fail)
		if out.ForceFlush {
			fallbacks++
			require.Equal(t, FallbackText, out.Fragment)
			require.Equal(t, 3, st.ConsecutiveErrors)
		}
	}
	require.Equal(t, 1, fallbacks)
	require.True(t, st.FallbackUsed)

	// recovery re-arms the fallback for the next outage
	l.Complete(st, Result{Text: "back online"})
	require.False(t, st.FallbackUsed)
	for range 3 {
		if l.Complete(st, fail).ForceFlush {
			fallbacks++
		}
	}
	require.Equal(t, 2, fallbacks)
}

func TestComplete_LogLevelByRecoverability(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	l := New(testConfig(), &fakeStream{}, nil, log)
	st := session.New(time.Now())

	l.Complete(st, Result{Err: jerrors.NewTranscriptionTimeout(time.Second)})
	l.Complete(st, Result{Err: errors.New("unexpected")})

	entries := logs.FilterMessage("transcription failed").All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestStop(t *testing.T) {
	stream := &fakeStream{}
	l := New(testConfig(), stream, echo("ok", nil), nil)
	require.NoError(t, l.Start())

	l.Stop()
	require.False(t, l.Recording())
	require.Equal(t, 1, stream.recorders[0].stops)

	// second stop is a no-op
	l.Stop()
	require.Equal(t, 1, stream.recorders[0].stops)
}
