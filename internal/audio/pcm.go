package audio

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"
)

// WindowSize is the number of samples the analyser keeps.
const WindowSize = 1024

// frameDuration is how much audio the reader consumes per read.
const frameDuration = 20 * time.Millisecond

// PCMStream decodes signed 16-bit little-endian mono PCM from a reader. It
// keeps the newest WindowSize samples for analysis and copies raw bytes into
// every recorder that is recording.
type PCMStream struct {
	sampleRate int
	src        io.ReadCloser

	mu        sync.Mutex
	ring      [WindowSize]float64
	head      int
	filled    int
	recorders []*pcmRecorder
	closed    bool

	done      chan struct{}
	closeOnce sync.Once

	srcOnce sync.Once
	srcErr  error
}

// NewPCMStream starts reading src in the background. With realtime set, reads
// are paced to the sample rate, which makes a file behave like a microphone.
// The stream closes when src is exhausted, when ctx is done or on Close.
func NewPCMStream(ctx context.Context, src io.ReadCloser, sampleRate int, realtime bool) *PCMStream {
	s := &PCMStream{
		sampleRate: sampleRate,
		src:        src,
		done:       make(chan struct{}),
	}
	go s.run(realtime)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

func (s *PCMStream) run(realtime bool) {
	defer s.shutdown()

	frame := make([]byte, int(time.Duration(s.sampleRate)*frameDuration/time.Second)*2)
	start := time.Now()
	var played time.Duration
	for {
		n, err := io.ReadFull(s.src, frame)
		if n > 1 {
			s.feed(frame[:n-n%2])
		}
		if err != nil {
			return
		}
		if realtime {
			played += frameDuration
			if wait := time.Until(start.Add(played)); wait > 0 {
				select {
				case <-time.After(wait):
				case <-s.done:
					return
				}
			}
		}
	}
}

func (s *PCMStream) feed(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(pcm)/2; i++ {
		s.ring[s.head] = sampleAt(pcm, i)
		s.head = (s.head + 1) % WindowSize
	}
	s.filled = min(WindowSize, s.filled+len(pcm)/2)

	for _, r := range s.recorders {
		if r.recording {
			r.buf = append(r.buf, pcm...)
		}
	}
}

func (s *PCMStream) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

// Analyser returns the stream itself.
func (s *PCMStream) Analyser() Analyser {
	return s
}

// Window implements Analyser.
func (s *PCMStream) Window(dst []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	n := min(len(dst), s.filled)
	start := (s.head - n + WindowSize) % WindowSize
	for i := 0; i < n; i++ {
		dst[i] = s.ring[(start+i)%WindowSize]
	}
	return n, nil
}

// NewRecorder implements Stream. Recorders that are not recording are
// dropped, so replacing a faulted recorder does not grow the list.
func (s *PCMStream) NewRecorder() (Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	r := &pcmRecorder{stream: s}
	s.recorders = append(slices.DeleteFunc(s.recorders, func(old *pcmRecorder) bool {
		return !old.recording
	}), r)
	return r, nil
}

// Close stops reading and releases the source. The source is closed once
// no matter how many callers race here.
func (s *PCMStream) Close() error {
	s.shutdown()
	s.srcOnce.Do(func() {
		s.srcErr = s.src.Close()
	})
	return s.srcErr
}

// pcmRecorder state is guarded by the stream mutex.
type pcmRecorder struct {
	stream    *PCMStream
	buf       []byte
	recording bool
}

func (r *pcmRecorder) Start() error {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()

	if r.stream.closed {
		return ErrClosed
	}
	if r.recording {
		return errors.New("audio: recorder already started")
	}
	if !slices.Contains(r.stream.recorders, r) {
		r.stream.recorders = append(r.stream.recorders, r)
	}
	r.recording = true
	r.buf = r.buf[:0]
	return nil
}

// Stop works after the stream closed so the final chunk can be drained.
func (r *pcmRecorder) Stop() (Chunk, error) {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()

	if !r.recording {
		return Chunk{}, errors.New("audio: recorder not started")
	}
	r.recording = false
	pcm := r.buf
	r.buf = nil
	return Chunk{
		Data: EncodeWAV(pcm, r.stream.sampleRate),
		RMS:  RMS(pcm),
	}, nil
}
