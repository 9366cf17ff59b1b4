// Package audio defines the capture handles the pipeline consumes and a PCM
// implementation fed from a WAV file, a raw PCM reader or a capture command.
package audio

import (
	"context"
	"errors"
)

// ErrClosed is returned once the underlying stream has ended.
var ErrClosed = errors.New("audio: stream closed")

// Device is an audio source that can be opened into a live stream.
type Device interface {
	// Name identifies the device in logs and errors.
	Name() string
	// Open acquires the device. The stream lives until Close or until ctx is done.
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open audio input.
type Stream interface {
	// Analyser returns the level-analysis handle of the stream.
	Analyser() Analyser
	// NewRecorder creates a recorder over the stream. It is not started.
	NewRecorder() (Recorder, error)
	// Close releases the device.
	Close() error
}

// Analyser exposes the most recent signal window.
type Analyser interface {
	// Window fills dst with the newest samples in [-1,1], oldest first, and
	// returns how many were written. It returns ErrClosed after the stream ends.
	Window(dst []float64) (int, error)
}

// Recorder accumulates audio between Start and Stop.
type Recorder interface {
	Start() error
	// Stop ends the current recording and returns it as a chunk.
	Stop() (Chunk, error)
}

// Chunk is one recording, encoded as WAV.
type Chunk struct {
	Data []byte
	// RMS is the root-mean-square amplitude of the samples, in [0,1].
	RMS float64
}

// Len returns the encoded size in bytes.
func (c Chunk) Len() int {
	return len(c.Data)
}
