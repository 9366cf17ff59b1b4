// Package level turns the live signal window into a normalized input level
// and keeps a short history of recent levels.
package level

import (
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/hpungsan/jot/internal/audio"
)

const (
	FFTSize     = 1024
	HistorySize = 20

	// Smoothing is the per-bin time constant between consecutive samples.
	Smoothing = 0.8

	// MinDecibels and MaxDecibels map to levels 0 and 1.
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// Monitor computes levels from an analyser. Sample is called from a single
// goroutine; Current, Recent and History may be called from any goroutine.
type Monitor struct {
	analyser audio.Analyser
	fft      *fourier.FFT
	frame    []float64
	coeffs   []complex128
	smoothed []float64

	mu      sync.Mutex
	history []float64

	current atomic.Uint64
}

// New returns a monitor over a. A nil analyser is allowed when levels are
// only pushed.
func New(a audio.Analyser) *Monitor {
	return &Monitor{
		analyser: a,
		fft:      fourier.NewFFT(FFTSize),
		frame:    make([]float64, FFTSize),
		smoothed: make([]float64, FFTSize/2),
		history:  make([]float64, 0, HistorySize),
	}
}

// Sample reads the newest window, records its level and returns it.
// It returns audio.ErrClosed once the stream has ended.
func (m *Monitor) Sample() (float64, error) {
	n, err := m.analyser.Window(m.frame)
	if err != nil {
		return 0, err
	}
	clear(m.frame[n:])

	window.Blackman(m.frame)
	m.coeffs = m.fft.Coefficients(m.coeffs, m.frame)

	var sum float64
	for k := range m.smoothed {
		mag := cmplx.Abs(m.coeffs[k]) / FFTSize
		m.smoothed[k] = Smoothing*m.smoothed[k] + (1-Smoothing)*mag
		sum += normalize(20 * math.Log10(m.smoothed[k]))
	}

	lvl := sum / float64(len(m.smoothed))
	m.Push(lvl)
	return lvl, nil
}

// normalize maps decibels onto [0,1]. Silence yields -Inf, which maps to 0.
func normalize(db float64) float64 {
	v := (db - MinDecibels) / (MaxDecibels - MinDecibels)
	return math.Max(0, math.Min(1, v))
}

// Push records a level computed elsewhere, evicting the oldest beyond HistorySize.
func (m *Monitor) Push(lvl float64) {
	m.mu.Lock()
	if len(m.history) == HistorySize {
		copy(m.history, m.history[1:])
		m.history = m.history[:HistorySize-1]
	}
	m.history = append(m.history, lvl)
	m.mu.Unlock()

	m.current.Store(math.Float64bits(lvl))
}

// Current returns the most recent level, or 0 before the first sample.
func (m *Monitor) Current() float64 {
	return math.Float64frombits(m.current.Load())
}

// Recent returns up to n of the newest levels, oldest first.
func (m *Monitor) Recent(n int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > len(m.history) {
		n = len(m.history)
	}
	if n <= 0 {
		return nil
	}
	return append([]float64(nil), m.history[len(m.history)-n:]...)
}

// History returns every retained level, oldest first.
func (m *Monitor) History() []float64 {
	return m.Recent(HistorySize)
}

// Reset clears history, smoothing state and the current level.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.history = m.history[:0]
	m.mu.Unlock()
	clear(m.smoothed)
	m.current.Store(0)
}
