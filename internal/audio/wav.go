package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const wavHeaderSize = 44

// EncodeWAV wraps 16-bit little-endian mono PCM in a canonical WAV header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// ReadWAVHeader consumes a WAV header from r up to the start of the sample
// data and returns the sample rate. Only 16-bit mono PCM is accepted.
// Unknown chunks before "data" are skipped, so r need not be seekable.
func ReadWAVHeader(r io.Reader) (int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a WAV file")
	}

	sampleRate := 0
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return 0, fmt.Errorf("fmt chunk too small: %d", size)
			}
			var f [16]byte
			if _, err := io.ReadFull(r, f[:]); err != nil {
				return 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(f[0:2])
			channels := binary.LittleEndian.Uint16(f[2:4])
			bits := binary.LittleEndian.Uint16(f[14:16])
			if format != 1 || channels != 1 || bits != 16 {
				return 0, fmt.Errorf("unsupported WAV format: format=%d channels=%d bits=%d", format, channels, bits)
			}
			sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			if err := skip(r, size-16+size%2); err != nil {
				return 0, err
			}
		case "data":
			if sampleRate == 0 {
				return 0, fmt.Errorf("data chunk before fmt chunk")
			}
			return sampleRate, nil
		default:
			if err := skip(r, size+size%2); err != nil {
				return 0, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip chunk: %w", err)
	}
	return nil
}

// RMS returns the root-mean-square amplitude of 16-bit little-endian PCM,
// scaled to [0,1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := sampleAt(pcm, i)
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// sampleAt decodes the i-th 16-bit sample of pcm into [-1,1].
func sampleAt(pcm []byte, i int) float64 {
	return float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
}
