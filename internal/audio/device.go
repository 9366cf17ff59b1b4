package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// FileDevice plays a 16-bit mono WAV file as if it were a microphone.
type FileDevice struct {
	Path string
	// Realtime paces reads to the sample rate.
	Realtime bool
}

func (d FileDevice) Name() string { return d.Path }

func (d FileDevice) Open(ctx context.Context) (Stream, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	rate, err := ReadWAVHeader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", d.Path, err)
	}
	return NewPCMStream(ctx, readCloser{Reader: br, Closer: f}, rate, d.Realtime), nil
}

// ReaderDevice reads raw PCM from an already open reader such as stdin.
type ReaderDevice struct {
	Label      string
	R          io.Reader
	SampleRate int
}

func (d ReaderDevice) Name() string { return d.Label }

func (d ReaderDevice) Open(ctx context.Context) (Stream, error) {
	if d.R == nil {
		return nil, errors.New("no reader")
	}
	if d.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", d.SampleRate)
	}
	rc, ok := d.R.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(d.R)
	}
	return NewPCMStream(ctx, rc, d.SampleRate, false), nil
}

// CommandDevice runs a capture program that writes raw PCM to stdout,
// e.g. "arecord -q -f S16_LE -c 1 -r 16000 -t raw".
type CommandDevice struct {
	Command    string
	SampleRate int
}

func (d CommandDevice) Name() string { return d.Command }

func (d CommandDevice) Open(ctx context.Context) (Stream, error) {
	args := strings.Fields(d.Command)
	if len(args) == 0 {
		return nil, errors.New("empty capture command")
	}
	if d.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", d.SampleRate)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return NewPCMStream(ctx, &commandReader{ReadCloser: out, cmd: cmd}, d.SampleRate, false), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// commandReader stops the capture process when the stream closes.
type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (c *commandReader) Close() error {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	return nil
}
