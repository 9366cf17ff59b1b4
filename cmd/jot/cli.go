package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/board"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/logger"
	"github.com/hpungsan/jot/internal/note"
	"github.com/hpungsan/jot/internal/pipeline"
	"github.com/hpungsan/jot/internal/quality"
	"github.com/hpungsan/jot/internal/similarity"
	"github.com/hpungsan/jot/internal/transcribe"
)

// appEnv carries what the commands share. journal is nil when disabled.
type appEnv struct {
	cfg            *config.Config
	log            *logger.Logger
	journal        *db.Journal
	newTranscriber func(context.Context, *config.Config) (transcribe.Transcriber, error)
}

// transcriber builds the configured transcriber and a function releasing it.
func (e *appEnv) transcriber(ctx context.Context) (transcribe.Transcriber, func(), error) {
	tr, err := e.newTranscriber(ctx, e.cfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {}
	if c, ok := tr.(io.Closer); ok {
		release = func() { _ = c.Close() }
	}
	return tr, release, nil
}

func (e *appEnv) pipelineOptions() []pipeline.Option {
	if e.journal == nil {
		return nil
	}
	return []pipeline.Option{pipeline.WithJournal(e.journal)}
}

// newCLIApp creates the CLI application with all commands. env may be nil
// when only help or version output is needed.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "jot",
		Usage:   "Live speech to notes",
		Version: Version,
		Commands: []*cli.Command{
			listenCmd(env),
			scoreCmd(),
			similarCmd(),
			segmentsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// Event is one line of listen output.
type Event struct {
	Type   string           `json:"type"`
	Time   time.Time        `json:"time"`
	Note   *note.Note       `json:"note,omitempty"`
	Level  *float64         `json:"level,omitempty"`
	Status *pipeline.Status `json:"status,omitempty"`
}

// listenCmd creates the listen command.
func listenCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Record a session and print notes as NDJSON events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read a 16-bit mono WAV file instead of the microphone"},
			&cli.BoolFlag{Name: "realtime", Value: true, Usage: "Pace --file at its sample rate"},
			&cli.BoolFlag{Name: "stdin", Usage: "Read raw 16-bit mono PCM at sample_rate from stdin"},
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Usage: "Capture command (overrides capture_command)"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Stop after this long (default: until interrupted)"},
			&cli.DurationFlag{Name: "level-interval", Value: 250 * time.Millisecond, Usage: "How often to print level events (0 disables)"},
		},
		Action: func(c *cli.Context) error {
			dev, err := listenDevice(c, env.cfg)
			if err != nil {
				return outputError(err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if d := c.Duration("duration"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			tr, release, err := env.transcriber(ctx)
			if err != nil {
				return outputError(err)
			}
			defer release()

			b := board.New()
			pipe := pipeline.New(env.cfg, tr, b, env.log, env.pipelineOptions()...)
			notes, unsubscribe := b.Subscribe(64)
			defer unsubscribe()

			if err := pipe.StartSession(ctx, dev); err != nil {
				return outputError(err)
			}

			return streamEvents(ctx, c.App.Writer, pipe, notes, c.Duration("level-interval"))
		},
	}
}

// listenDevice picks the audio source from the listen flags.
func listenDevice(c *cli.Context, cfg *config.Config) (audio.Device, error) {
	switch {
	case c.String("file") != "":
		return audio.FileDevice{Path: c.String("file"), Realtime: c.Bool("realtime")}, nil
	case c.Bool("stdin"):
		if !stdinHasData() {
			return nil, errors.NewInvalidRequest("--stdin needs PCM piped via stdin")
		}
		return audio.ReaderDevice{Label: "stdin", R: os.Stdin, SampleRate: cfg.SampleRate}, nil
	}

	command := c.String("command")
	if command == "" {
		command = cfg.CaptureCommand
	}
	if strings.TrimSpace(command) == "" {
		return nil, errors.NewInvalidRequest("no audio source: use --file, --stdin or --command")
	}
	return audio.CommandDevice{Command: command, SampleRate: cfg.SampleRate}, nil
}

// streamEvents writes note and level events until the session ends, stopping
// it when ctx is done. The final event is the closing status.
func streamEvents(ctx context.Context, w io.Writer, pipe *pipeline.Pipeline, notes <-chan note.Note, levelEvery time.Duration) error {
	enc := json.NewEncoder(w)
	done := pipe.Done()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return pipe.StopSession()
		case <-done:
			return nil
		}
	})

	g.Go(func() error {
		var levels <-chan time.Time
		if levelEvery > 0 {
			ticker := time.NewTicker(levelEvery)
			defer ticker.Stop()
			levels = ticker.C
		}

		for {
			select {
			case n := <-notes:
				if err := enc.Encode(Event{Type: "note", Time: time.Now(), Note: &n}); err != nil {
					return err
				}
			case <-levels:
				level := pipe.Status().Level
				if err := enc.Encode(Event{Type: "level", Time: time.Now(), Level: &level}); err != nil {
					return err
				}
			case <-done:
				// notes accepted by the final flush are already buffered
				for {
					select {
					case n := <-notes:
						if err := enc.Encode(Event{Type: "note", Time: time.Now(), Note: &n}); err != nil {
							return err
						}
					default:
						status := pipe.Status()
						return enc.Encode(Event{Type: "status", Time: time.Now(), Status: &status})
					}
				}
			}
		}
	})

	return g.Wait()
}

// scoreCmd creates the score command.
func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score how noteworthy a transcript is (text from args or stdin)",
		ArgsUsage: "[text]",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				if text, err = readStdin(); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if strings.TrimSpace(text) == "" {
				return outputError(errors.NewInvalidRequest("text is required"))
			}

			q := quality.Score(text)
			return outputJSON(c.App.Writer, map[string]any{
				"text":     text,
				"quality":  q,
				"accepted": q.Score >= pipeline.AcceptThreshold,
			})
		},
	}
}

// similarCmd creates the similar command.
func similarCmd() *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "Compare two transcripts the way duplicate detection does",
		ArgsUsage: "<a> <b>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("exactly two texts are required"))
			}
			a, b := c.Args().Get(0), c.Args().Get(1)

			return outputJSON(c.App.Writer, map[string]any{
				"word_overlap":    similarity.WordOverlap(a, b),
				"word_duplicate":  similarity.IsWordDuplicate(a, b),
				"edit_similarity": similarity.EditSimilarity(a, b),
				"edit_duplicate":  similarity.IsEditDuplicate(a, b),
			})
		},
	}
}

// segmentsCmd creates the segments command.
func segmentsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "segments",
		Usage: "List recent flush decisions from the segment journal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session ID"},
			&cli.StringFlag{Name: "outcome", Aliases: []string{"o"}, Usage: "Filter by outcome (accepted, low_quality, ...)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: db.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			if env.journal == nil {
				return outputError(errors.NewInvalidRequest("segment journal is disabled"))
			}
			if c.Int("limit") < 0 || c.Int("offset") < 0 {
				return outputError(errors.NewInvalidRequest("limit and offset must not be negative"))
			}

			segments, total, err := env.journal.Recent(db.ListOptions{
				SessionID: c.String("session"),
				Outcome:   c.String("outcome"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, map[string]any{
				"segments": segments,
				"total":    total,
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var jotErr *errors.JotError
	if stderrors.As(err, &jotErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", jotErr.Code, jotErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
