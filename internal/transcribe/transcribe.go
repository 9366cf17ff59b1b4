// Package transcribe turns WAV chunks into text through a speech service.
package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/hpungsan/jot/internal/config"
)

// Backends selectable in config.
const (
	BackendOpenAI = "openai"
	BackendGCP    = "gcp"
)

// Transcriber converts one WAV chunk into text. An empty string with a nil
// error means the service heard nothing.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// Func adapts a function to Transcriber.
type Func func(ctx context.Context, wav []byte, language string) (string, error)

func (f Func) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	return f(ctx, wav, language)
}

// New builds the transcriber selected by cfg.Backend. The OpenAI key comes
// from OPENAI_API_KEY.
func New(ctx context.Context, cfg *config.Config) (Transcriber, error) {
	switch cfg.Backend {
	case "", BackendOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAI(key, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case BackendGCP:
		return NewGCP(ctx, cfg.GCPCredentialsFile, cfg.SampleRate)
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
