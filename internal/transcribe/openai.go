package transcribe

import (
	"bytes"
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "whisper-1"

// OpenAI transcribes through the OpenAI audio API, or any compatible server
// reached through baseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Transcriber = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI transcriber. Extra request options are applied
// after the key and base URL.
func NewOpenAI(apiKey, model, baseURL string, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: model}
}

// Transcribe implements Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "chunk.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if lang := whisperLanguage(language); lang != "" {
		params.Language = openai.String(lang)
	}

	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

// whisperLanguage reduces a locale such as "en-US" to its ISO-639-1 code.
func whisperLanguage(locale string) string {
	lang, _, _ := strings.Cut(strings.TrimSpace(locale), "-")
	return strings.ToLower(lang)
}
