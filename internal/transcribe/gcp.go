package transcribe

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recognizeFunc is the single RPC the GCP transcriber needs.
type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GCP transcribes through Google Cloud Speech-to-Text synchronous recognition.
type GCP struct {
	recognize  recognizeFunc
	sampleRate int
	close      func() error
}

var _ Transcriber = (*GCP)(nil)

// NewGCP creates a Cloud Speech client. An empty credentialsFile uses
// application default credentials.
func NewGCP(ctx context.Context, credentialsFile string, sampleRate int) (*GCP, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &GCP{
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return c.Recognize(ctx, req)
		},
		sampleRate: sampleRate,
		close:      c.Close,
	}, nil
}

// Close releases the client connection.
func (g *GCP) Close() error {
	if g == nil || g.close == nil {
		return nil
	}
	return g.close()
}

// Transcribe implements Transcriber. The WAV header is sent as is; LINEAR16
// recognition reads the rate from the config.
func (g *GCP) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if language == "" {
		language = "en-US"
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.sampleRate),
			AudioChannelCount:          1,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav},
		},
	}

	resp, err := g.recognize(ctx, req)
	if err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return "", fmt.Errorf("speech recognize: %w", context.DeadlineExceeded)
		}
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	return joinResults(resp), nil
}

// joinResults concatenates the top alternative of every result.
func joinResults(resp *speechpb.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
