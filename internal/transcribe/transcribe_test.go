package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hpungsan/jot/internal/config"
)

func TestFunc(t *testing.T) {
	var gotLang string
	f := Func(func(_ context.Context, wav []byte, language string) (string, error) {
		gotLang = language
		return string(wav), nil
	})

	text, err := f.Transcribe(context.Background(), []byte("hi"), "en")
	require.NoError(t, err)
	require.Equal(t, "hi", text)
	require.Equal(t, "en", gotLang)
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(context.Background(), cfg)
	require.Error(t, err, "missing key")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	tr, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &OpenAI{}, tr)

	cfg.Backend = "carrier-pigeon"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  Budget approved for Q3  "}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "", srv.URL+"/", option.WithMaxRetries(0))
	text, err := o.Transcribe(context.Background(), []byte("RIFF...."), "en-US")
	require.NoError(t, err)
	require.Equal(t, "Budget approved for Q3", text)
}

func TestOpenAI_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "whisper-1", srv.URL+"/", option.WithMaxRetries(0))
	_, err := o.Transcribe(context.Background(), []byte("x"), "en")
	require.Error(t, err)
}

func TestWhisperLanguage(t *testing.T) {
	tests := map[string]string{
		"en":     "en",
		"en-US":  "en",
		" DE-de": "de",
		"":       "",
	}
	for input, want := range tests {
		if got := whisperLanguage(input); got != want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestGCP_Transcribe(t *testing.T) {
	var got *speechpb.RecognizeRequest
	g := &GCP{
		sampleRate: 16000,
		recognize: func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			got = req
			return &speechpb.RecognizeResponse{
				Results: []*speechpb.SpeechRecognitionResult{
					{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " The meeting moved "}}},
					{},
					{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "to 3pm tomorrow"}, {Transcript: "ignored"}}},
				},
			}, nil
		},
	}

	text, err := g.Transcribe(context.Background(), []byte("wav"), "")
	require.NoError(t, err)
	require.Equal(t, "The meeting moved to 3pm tomorrow", text)

	require.Equal(t, speechpb.RecognitionConfig_LINEAR16, got.GetConfig().GetEncoding())
	require.Equal(t, int32(16000), got.GetConfig().GetSampleRateHertz())
	require.Equal(t, "en-US", got.GetConfig().GetLanguageCode())
	require.Equal(t, []byte("wav"), got.GetAudio().GetContent())
	require.NoError(t, g.Close())
}

func TestGCP_Errors(t *testing.T) {
	g := &GCP{recognize: func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, status.Error(codes.DeadlineExceeded, "slow")
	}}
	_, err := g.Transcribe(context.Background(), nil, "en")
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	g.recognize = func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "nope")
	}
	_, err = g.Transcribe(context.Background(), nil, "en")
	require.Error(t, err)
	require.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestJoinResults_Empty(t *testing.T) {
	require.Equal(t, "", joinResults(nil))
	require.Equal(t, "", joinResults(&speechpb.RecognizeResponse{}))
}
