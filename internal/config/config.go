package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Language is the transcription locale hint sent with every chunk.
	Language string `json:"language,omitempty"`

	// Backend selects the transcription service: "openai" or "gcp".
	Backend string `json:"backend,omitempty"`

	// OpenAIModel is the transcription model name (default whisper-1).
	OpenAIModel string `json:"openai_model,omitempty"`

	// OpenAIBaseURL points the OpenAI client at a compatible server.
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// GCPCredentialsFile is a service account JSON file for the gcp backend.
	// Empty means application default credentials.
	GCPCredentialsFile string `json:"gcp_credentials_file,omitempty"`

	// CaptureCommand is run to capture the microphone when no input file is given.
	// It must write signed 16-bit little-endian mono PCM at SampleRate to stdout.
	CaptureCommand string `json:"capture_command,omitempty"`

	// SampleRate of the PCM input in Hz.
	SampleRate int `json:"sample_rate,omitempty"`

	SampleIntervalMS     int `json:"sample_interval_ms,omitempty"`
	ChunkMS              int `json:"chunk_ms,omitempty"`
	PauseMS              int `json:"pause_ms,omitempty"`
	MinNoteGapMS         int `json:"min_note_gap_ms,omitempty"`
	StaleMS              int `json:"stale_ms,omitempty"`
	TranscribeTimeoutMS  int `json:"transcribe_timeout_ms,omitempty"`
	MinWords             int `json:"min_words,omitempty"`
	MaxWords             int `json:"max_words,omitempty"`
	MinChunkBytes        int `json:"min_chunk_bytes,omitempty"`
	MaxTranscriptionErrs int `json:"max_transcription_errors,omitempty"`

	// MinSilenceLevel is the input level below which a sample counts as silence.
	MinSilenceLevel float64 `json:"min_silence_level,omitempty"`

	// MinChunkRMS drops chunks quieter than this before they reach the transcriber.
	MinChunkRMS float64 `json:"min_chunk_rms,omitempty"`

	// AllowedPaths lists extra directories whose WAV files MCP clients may
	// play. ~/.jot/recordings is always allowed.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lets MCP clients play WAV files from any directory.
	// Symlinked files are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// JournalDisabled turns off the SQLite segment journal.
	JournalDisabled bool `json:"journal_disabled,omitempty"`

	// LogMode is "development" (default) or "production".
	LogMode string `json:"log_mode,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:             "en",
		Backend:              "openai",
		OpenAIModel:          "whisper-1",
		CaptureCommand:       "arecord -q -f S16_LE -c 1 -r 16000 -t raw",
		SampleRate:           16000,
		SampleIntervalMS:     33,
		ChunkMS:              1000,
		PauseMS:              400,
		MinNoteGapMS:         800,
		StaleMS:              3000,
		TranscribeTimeoutMS:  10000,
		MinWords:             3,
		MaxWords:             150,
		MinChunkBytes:        800,
		MaxTranscriptionErrs: 3,
		MinSilenceLevel:      0.02,
		MinChunkRMS:          0.005,
		LogMode:              "development",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.jot.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.jot) and repo (.jot) directories.
// Repo config is found by walking upward from startDir to find the nearest .jot/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .jot/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".jot", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		Language:             pick(overlay.Language, base.Language),
		Backend:              pick(overlay.Backend, base.Backend),
		OpenAIModel:          pick(overlay.OpenAIModel, base.OpenAIModel),
		OpenAIBaseURL:        pick(overlay.OpenAIBaseURL, base.OpenAIBaseURL),
		GCPCredentialsFile:   pick(overlay.GCPCredentialsFile, base.GCPCredentialsFile),
		CaptureCommand:       pick(overlay.CaptureCommand, base.CaptureCommand),
		SampleRate:           pick(overlay.SampleRate, base.SampleRate),
		SampleIntervalMS:     pick(overlay.SampleIntervalMS, base.SampleIntervalMS),
		ChunkMS:              pick(overlay.ChunkMS, base.ChunkMS),
		PauseMS:              pick(overlay.PauseMS, base.PauseMS),
		MinNoteGapMS:         pick(overlay.MinNoteGapMS, base.MinNoteGapMS),
		StaleMS:              pick(overlay.StaleMS, base.StaleMS),
		TranscribeTimeoutMS:  pick(overlay.TranscribeTimeoutMS, base.TranscribeTimeoutMS),
		MinWords:             pick(overlay.MinWords, base.MinWords),
		MaxWords:             pick(overlay.MaxWords, base.MaxWords),
		MinChunkBytes:        pick(overlay.MinChunkBytes, base.MinChunkBytes),
		MaxTranscriptionErrs: pick(overlay.MaxTranscriptionErrs, base.MaxTranscriptionErrs),
		MinSilenceLevel:      pick(overlay.MinSilenceLevel, base.MinSilenceLevel),
		MinChunkRMS:          pick(overlay.MinChunkRMS, base.MinChunkRMS),
		LogMode:              pick(overlay.LogMode, base.LogMode),
	}

	// Booleans: overlay wins if true, else base
	result.JournalDisabled = base.JournalDisabled || overlay.JournalDisabled
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
