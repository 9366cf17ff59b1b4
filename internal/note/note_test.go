package note

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trim", "  hello  ", "hello"},
		{"lowercase", "Meeting Moved", "meeting moved"},
		{"collapse whitespace", "a  \t b\n\nc", "a b c"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  the report  shows growth ", "The report shows growth"},
		{"Already Capitalized", "Already Capitalized"},
		{"3pm meeting", "3pm meeting"},
		{"élan vital", "Élan vital"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Clean(tt.input); got != tt.expected {
			t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCountWords(t *testing.T) {
	if got := CountWords("  one two\tthree\n"); got != 3 {
		t.Errorf("CountWords() = %d, want 3", got)
	}
	if got := CountWords(""); got != 0 {
		t.Errorf("CountWords(\"\") = %d, want 0", got)
	}
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	n, err := New("  budget approved for q3 ", now)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(n.ID) != 26 {
		t.Errorf("ID length = %d, want 26 (ULID)", len(n.ID))
	}
	if n.Content != "Budget approved for q3" {
		t.Errorf("Content = %q", n.Content)
	}
	if n.RawTranscript != "  budget approved for q3 " {
		t.Errorf("RawTranscript = %q", n.RawTranscript)
	}
	if !n.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, now)
	}
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for range 100 {
		id, err := NewID(now)
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
