package enrichment

import (
	"context"
	"strings"
	"testing"
)

func TestMockSummarizer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "first sentence",
			input: "Launch confirmed. More details to follow soon.",
			want:  "Launch confirmed.",
		},
		{
			name:  "first line",
			input: "Big news today\nthread below",
			want:  "Big news today",
		},
		{
			name:  "no sentence boundary",
			input: "short post with no punctuation",
			want:  "short post with no punctuation",
		},
		{
			name:  "surrounding whitespace",
			input: "  trimmed  ",
			want:  "trimmed",
		},
	}

	s := NewMockSummarizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Summarize(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Summarize() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMockSummarizerCapsLength(t *testing.T) {
	long := strings.Repeat("a", 300)

	got, err := NewMockSummarizer().Summarize(context.Background(), long)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if len([]rune(got)) != 100 {
		t.Errorf("expected 100-rune cap, got %d runes", len([]rune(got)))
	}
}
