package poller

import (
	"testing"

	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/registry"
)

func TestShouldNotify(t *testing.T) {
	items := func(ids ...string) []models.Content {
		out := make([]models.Content, len(ids))
		for i, id := range ids {
			out[i] = models.Content{ID: id}
		}
		return out
	}

	tests := []struct {
		name     string
		baseline registry.RefreshBaseline
		items    []models.Content
		want     bool
	}{
		{
			name:     "uninitialized account",
			baseline: registry.RefreshBaseline{},
			items:    items("100"),
			want:     false,
		},
		{
			name:     "initialized with empty prior timeline",
			baseline: registry.RefreshBaseline{Initialized: true},
			items:    items("100"),
			want:     false,
		},
		{
			name:     "timeline emptied",
			baseline: registry.RefreshBaseline{Initialized: true, LatestItemID: "100"},
			items:    nil,
			want:     false,
		},
		{
			name:     "same newest item",
			baseline: registry.RefreshBaseline{Initialized: true, LatestItemID: "100"},
			items:    items("100", "99"),
			want:     false,
		},
		{
			name:     "newest item changed",
			baseline: registry.RefreshBaseline{Initialized: true, LatestItemID: "100"},
			items:    items("101", "100"),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldNotify(tt.baseline, tt.items); got != tt.want {
				t.Errorf("shouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}
