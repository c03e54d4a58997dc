package poller

import (
	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/registry"
)

// shouldNotify decides whether a refresh warrants a new-post notification.
// The first completed refresh only establishes the baseline. After that, a
// notification fires exactly when a previous newest-item id existed, a new
// newest item exists, and their ids differ. At most one notification per
// account per cycle follows from evaluating this once per refresh.
func shouldNotify(baseline registry.RefreshBaseline, items []models.Content) bool {
	if !baseline.Initialized {
		return false
	}
	if baseline.LatestItemID == "" || len(items) == 0 {
		return false
	}
	return items[0].ID != baseline.LatestItemID
}
