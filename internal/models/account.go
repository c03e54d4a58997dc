package models

import "time"

// MaxRecentItems caps how many posts are kept per account; the feed fetch
// requests the same number.
const MaxRecentItems = 5

// Account represents a social media account being watched for new posts.
// ResolvedID and Initialized are internal bookkeeping and never serialized.
type Account struct {
	Name            string
	Username        string
	ResolvedID      string
	RecentItems     []Content
	LatestItemID    string
	LatestText      string
	LatestCreatedAt string
	LatestURL       string
	LastError       string
	Initialized     bool
	LastCheckedAt   *time.Time
}

// AccountState is the wire representation of an Account, used both by the
// REST state endpoint and by live-update events.
type AccountState struct {
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	LatestItemID    string     `json:"latestItemId"`
	LatestText      string     `json:"latestText"`
	LatestCreatedAt string     `json:"latestCreatedAt"`
	LatestURL       string     `json:"latestUrl"`
	LastError       string     `json:"lastError,omitempty"`
	LastCheckedAt   *time.Time `json:"lastCheckedAt,omitempty"`
	RecentItems     []Content  `json:"recentItems"`
}

// State builds the serialized view of the account. RecentItems is copied so
// callers can hold the snapshot across later refreshes.
func (a *Account) State() AccountState {
	items := make([]Content, len(a.RecentItems))
	copy(items, a.RecentItems)

	return AccountState{
		Name:            a.Name,
		Username:        a.Username,
		LatestItemID:    a.LatestItemID,
		LatestText:      a.LatestText,
		LatestCreatedAt: a.LatestCreatedAt,
		LatestURL:       a.LatestURL,
		LastError:       a.LastError,
		LastCheckedAt:   a.LastCheckedAt,
		RecentItems:     items,
	}
}

// StatePayload is the full snapshot sent by GET /api/state and by every
// "state" live-update event after a poll cycle completes.
type StatePayload struct {
	TokenConfigured     bool           `json:"tokenConfigured"`
	CanPersistAccounts  bool           `json:"canPersistAccounts"`
	SupportsRealtimeSSE bool           `json:"supportsRealtimeSse"`
	PollIntervalMS      int64          `json:"pollIntervalMs"`
	ServerTime          time.Time      `json:"serverTime"`
	LastPollCompletedAt *time.Time     `json:"lastPollCompletedAt"`
	Accounts            []AccountState `json:"accounts"`
}

// NewPostEvent is the payload of a "new_post" live-update event. Summary is
// present only when an enrichment backend is configured.
type NewPostEvent struct {
	Account AccountState `json:"account"`
	Summary string       `json:"summary,omitempty"`
}
