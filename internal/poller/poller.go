package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chirpwatch/chirpwatch/internal/broadcast"
	"github.com/chirpwatch/chirpwatch/internal/enrichment"
	"github.com/chirpwatch/chirpwatch/internal/metrics"
	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/registry"
	"github.com/chirpwatch/chirpwatch/internal/twitter"
)

// IdentityResolver maps a handle to the provider-internal account id.
type IdentityResolver interface {
	Resolve(ctx context.Context, username string) (string, error)
}

// Fetcher retrieves a user's recent original posts plus referenced media.
type Fetcher interface {
	RecentPosts(ctx context.Context, userID string) ([]twitter.RawTweet, map[string]twitter.RawMedia, error)
}

// Options wires a Poller's collaborators.
type Options struct {
	Registry    *registry.Registry
	Resolver    IdentityResolver
	Fetcher     Fetcher
	Broadcaster *broadcast.Broadcaster
	// Summarizer is optional; when nil, new_post events carry no summary.
	Summarizer enrichment.Summarizer
	Collector  *metrics.Collector
	Clock      clockwork.Clock
	Interval   time.Duration
	// TokenConfigured false short-circuits every refresh into a
	// configuration-missing error without touching the network.
	TokenConfigured    bool
	CanPersistAccounts bool
	Logger             *slog.Logger
}

// Poller refreshes every watched account on a fixed interval and broadcasts
// the resulting state. One account's failure never delays or aborts the
// others, and never aborts the cycle.
type Poller struct {
	registry    *registry.Registry
	resolver    IdentityResolver
	fetcher     Fetcher
	broadcaster *broadcast.Broadcaster
	summarizer  enrichment.Summarizer
	collector   *metrics.Collector
	clock       clockwork.Clock
	interval    time.Duration
	logger      *slog.Logger

	tokenConfigured    bool
	canPersistAccounts bool

	mu            sync.Mutex
	lastCompleted *time.Time
}

// New creates a poller. It does not start polling; call Run.
func New(opts Options) *Poller {
	return &Poller{
		registry:           opts.Registry,
		resolver:           opts.Resolver,
		fetcher:            opts.Fetcher,
		broadcaster:        opts.Broadcaster,
		summarizer:         opts.Summarizer,
		collector:          opts.Collector,
		clock:              opts.Clock,
		interval:           opts.Interval,
		logger:             opts.Logger,
		tokenConfigured:    opts.TokenConfigured,
		canPersistAccounts: opts.CanPersistAccounts,
	}
}

// Run executes one cycle immediately, then one per interval until the
// context is cancelled. Cycles never overlap: the next tick is not serviced
// until the previous cycle's join has completed.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("starting poller", "interval", p.interval, "accounts", p.registry.Len())

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunCycle(ctx)

	for {
		select {
		case <-ticker.Chan():
			p.RunCycle(ctx)
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		}
	}
}

// RunCycle refreshes every account concurrently, waits for all attempts to
// settle, then broadcasts one full-state snapshot. An unexpected failure of
// the cycle itself becomes a broadcast error event; the schedule continues.
func (p *Poller) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll cycle failed", "panic", r)
			p.broadcaster.Emit(broadcast.EventError, map[string]string{
				"message": fmt.Sprintf("poll cycle failed: %v", r),
			})
		}
	}()

	start := p.clock.Now()
	usernames := p.registry.Usernames()

	var wg sync.WaitGroup
	for _, username := range usernames {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			p.refreshAccount(ctx, username)
		}(username)
	}
	wg.Wait()

	completed := p.clock.Now()
	p.mu.Lock()
	p.lastCompleted = &completed
	p.mu.Unlock()

	p.collector.ObservePollCycle(completed.Sub(start))
	p.broadcaster.Emit(broadcast.EventState, p.StatePayload())

	p.logger.Debug("poll cycle complete", "accounts", len(usernames))
}

// RefreshNow runs the per-account refresh routine for one account outside
// the timer, then broadcasts a full-state snapshot. Used when an account is
// added at runtime or a refresh is requested manually.
func (p *Poller) RefreshNow(ctx context.Context, username string) {
	p.refreshAccount(ctx, username)
	p.broadcaster.Emit(broadcast.EventState, p.StatePayload())
}

// StatePayload assembles the snapshot served by GET /api/state and pushed
// after every cycle.
func (p *Poller) StatePayload() models.StatePayload {
	p.mu.Lock()
	last := p.lastCompleted
	p.mu.Unlock()

	return models.StatePayload{
		TokenConfigured:     p.tokenConfigured,
		CanPersistAccounts:  p.canPersistAccounts,
		SupportsRealtimeSSE: true,
		PollIntervalMS:      p.interval.Milliseconds(),
		ServerTime:          p.clock.Now(),
		LastPollCompletedAt: last,
		Accounts:            p.registry.Snapshot(),
	}
}

// refreshAccount is strictly sequential within one account: resolve, fetch,
// normalize, update registry, maybe notify. Any failure is absorbed into the
// account's lastError and previously known content stays in place.
func (p *Poller) refreshAccount(ctx context.Context, username string) {
	p.registry.BeginAttempt(username, p.clock.Now())

	if !p.tokenConfigured {
		p.registry.RecordFailure(username, "twitter bearer token not configured")
		return
	}

	userID := p.registry.ResolvedID(username)
	if userID == "" {
		id, err := p.resolver.Resolve(ctx, username)
		if err != nil {
			p.fail(username, err)
			return
		}
		userID = id
		p.registry.SetResolvedID(username, id)
	}

	tweets, media, err := p.fetcher.RecentPosts(ctx, userID)
	if err != nil {
		p.fail(username, fmt.Errorf("fetch posts for %q: %w", username, err))
		return
	}

	items := twitter.NormalizeAll(tweets, media, username)
	baseline, ok := p.registry.ApplyItems(username, items)
	if !ok {
		return
	}

	if shouldNotify(baseline, items) {
		p.notifyNewPost(ctx, username)
	}
}

func (p *Poller) fail(username string, err error) {
	p.logger.Warn("account refresh failed", "username", username, "error", err)
	p.registry.RecordFailure(username, err.Error())
	p.collector.IncRefreshFailure(username)
}

func (p *Poller) notifyNewPost(ctx context.Context, username string) {
	state, ok := p.registry.StateOf(username)
	if !ok {
		return
	}

	event := models.NewPostEvent{Account: state}
	if p.summarizer != nil && state.LatestText != "" {
		summary, err := p.summarizer.Summarize(ctx, state.LatestText)
		if err != nil {
			p.logger.Warn("post summary failed", "username", username, "error", err)
		} else {
			event.Summary = summary
		}
	}

	p.logger.Info("new post detected", "username", username, "item_id", state.LatestItemID)
	p.broadcaster.Emit(broadcast.EventNewPost, event)
}
