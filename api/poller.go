package api

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/createathon/client-go/domain"
)

// Poll intervals matching the web client's fixed timers.
const (
	// DiscussionPollInterval is how often an open discussion thread is
	// re-fetched.
	DiscussionPollInterval = 2 * time.Minute

	// DashboardPollInterval is how often dashboard statistics are
	// re-fetched.
	DashboardPollInterval = 5 * time.Minute
)

// Poller invokes a function at a fixed interval until its context is
// cancelled. Cancellation is the teardown path: a stopped poller delivers
// no further invocations, so nothing leaks to a caller that has moved on.
type Poller struct {
	interval time.Duration
	fn       func(context.Context) error
}

// NewPoller creates a poller running fn every interval.
func NewPoller(interval time.Duration, fn func(context.Context) error) *Poller {
	return &Poller{interval: interval, fn: fn}
}

// Run blocks, invoking the function on each tick, and returns ctx.Err()
// once the context is cancelled. Errors from the function are logged and
// do not stop the loop; the next tick tries again.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fn(ctx); err != nil {
				log.Warn().Err(err).Msg("Poll failed")
			}
		}
	}
}

// WatchDiscussions fetches a challenge's discussion thread immediately
// and then on every interval tick, passing each snapshot to handler.
// Blocks until ctx is cancelled.
func (c *Client) WatchDiscussions(ctx context.Context, challengeID int, interval time.Duration, handler func([]domain.Discussion)) error {
	fetch := func(ctx context.Context) error {
		discussions, err := c.Discussions(ctx, challengeID)
		if err != nil {
			return err
		}
		handler(discussions)
		return nil
	}

	if err := fetch(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial discussion fetch failed")
	}
	return NewPoller(interval, fetch).Run(ctx)
}

// WatchStatistics re-fetches the dashboard aggregates on every interval
// tick, passing each snapshot to handler. Blocks until ctx is cancelled.
func (c *Client) WatchStatistics(ctx context.Context, interval time.Duration, handler func(*domain.Statistics)) error {
	fetch := func(ctx context.Context) error {
		stats, err := c.Statistics(ctx)
		if err != nil {
			return err
		}
		handler(stats)
		return nil
	}

	if err := fetch(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial statistics fetch failed")
	}
	return NewPoller(interval, fetch).Run(ctx)
}
