// Package oauth obtains and renews the Twitch chat token. TwitchSource runs
// the refresh grant; StartRefresher renews a token ahead of its expiry with
// jittered checks.
package oauth

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Refreshable is a token holder that can report its expiry and renew itself.
type Refreshable interface {
	Expiry() time.Time
	Renew(ctx context.Context) error
}

// StartRefresher launches a goroutine that periodically checks src and refreshes it.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window. A zero expiry never triggers.
func StartRefresher(ctx context.Context, name string, src Refreshable, interval, window time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval/2) + 1))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			if exp := src.Expiry(); !exp.IsZero() && time.Until(exp) <= window {
				ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
				err := src.Renew(ctx2)
				cancel()
				if err != nil {
					slog.Warn("token refresh failed", slog.String("provider", name), slog.Any("err", err))
				}
			}

			// Add per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval/5) + 1
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
		}
	}()
}
