package ledger

import (
	"context"
	"sync"
	"time"
)

// BlockClock supplies the block time stamped on created tokens and
// journaled events. Implementations must be non-decreasing across
// calls.
type BlockClock interface {
	// BlockTime returns the current block time in Unix milliseconds.
	BlockTime(ctx context.Context) (int64, error)
}

// WallClock reads the system clock.
type WallClock struct{}

// BlockTime returns time.Now in Unix milliseconds.
func (WallClock) BlockTime(_ context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}

// StaticClock always returns its fixed value. Used in tests.
type StaticClock int64

// BlockTime returns the fixed value.
func (c StaticClock) BlockTime(_ context.Context) (int64, error) {
	return int64(c), nil
}

// ManualClock returns an explicitly set time. Replay drivers set it
// from the recorded timeline before applying each operation.
type ManualClock struct {
	mu sync.Mutex
	ms int64
}

// Set advances the clock to ms. Earlier values are ignored so the
// clock stays non-decreasing even over a sloppy timeline.
func (c *ManualClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > c.ms {
		c.ms = ms
	}
}

// BlockTime returns the last set value.
func (c *ManualClock) BlockTime(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms, nil
}
