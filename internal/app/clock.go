package app

import "time"

// Clock drives the countdown and supplies the timestamps used for dwell-time
// accounting. Sessions never touch time.Now directly so tests can substitute
// a deterministic clock.
type Clock interface {
	Now() time.Time
	// Tick delivers one value per second while the clock runs.
	Tick() <-chan time.Time
	// Stop halts ticking. Safe to call more than once.
	Stop()
}

type tickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock returns a Clock backed by a 1-second time.Ticker.
func NewTickerClock() Clock {
	return &tickerClock{ticker: time.NewTicker(time.Second)}
}

func (c *tickerClock) Now() time.Time         { return time.Now() }
func (c *tickerClock) Tick() <-chan time.Time { return c.ticker.C }
func (c *tickerClock) Stop()                  { c.ticker.Stop() }
