package quiz

import (
	"sync"
	"time"
)

// Ticker abstracts time.Ticker so tests can drive the countdown manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds the ticker a countdown runs on.
type TickerFactory func(d time.Duration) Ticker

// NewRealTicker is the production TickerFactory.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Countdown invokes onTick once per ticker period until stopped. It is a
// resource with an explicit lifecycle: the owner must call Stop on every path
// that abandons it, and Stop is safe to call more than once and concurrently
// with a firing tick. A tick that races with Stop may still be delivered; the
// owner's own state guards make that delivery a no-op.
type Countdown struct {
	ticker Ticker
	done   chan struct{}
	once   sync.Once
}

// StartCountdown starts the tick loop on its own goroutine.
func StartCountdown(tf TickerFactory, onTick func()) *Countdown {
	c := &Countdown{
		ticker: tf(time.Second),
		done:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-c.done:
				return
			case <-c.ticker.C():
				onTick()
			}
		}
	}()

	return c
}

// Stop terminates the tick loop.
func (c *Countdown) Stop() {
	c.once.Do(func() {
		close(c.done)
		c.ticker.Stop()
	})
}
