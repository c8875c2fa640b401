package session

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a hard floor on the spacing between sends: at most
// one datagram leaves every interval, measured from the last send
// that actually went out. Modelled on the teacher's lib/pacer gate —
// a single-slot channel that a caller must drain before sending and
// that is refilled, after a delay, once the send completes — but
// without that package's exponential-backoff calculator, since AniDB's
// rate limit is a fixed interval rather than an adaptive one.
type Pacer struct {
	interval time.Duration
	gate     chan struct{}

	mu   sync.Mutex
	last time.Time
}

// NewPacer returns a Pacer enforcing the given fixed interval between
// sends. The first call through Wait never blocks.
func NewPacer(interval time.Duration) *Pacer {
	p := &Pacer{interval: interval, gate: make(chan struct{}, 1)}
	p.gate <- struct{}{}
	return p
}

// Wait blocks until it is this caller's turn to send, then reserves
// the slot; the caller must call Done when the send attempt (success
// or failure) has completed.
func (p *Pacer) Wait(ctx context.Context) error {
	select {
	case <-p.gate:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	wait := p.interval - time.Since(p.last)
	p.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			p.gate <- struct{}{}
			return ctx.Err()
		}
	}
	return nil
}

// Done releases the pacing slot, recording the current time as the
// reference point for the next Wait's interval.
func (p *Pacer) Done() {
	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	p.gate <- struct{}{}
}
