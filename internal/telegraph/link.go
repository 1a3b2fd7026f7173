package telegraph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Link tracks whether a platform adapter has authenticated and whether it
// was closed. The zero value is disconnected; Name prefixes its errors.
type Link struct {
	Name string

	mu        sync.Mutex
	connected bool
	closed    bool
}

// Open runs login once. Later calls after a successful login do nothing;
// calls after Close fail.
func (l *Link) Open(login func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("%s: adapter already closed", l.Name)
	}
	if l.connected {
		return nil
	}
	if err := login(); err != nil {
		return err
	}
	l.connected = true
	return nil
}

// Ready fails unless Open has succeeded and Close has not been called.
func (l *Link) Ready() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return fmt.Errorf("%s: not connected", l.Name)
	}
	return nil
}

// Shut marks the link closed for good.
func (l *Link) Shut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.connected = false
}

// Target returns the channel a message goes to: its own, else fallback.
func Target(msg OutboundMessage, fallback string) string {
	if msg.ChannelID != "" {
		return msg.ChannelID
	}
	return fallback
}

// RateLimited reports whether err is a platform rate limit and how long the
// platform asked to wait (zero when it did not say).
type RateLimited func(err error) (time.Duration, bool)

// RetryPolicy bounds retries of rate-limited calls. Waits the platform does
// not dictate grow from Base, doubling per attempt, capped at Max.
type RetryPolicy struct {
	Name     string
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// Do calls fn, retrying while limited recognizes its error and attempts
// remain. Other errors are returned at once.
func (p RetryPolicy) Do(ctx context.Context, limited RateLimited, fn func() error) error {
	wait := p.Base
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		after, ok := limited(err)
		if !ok || attempt >= p.Attempts {
			return err
		}

		d := after
		if d <= 0 {
			d = wait
			wait *= 2
			if p.Max > 0 && wait > p.Max {
				wait = p.Max
			}
		}
		log.Printf("%s: rate limited (attempt %d/%d), retrying in %v", p.Name, attempt+1, p.Attempts, d)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}
