// Package backup writes timestamped snapshots of the contract document to
// one or more sinks, on demand or on a cron schedule.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/obras/internal/metrics"
)

// NameLayout is the timestamp layout used in snapshot names.
const NameLayout = "20060102T150405"

// Source produces the serialized document.
type Source interface {
	Snapshot() ([]byte, error)
}

// Sink stores one snapshot under a name.
type Sink interface {
	Name() string
	Put(ctx context.Context, name string, data []byte) error
}

// Backup snapshots a Source into every configured Sink.
type Backup struct {
	source  Source
	sinks   []Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

// Opts holds parameters for creating a Backup.
type Opts struct {
	Source  Source
	Sinks   []Sink
	Metrics *metrics.Metrics
	Now     func() time.Time // defaults to time.Now
}

// New creates a Backup.
func New(opts Opts) (*Backup, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("backup: source is required")
	}
	if len(opts.Sinks) == 0 {
		return nil, fmt.Errorf("backup: at least one sink is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Backup{source: opts.Source, sinks: opts.Sinks, metrics: opts.Metrics, now: now}, nil
}

// ObjectName returns the snapshot name for t.
func ObjectName(t time.Time) string {
	return "obras-" + t.UTC().Format(NameLayout) + ".json"
}

// Run takes one snapshot and hands it to every sink. Each sink is tried even
// if an earlier one fails; the returned error joins the failures.
func (b *Backup) Run(ctx context.Context) (string, error) {
	data, err := b.source.Snapshot()
	if err != nil {
		return "", fmt.Errorf("backup: snapshot: %w", err)
	}
	name := ObjectName(b.now())

	var errs []error
	for _, s := range b.sinks {
		err := s.Put(ctx, name, data)
		b.metrics.BackedUp(s.Name(), err)
		if err != nil {
			log.Printf("backup: %s: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("backup: %s: %w", s.Name(), err))
			continue
		}
		log.Printf("backup: wrote %s to %s (%d bytes)", name, s.Name(), len(data))
	}
	return name, errors.Join(errs...)
}
