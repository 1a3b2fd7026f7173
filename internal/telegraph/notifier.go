package telegraph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zulandar/obras/internal/fases"
)

// defaultQueueSize bounds the events waiting to be posted.
const defaultQueueSize = 64

// Notifier posts phase events to every configured adapter.
type Notifier struct {
	adapters []Adapter
	queue    chan fases.Event

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NotifierOpts holds parameters for creating a Notifier.
type NotifierOpts struct {
	Adapters  []Adapter
	QueueSize int // defaults to defaultQueueSize
}

// NewNotifier creates a Notifier. At least one adapter is required.
func NewNotifier(opts NotifierOpts) (*Notifier, error) {
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("telegraph: at least one adapter is required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Notifier{
		adapters: opts.Adapters,
		queue:    make(chan fases.Event, size),
		done:     make(chan struct{}),
	}, nil
}

// Connect connects every adapter.
func (n *Notifier) Connect(ctx context.Context) error {
	for _, a := range n.adapters {
		if err := a.Connect(ctx); err != nil {
			return fmt.Errorf("telegraph: connect: %w", err)
		}
	}
	return nil
}

// Send posts one event to every adapter and waits for the result. Every
// adapter is tried even if an earlier one fails.
func (n *Notifier) Send(ctx context.Context, ev fases.Event) error {
	msg := PhaseEventMessage(ev)
	var errs []error
	for _, a := range n.adapters {
		if err := a.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegraph: send: %w", errors.Join(errs...))
	}
	return nil
}

// Start connects the adapters and posts queued events in the background
// until ctx is cancelled or Close is called.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started || n.closed {
		n.mu.Unlock()
		return fmt.Errorf("telegraph: notifier already started")
	}
	n.started = true
	n.mu.Unlock()

	if err := n.Connect(ctx); err != nil {
		close(n.done)
		return err
	}
	go n.run(ctx)
	return nil
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.queue:
			if !ok {
				return
			}
			if err := n.Send(ctx, ev); err != nil {
				log.Printf("telegraph: %s %s for %s not posted: %v", ev.Kind, ev.Phase, ev.Obra, err)
			}
		}
	}
}

// Hook queues an event without blocking. It has the signature of
// fases.Options.Hook. Events are dropped when the queue is full or the
// notifier is closed.
func (n *Notifier) Hook(ev fases.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		log.Printf("telegraph: queue full, dropping %s %s for %s", ev.Kind, ev.Phase, ev.Obra)
	}
}

// Close stops accepting events, waits for the queued ones to be posted and
// closes the adapters.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	started := n.started
	close(n.queue)
	n.mu.Unlock()

	if started {
		<-n.done
	}
	var errs []error
	for _, a := range n.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
