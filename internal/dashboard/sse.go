package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/obras/internal/fases"
)

// Events fans phase events out to connected SSE clients. Publish never
// blocks; a client that falls behind misses events.
type Events struct {
	mu   sync.Mutex
	subs map[chan fases.Event]struct{}
}

// NewEvents creates an empty hub.
func NewEvents() *Events {
	return &Events{subs: make(map[chan fases.Event]struct{})}
}

// Publish hands evt to every subscriber. It has the shape of a tracker hook.
func (e *Events) Publish(evt fases.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of connected clients.
func (e *Events) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Events) subscribe() chan fases.Event {
	ch := make(chan fases.Event, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

func (e *Events) unsubscribe(ch chan fases.Event) {
	e.mu.Lock()
	delete(e.subs, ch)
	e.mu.Unlock()
}

// phaseEvent is the data of a "phase" SSE event.
type phaseEvent struct {
	Obra  string          `json:"obra"`
	Phase fases.Phase     `json:"phase"`
	Name  string          `json:"name"`
	Kind  fases.EventKind `json:"kind"`
	Date  string          `json:"date"`
}

// handleSSE streams phase events until the client goes away.
func handleSSE(events *Events) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		if events == nil {
			writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
			c.Writer.Flush()
			return
		}

		ch := events.subscribe()
		defer events.unsubscribe(ch)

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case evt := <-ch:
				writeSSE(c.Writer, "phase", phaseEvent{
					Obra:  evt.Obra,
					Phase: evt.Phase,
					Name:  evt.Phase.Name(),
					Kind:  evt.Kind,
					Date:  evt.Date,
				})
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
