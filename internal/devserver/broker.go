package devserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/telemetry"
)

const keepAliveInterval = 15 * time.Second

// Broker fans reload events out to connected browsers over server-sent
// events.
type Broker struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan string]struct{})}
}

// Publish sends a reload event carrying id to every client. Slow clients
// that have not drained the previous event are skipped; one pending reload
// is as good as two.
func (b *Broker) Publish(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.clients {
		select {
		case ch <- id:
		default:
		}
	}
}

// Clients returns the number of connected browsers.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broker) subscribe() chan string {
	ch := make(chan string, 1)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Live reload stream cannot be flushed")
		return
	}

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	gauge := telemetry.GetMetrics().LiveReloadClients
	gauge.Add(ctx, 1)
	defer gauge.Add(ctx, -1)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-ch:
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", id); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
