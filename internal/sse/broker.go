// Package sse streams graph change notifications to browser clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/vaultgraph/internal/watcher"
)

// Event types emitted on the stream.
const (
	TypeNoteSynced   = "note.synced"
	TypeNoteDeleted  = "note.deleted"
	TypeGraphUpdated = "graph.updated"
	TypeWatcherStats = "watcher.stats"
)

// DefaultGraphThrottle is the minimum spacing between graph.updated events.
const DefaultGraphThrottle = 2 * time.Second

const clientBuffer = 64

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans events out to subscribed clients.
//
// A single loop goroutine owns the client set and the graph.updated
// throttle; public methods talk to it over channels. A note change that
// arrives inside the throttle window is not lost: one trailing
// graph.updated is sent when the window closes.
type Broker struct {
	graphMin time.Duration
	logger   *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. graphThrottle <= 0 selects DefaultGraphThrottle.
func NewBroker(graphThrottle time.Duration, logger *slog.Logger) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = DefaultGraphThrottle
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		graphMin:      graphThrottle,
		logger:        logger,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastGraph time.Time
		trailing  *time.Timer
		trailC    <-chan time.Time
	)

	broadcast := func(ev Event) {
		raw, err := encode(ev)
		if err != nil {
			b.logger.Warn("sse: encode failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client; drop rather than stall the loop
			}
		}
	}

	graphUpdated := func(now time.Time) {
		lastGraph = now
		broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			broadcast(ev)

		case ev := <-b.changeCh:
			broadcast(ev)
			now := time.Now()
			if wait := b.graphMin - now.Sub(lastGraph); wait > 0 {
				if trailC == nil {
					trailing = time.NewTimer(wait)
					trailC = trailing.C
				}
				continue
			}
			graphUpdated(now)

		case now := <-trailC:
			trailing, trailC = nil, nil
			graphUpdated(now)

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", ev.Type, payload), nil
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends ev to every client as is.
func (b *Broker) Publish(ev Event) {
	b.send(b.publishCh, ev)
}

// NoteChanged publishes a note.synced or note.deleted event for the
// vault-relative path, followed by a throttled graph.updated.
func (b *Broker) NoteChanged(kind, path string) {
	var typ string
	switch kind {
	case "synced":
		typ = TypeNoteSynced
	case "deleted":
		typ = TypeNoteDeleted
	default:
		return
	}
	b.send(b.changeCh, Event{Type: typ, Data: map[string]string{"path": path}})
}

// PublishWatcherStats publishes a watcher.stats snapshot.
func (b *Broker) PublishWatcherStats(c watcher.Counters) {
	b.send(b.publishCh, Event{Type: TypeWatcherStats, Data: c})
}

func (b *Broker) send(ch chan Event, ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case ch <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects
// (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
