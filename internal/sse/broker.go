// Package sse implements a Server-Sent Events broker that streams document
// lifecycle events and vault changes to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/cache"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type changeReq struct {
	kind string
	path string
}

// DocumentEvent is the data of every "document.<type>" event.
type DocumentEvent struct {
	Path       string    `json:"path"`
	Kind       string    `json:"kind"`
	BufferID   string    `json:"buffer_id,omitempty"`
	Version    int64     `json:"version"`
	Full       *bool     `json:"full,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DurationMS *float64  `json:"duration_ms,omitempty"`
	Ranges     int       `json:"ranges,omitempty"`
	At         time.Time `json:"at"`
}

func newDocumentEvent(ev cache.Event) DocumentEvent {
	out := DocumentEvent{
		Path:     ev.Path,
		Kind:     string(ev.Kind),
		BufferID: ev.BufferID,
		Version:  ev.Version,
		At:       ev.Time,
	}
	if p := ev.Parse; p != nil {
		full := p.Full
		ms := float64(p.Duration) / float64(time.Millisecond)
		out.Full = &full
		out.Reason = p.Reason
		out.DurationMS = &ms
		out.Ranges = p.Ranges
	}
	return out
}

// docKey identifies one live document: a buffer by id, a file by path.
func docKey(ev cache.Event) string {
	if ev.BufferID != "" {
		return "buffer:" + ev.BufferID
	}
	return string(ev.Kind) + ":" + ev.Path
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the index throttle
// timestamp and the last version announced per document. Public methods
// talk to it over channels.
type Broker struct {
	indexMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	docCh         chan cache.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one index.updated event per
// indexThrottle.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}

	b := &Broker{
		indexMin:      indexThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		docCh:         make(chan cache.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	versions := make(map[string]int64)
	var lastIndex time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	indexUpdated := func() {
		now := time.Now()
		if now.Sub(lastIndex) >= b.indexMin {
			lastIndex = now
			broadcast(Event{Type: "index.updated", Data: map[string]string{}})
		}
	}

	for {
		select {
		case <-b.stopCh:
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

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			broadcast(Event{Type: "vault." + req.kind, Data: map[string]string{"path": req.path}})
			indexUpdated()

		case ev := <-b.docCh:
			key := docKey(ev)
			switch ev.Type {
			case cache.EventParsed, cache.EventSynced:
				// Parse results can arrive after a newer version was announced.
				if last, ok := versions[key]; ok && ev.Version < last {
					continue
				}
				versions[key] = ev.Version
			case cache.EventLoaded:
				versions[key] = ev.Version
			case cache.EventEvicted, cache.EventUnloaded:
				delete(versions, key)
			}
			broadcast(Event{Type: "document." + string(ev.Type), Data: newDocumentEvent(ev)})
			if ev.Type == cache.EventSynced {
				indexUpdated()
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
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
	case b.countReqCh <- resp:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange announces a watcher-driven vault change followed by a
// throttled index.updated event.
func (b *Broker) PublishChange(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// Listen forwards a document lifecycle event as "document.<type>" with a
// DocumentEvent payload. Parse results older than the last version seen
// for the same document are dropped, and a synced event also counts
// towards the throttled index.updated. It has the cache.Listener
// signature.
func (b *Broker) Listen(ev cache.Event) error {
	if b.closed.Load() {
		return fmt.Errorf("sse: broker closed")
	}
	select {
	case b.docCh <- ev:
	case <-b.stopped:
		return fmt.Errorf("sse: broker closed")
	}
	return nil
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
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
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
