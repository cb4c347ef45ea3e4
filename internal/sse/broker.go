// Package sse streams insights-memo changes to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/fabric-mcp/internal/models"
)

// Event types.
const (
	EventInsightAppended = "insight.appended"
	EventMemoUpdated     = "memo.updated"
	EventPersistFailed   = "memo.persist_failed"
)

// DefaultKeepAlive is the interval between comment pings on idle streams.
const DefaultKeepAlive = 15 * time.Second

// Event is one message to broadcast.
type Event struct {
	Type string
	Data any
}

// Broker fans events out to subscribers.
//
// A single goroutine owns the subscriber set and the memo.updated throttle;
// public methods talk to it over channels.
type Broker struct {
	memoMin   time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	insightCh     chan models.Insight
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits memo.updated at most once per
// memoThrottle.
func NewBroker(memoThrottle time.Duration) *Broker {
	if memoThrottle <= 0 {
		memoThrottle = 2 * time.Second
	}
	b := &Broker{
		memoMin:       memoThrottle,
		keepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		insightCh:     make(chan models.Insight, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)), true
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastMemo time.Time

	broadcast := func(ev Event) {
		raw, ok := encode(ev)
		if !ok {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
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

		case ev := <-b.publishCh:
			broadcast(ev)

		case in := <-b.insightCh:
			broadcast(Event{Type: EventInsightAppended, Data: in})
			if now := time.Now(); now.Sub(lastMemo) >= b.memoMin {
				lastMemo = now
				broadcast(Event{Type: EventMemoUpdated, Data: map[string]int{"latest_id": in.ID}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its message channel.
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

// Publish broadcasts an arbitrary event.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// persistFailure is the payload of memo.persist_failed.
type persistFailure struct {
	InsightID int    `json:"insight_id"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

// PublishPersistFailed announces an insight that was appended in memory
// but not saved. Its signature matches ledger.FailureObserver.
func (b *Broker) PublishPersistFailed(in models.Insight, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.Publish(Event{
		Type: EventPersistFailed,
		Data: persistFailure{InsightID: in.ID, Title: in.Title, Error: msg},
	})
}

// PublishInsight announces a persisted insight. Its signature matches
// ledger.Observer.
func (b *Broker) PublishInsight(in models.Insight) {
	if b.closed.Load() {
		return
	}
	select {
	case b.insightCh <- in:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client disconnects or the broker closes.
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

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
