// Package sse streams run progress and document changes to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StageData is the payload of run.state events.
type StageData struct {
	Root    string `json:"root"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// DocData is the payload of doc.* events.
type DocData struct {
	Path string `json:"path"`
}

const (
	clientBuffer     = 64
	commandQueue     = 256
	defaultKeepAlive = 15 * time.Second
)

var docEventTypes = map[string]string{
	"created": "doc.created",
	"updated": "doc.updated",
	"deleted": "doc.deleted",
}

// state belongs to the broker loop and is only touched by commands.
type state struct {
	clients    map[chan []byte]struct{}
	lastHub    time.Time
	stages     map[string][]byte
	stageRoots []string
}

func (s *state) send(raw []byte) {
	for ch := range s.clients {
		offer(ch, raw)
	}
}

// offer drops raw when the client is not keeping up.
func offer(ch chan []byte, raw []byte) {
	select {
	case ch <- raw:
	default:
	}
}

// Broker fans pre-encoded messages out to SSE clients. One goroutine owns the
// client set and the stage replay buffer; public methods queue commands for it
// in call order.
type Broker struct {
	hubEvery  time.Duration
	keepAlive time.Duration

	cmds    chan func(*state)
	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one hub.updated per hubThrottle.
func NewBroker(hubThrottle time.Duration) *Broker {
	if hubThrottle <= 0 {
		hubThrottle = 2 * time.Second
	}
	b := &Broker{
		hubEvery:  hubThrottle,
		keepAlive: defaultKeepAlive,
		cmds:      make(chan func(*state), commandQueue),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	s := &state{
		clients: make(map[chan []byte]struct{}),
		stages:  make(map[string][]byte),
	}
	for {
		select {
		case <-b.stop:
			for ch := range s.clients {
				close(ch)
			}
			return
		case cmd := <-b.cmds:
			cmd(s)
		}
	}
}

// do queues cmd for the loop and reports whether the broker accepted it.
func (b *Broker) do(cmd func(*state)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.cmds <- cmd:
		return true
	case <-b.stopped:
		return false
	}
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s: %w", event.Type, err)
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The latest run.state of every boundary is
// queued on the returned channel before any live event.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	registered := make(chan struct{})
	ok := b.do(func(s *state) {
		s.clients[ch] = struct{}{}
		for _, root := range s.stageRoots {
			offer(ch, s.stages[root])
		}
		close(registered)
	})
	if !ok {
		close(ch)
		return ch
	}
	select {
	case <-registered:
	case <-b.stopped:
		// A registered channel was already closed by the loop on stop.
		select {
		case <-registered:
		default:
			close(ch)
		}
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(s *state) {
		if _, ok := s.clients[ch]; ok {
			delete(s.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(s *state) { n <- len(s.clients) }) {
		return 0
	}
	select {
	case c := <-n:
		return c
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	raw, err := encode(event)
	if err != nil {
		return
	}
	b.do(func(s *state) { s.send(raw) })
}

// PublishDocEvent publishes a document change and, at most once per
// throttle interval, a hub.updated event. Unknown kinds are ignored.
func (b *Broker) PublishDocEvent(kind, path string) {
	typ, ok := docEventTypes[kind]
	if !ok {
		return
	}
	raw, err := encode(Event{Type: typ, Data: DocData{Path: path}})
	if err != nil {
		return
	}
	hub, err := encode(Event{Type: "hub.updated", Data: struct{}{}})
	if err != nil {
		return
	}
	b.do(func(s *state) {
		s.send(raw)
		if now := time.Now(); now.Sub(s.lastHub) >= b.hubEvery {
			s.lastHub = now
			s.send(hub)
		}
	})
}

// PublishStage publishes a run.state event for one boundary and keeps it for
// replay to later subscribers.
func (b *Broker) PublishStage(root, stage, message string) {
	raw, err := encode(Event{Type: "run.state", Data: StageData{Root: root, State: stage, Message: message}})
	if err != nil {
		return
	}
	b.do(func(s *state) {
		s.send(raw)
		if _, seen := s.stages[root]; !seen {
			s.stageRoots = append(s.stageRoots, root)
		}
		s.stages[root] = raw
	})
}

// ServeHTTP streams events to one client (GET /api/events) until the
// request ends or the broker closes. Idle streams get a comment line every
// keep-alive interval.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
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
			_, _ = w.Write([]byte(": keep-alive\n\n"))
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
