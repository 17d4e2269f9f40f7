// Package broadcast fans events out to the set of live client sinks of a
// single auction, preserving total message order and evicting any sink
// that falls behind or fails.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/draftops/auctioneer/internal/metrics"
)

// Sink is anything that can receive a serialized outbound frame on behalf
// of one connected client. Implementations must be safe to call from the
// Hub's dedicated writer goroutine; they need not be safe for concurrent
// calls from elsewhere.
type Sink interface {
	ID() string
	Send(frame []byte) error
}

// outboxSize bounds the per-sink backlog before the sink is evicted as
// slow. One auction's event volume (ticks, bids, status) is low enough
// that a well-behaved client never approaches this.
const outboxSize = 32

// queueDepth bounds the Hub's own serialization queue. Broadcast calls
// that arrive faster than the single writer drains them block the caller
// once this fills, which in practice only happens under sustained
// internal fault conditions.
const queueDepth = 256

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type registration struct {
	sink   Sink
	outbox chan []byte
}

// Hub owns the live sinks of one auction and serializes delivery to all
// of them. The zero value is not usable; construct with New.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	sinks map[string]*registration

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup
}

// New returns a Hub ready to Start.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		sinks:  make(map[string]*registration),
		queue:  make(chan []byte, queueDepth),
		done:   make(chan struct{}),
	}
}

// Start begins the Hub's serialization loop. Frames broadcast before
// Start are held in the queue and delivered once it runs.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop closes every sink's outbox and waits for all writer goroutines,
// and the serialization loop, to exit. Stop is idempotent.
func (h *Hub) Stop() {
	select {
	case <-h.done:
		return
	default:
		close(h.done)
	}

	h.mu.Lock()
	for id, reg := range h.sinks {
		close(reg.outbox)
		delete(h.sinks, id)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// Add registers a sink and spawns its dedicated writer goroutine. Adding
// a sink whose ID is already registered replaces the prior registration.
func (h *Hub) Add(sink Sink) {
	h.mu.Lock()
	if old, ok := h.sinks[sink.ID()]; ok {
		close(old.outbox)
	}
	reg := &registration{sink: sink, outbox: make(chan []byte, outboxSize)}
	h.sinks[sink.ID()] = reg
	h.mu.Unlock()

	h.wg.Add(1)
	go h.writeLoop(reg)
}

// Remove is idempotent: removing a sink that is not (or no longer)
// registered does nothing.
func (h *Hub) Remove(sink Sink) {
	h.removeByID(sink.ID())
}

func (h *Hub) removeByID(id string) {
	h.mu.Lock()
	reg, ok := h.sinks[id]
	if ok {
		delete(h.sinks, id)
	}
	h.mu.Unlock()

	if ok {
		close(reg.outbox)
	}
}

// Count reports the number of currently registered sinks.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

// Broadcast serializes msgType/data into the wire envelope and hands it
// to the Hub's single writer loop, which fans it out preserving order.
func (h *Hub) Broadcast(msgType string, data any) {
	frame, err := json.Marshal(envelope{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("broadcast_marshal_error",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case h.queue <- frame:
		metrics.HubQueueDepth.Set(float64(len(h.queue)))
	case <-h.done:
	}
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case frame := <-h.queue:
			h.fanOut(frame)
		}
	}
}

func (h *Hub) fanOut(frame []byte) {
	h.mu.Lock()
	regs := make([]*registration, 0, len(h.sinks))
	for _, reg := range h.sinks {
		regs = append(regs, reg)
	}
	h.mu.Unlock()

	for _, reg := range regs {
		select {
		case reg.outbox <- frame:
		default:
			h.logger.Warn("broadcast_sink_evicted_overflow",
				slog.String("sink_id", reg.sink.ID()),
			)
			metrics.HubSinksEvictedTotal.Inc()
			h.removeByID(reg.sink.ID())
		}
	}
}

func (h *Hub) writeLoop(reg *registration) {
	defer h.wg.Done()
	for frame := range reg.outbox {
		if err := reg.sink.Send(frame); err != nil {
			h.logger.Warn("broadcast_sink_evicted_io_error",
				slog.String("sink_id", reg.sink.ID()),
				slog.String("error", err.Error()),
			)
			metrics.HubSinksEvictedTotal.Inc()
			h.removeByID(reg.sink.ID())
			return
		}
	}
}
