package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/config"
	"github.com/toastigo/storefront/internal/printer"
)

// Event types.
const (
	EventReady     = "ready"
	EventStatus    = "status"
	EventCommand   = "command"
	EventHeartbeat = "heartbeat"
)

// Event is one SSE message.
type Event struct {
	ID   int64       `json:"id,omitempty"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`

	at time.Time
}

// Client is one SSE connection. Events is never closed; publishers may
// still hold a reference after the client leaves.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Events  chan Event
	mu      sync.Mutex // guards Writer
}

// Hub fans events out to every connected client.
//
// Lock ordering: h.mu before EventBuffer.mu. Client.mu is only taken on its own.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	nextID  int64

	buffer *EventBuffer
	config *config.TimingConfig
	log    *zap.Logger

	// snapshot supplies the ready event payload.
	snapshot func() interface{}

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// EventBuffer is a bounded, age-limited replay buffer.
type EventBuffer struct {
	mu        sync.RWMutex
	events    []Event
	capacity  int
	retention time.Duration
	now       func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithSnapshot sets the function whose result is sent in the ready event.
func WithSnapshot(fn func() interface{}) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// NewHub creates a hub using the buffer and heartbeat settings of timingConfig.
func NewHub(timingConfig *config.TimingConfig, opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		buffer:  NewEventBuffer(timingConfig.EventBufferSize, timingConfig.EventBufferRetention),
		config:  timingConfig,
		log:     zap.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("telemetry")
	return h
}

// Subscribe serves one SSE client and blocks until it goes away or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.stopped.Load() {
		return fmt.Errorf("telemetry hub stopped")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientCtx, cancel := context.WithCancel(ctx)

	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastEventID,
		Events:  make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	if h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		if err := h.replayEvents(client, lastEventID); err != nil {
			h.unregisterClient(client.ID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.log.Debug("client subscribed", zap.String("client", client.ID), zap.Int64("lastEventId", lastEventID))
	h.handleClient(client)
	return nil
}

// Publish assigns an ID, buffers the event and queues it for every client.
// Slow clients lose events rather than stall the publisher.
func (h *Hub) Publish(event Event) {
	if h.stopped.Load() {
		return
	}

	if event.ID == 0 {
		event.ID = atomic.AddInt64(&h.nextID, 1)
	}
	if event.Type != EventHeartbeat {
		h.buffer.AddEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.Context.Done():
		case <-h.done:
			return
		case client.Events <- event:
		default:
			h.log.Debug("client too slow, event dropped", zap.String("client", client.ID), zap.Int64("id", event.ID))
		}
	}
}

// PublishStatus publishes a printer status change.
func (h *Hub) PublishStatus(status printer.Status) {
	h.Publish(Event{Type: EventStatus, Data: status})
}

// PublishCommand publishes the outcome of an admin command.
func (h *Hub) PublishCommand(data map[string]interface{}) {
	h.Publish(Event{Type: EventCommand, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendReadyEvent(client *Client) error {
	var snapshot interface{}
	if h.snapshot != nil {
		snapshot = h.snapshot()
	}

	// Ready is not buffered and does not consume an ID, so replay after it
	// still lines up with the client's Last-Event-ID.
	return h.sendEventToClient(client, Event{
		Type: EventReady,
		Data: map[string]interface{}{"snapshot": snapshot},
	})
}

func (h *Hub) replayEvents(client *Client, lastEventID int64) error {
	for _, event := range h.buffer.GetEventsAfter(lastEventID) {
		if err := h.sendEventToClient(client, event); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) handleClient(client *Client) {
	defer h.unregisterClient(client.ID)

	for {
		select {
		case <-client.Context.Done():
			return
		case <-h.done:
			return
		case event := <-client.Events:
			if err := h.sendEventToClient(client, event); err != nil {
				h.log.Debug("client write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// startHeartbeat must be called with h.mu held.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval + h.config.HeartbeatJitter/2

	h.heartbeatTicker = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.Publish(Event{
					Type: EventHeartbeat,
					Data: map[string]interface{}{"ts": time.Now().UTC().Format(time.RFC3339)},
				})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// Stop disconnects every client and stops the heartbeat. It is safe to call twice.
func (h *Hub) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	close(h.done)

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// NewEventBuffer creates a buffer keeping at most capacity events, each for
// at most retention. A non-positive retention keeps events until evicted.
func NewEventBuffer(capacity int, retention time.Duration) *EventBuffer {
	return &EventBuffer{
		events:    make([]Event, 0, capacity),
		capacity:  capacity,
		retention: retention,
		now:       time.Now,
	}
}

// AddEvent appends an event, evicting the oldest past capacity.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	event.at = b.now()
	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
}

// GetEventsAfter returns retained events with an ID greater than lastID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	var result []Event
	for _, event := range b.events {
		if event.ID <= lastID {
			continue
		}
		if b.retention > 0 && now.Sub(event.at) > b.retention {
			continue
		}
		result = append(result, event)
	}
	return result
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the number of buffered events.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
