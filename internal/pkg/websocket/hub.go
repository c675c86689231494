package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const allEvents = ""

// ClientCountFunc is notified whenever the number of clients watching an event changes
type ClientCountFunc func(event string, n int)

// Hub maintains the set of active gate clients and fans scan events out to them
type Hub struct {
	// Registered clients organized by event name; "" watches every event
	clients map[string]map[*Client]bool

	// Scan events waiting to be fanned out
	broadcast chan *ScanEvent

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	onCount ClientCountFunc

	// Logger for Hub operations
	logger zerolog.Logger
}

// ScanEvent is pushed to every gate client watching the same event
type ScanEvent struct {
	// Type is always "scan"
	Type string `json:"type"`

	EventName   string `json:"eventName"`
	Result      string `json:"result"`
	Message     string `json:"message,omitempty"`
	TicketCode  string `json:"ticketCode,omitempty"`
	StudentName string `json:"studentName,omitempty"`
	Matricule   string `json:"matricule,omitempty"`
	OperatorID  int64  `json:"operatorId,omitempty"`

	ScannedAt time.Time `json:"scannedAt"`
}

// NewHub creates a new Hub instance. onCount may be nil.
func NewHub(logger zerolog.Logger, onCount ClientCountFunc) *Hub {
	return &Hub{
		broadcast:  make(chan *ScanEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
		onCount:    onCount,
		logger:     logger,
	}
}

// Run handles client registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.event]; !ok {
		h.clients[client.event] = make(map[*Client]bool)
	}
	h.clients[client.event][client] = true
	n := len(h.clients[client.event])
	h.mu.Unlock()

	h.notifyCount(client.event, n)
	h.logger.Info().
		Str("event", client.event).
		Int64("operatorID", client.operatorID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Gate client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	removed, n := h.removeLocked(client)
	h.mu.Unlock()

	if removed {
		h.notifyCount(client.event, n)
		h.logger.Info().
			Str("event", client.event).
			Int64("operatorID", client.operatorID).
			Str("addr", client.conn.RemoteAddr().String()).
			Msg("Gate client unregistered")
	}
}

func (h *Hub) removeLocked(client *Client) (bool, int) {
	clients, ok := h.clients[client.event]
	if !ok {
		return false, 0
	}
	if _, ok := clients[client]; !ok {
		return false, len(clients)
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.event)
	}
	return true, len(clients)
}

// broadcastEvent sends a scan event to all clients watching its event
func (h *Hub) broadcastEvent(event *ScanEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", event.EventName).
			Msg("Failed to marshal scan event for broadcast")
		return
	}

	keys := []string{event.EventName}
	if event.EventName != allEvents {
		keys = append(keys, allEvents)
	}

	h.mu.Lock()
	delivered := 0
	var dropped []*Client
	for _, key := range keys {
		for client := range h.clients[key] {
			select {
			case client.send <- data:
				delivered++
			default:
				// Client's send buffer is full, drop it
				dropped = append(dropped, client)
			}
		}
	}
	counts := make(map[string]int)
	for _, client := range dropped {
		_, counts[client.event] = h.removeLocked(client)
	}
	h.mu.Unlock()

	for key, n := range counts {
		h.notifyCount(key, n)
	}
	if len(dropped) > 0 {
		h.logger.Warn().
			Str("event", event.EventName).
			Int("dropped", len(dropped)).
			Msg("Dropped slow gate clients")
	}

	h.logger.Debug().
		Str("event", event.EventName).
		Int("clientCount", delivered).
		Msg("Scan event broadcasted")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for event, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, event)
	}
}

func (h *Hub) notifyCount(event string, n int) {
	if h.onCount != nil {
		h.onCount(event, n)
	}
}

// Publish queues a scan event for broadcast. It never blocks the caller;
// when the queue is full the event is dropped.
func (h *Hub) Publish(event ScanEvent) {
	if event.Type == "" {
		event.Type = "scan"
	}
	if event.ScannedAt.IsZero() {
		event.ScannedAt = time.Now()
	}
	select {
	case h.broadcast <- &event:
	default:
		h.logger.Warn().Str("event", event.EventName).Msg("Gate feed queue full, scan event dropped")
	}
}

// join adds a client. It reports false when the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterAsync(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// GetClientsCount returns the number of connected clients for an event
func (h *Hub) GetClientsCount(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[event]; ok {
		return len(clients)
	}
	return 0
}
