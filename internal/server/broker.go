package server

import (
	"context"
	"sync"
	"time"

	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/telemetry"
)

// SSEEvent is sent to connected clients.
type SSEEvent struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Client is a connected SSE client.
type Client struct {
	ID        string
	SessionID string // empty = subscribe to all
	Events    chan SSEEvent
}

// Broker manages SSE client connections and broadcasts events.
// It implements event.Hook so it plugs into the playback event bus.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	logger  *telemetry.Logger
}

// NewBroker creates a new SSE broker.
func NewBroker(logger *telemetry.Logger) *Broker {
	return &Broker{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Subscribe adds a new SSE client. The returned Client's Events channel
// receives events until the context is cancelled or the broker closes.
func (b *Broker) Subscribe(ctx context.Context, clientID, sessionID string) *Client {
	client := &Client{
		ID:        clientID,
		SessionID: sessionID,
		Events:    make(chan SSEEvent, 64),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(client.Events)
		return client
	}
	b.clients[clientID] = client
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(clientID)
	}()

	return client
}

func (b *Broker) remove(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if client, ok := b.clients[clientID]; ok {
		delete(b.clients, clientID)
		close(client.Events)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to all matching clients. Events without a session
// go to everyone.
func (b *Broker) Broadcast(ev SSEEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		if client.SessionID != "" && ev.SessionID != "" && client.SessionID != ev.SessionID {
			continue
		}
		select {
		case client.Events <- ev:
		default:
			// Drop if client buffer is full
			b.logger.Warn("Dropping SSE event for slow client", "client", client.ID)
		}
	}
}

// Close disconnects every client.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, client := range b.clients {
		delete(b.clients, id)
		close(client.Events)
	}
}

// --- event.Hook interface ---

func (b *Broker) Name() string { return "sse-broker" }

func (b *Broker) Matches(_ event.EventType) bool { return true }

// IsBlocking keeps the broker inline with Emit so clients see steps in
// playback order. Broadcast itself never waits on a client.
func (b *Broker) IsBlocking() bool { return true }

func (b *Broker) Handle(ev event.Event) error {
	b.Broadcast(SSEEvent{
		Type:      string(ev.Type),
		Timestamp: ev.Timestamp,
		SessionID: ev.SessionID,
		TurnID:    ev.TurnID,
		Data:      ev.Data,
	})
	return nil
}
