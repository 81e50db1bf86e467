// Package notify fans out ticket lifecycle events to subscribed real-time
// clients. It is purely reactive: no business logic, no persistence.
// Delivery is at-most-once; durable history lives in the ticket store.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventMessageAdded  EventType = "message_added"
	EventStatusChanged EventType = "status_changed"
	EventTyping        EventType = "typing"
)

// Event represents a lifecycle event emitted by the pipeline.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket *domain.Ticket `json:"ticket"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	Message *domain.ChatMessage `json:"message"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TypingPayload payload.
type TypingPayload struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
}

// Publisher is the orchestrator-facing contract; the pipeline has no
// compile-time dependency on any transport.
type Publisher interface {
	Publish(event Event)
}

// Subscription is one client's membership in a ticket room. Events arrive on
// C; a subscription that falls behind misses events rather than blocking the
// publisher.
type Subscription struct {
	C        <-chan Event
	ch       chan Event
	ticketID string
}

// TicketID returns the room the subscription belongs to.
func (s *Subscription) TicketID() string { return s.ticketID }

// Hub delivers events to subscribers of the relevant ticket room. Clients
// that join after an event was published receive no backlog.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscription]struct{})}
}

const defaultSubscriptionBuffer = 16

// Subscribe joins the room for a ticket.
func (h *Hub) Subscribe(ticketID string) *Subscription {
	ch := make(chan Event, defaultSubscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, ticketID: ticketID}

	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[ticketID] = room
	}
	room[sub] = struct{}{}
	return sub
}

// Unsubscribe leaves the room and closes the subscription channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sub.ticketID]
	if !ok {
		return
	}
	if _, member := room[sub]; !member {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, sub.ticketID)
	}
	close(sub.ch)
}

// Publish delivers the event to every subscriber of its ticket room without
// blocking: a full subscriber buffer drops that event for that subscriber.
func (h *Hub) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[event.TicketID] {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// RoomSize reports the subscriber count for a ticket room.
func (h *Hub) RoomSize(ticketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ticketID])
}
