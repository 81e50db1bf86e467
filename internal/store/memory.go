package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// MemoryStore is an in-process TicketStore. It serves development runs
// without a Postgres DSN and the test suite.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Ticket
	byKey    map[string]string // idempotency key -> ticket ID
	messages map[string][]domain.ChatMessage
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*domain.Ticket),
		byKey:    make(map[string]string),
		messages: make(map[string][]domain.ChatMessage),
	}
}

func (s *MemoryStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[ticket.IdempotencyKey]; exists {
		return ErrDuplicateKey
	}
	copied := cloneTicket(ticket)
	s.byID[ticket.ID] = copied
	s.byKey[ticket.IdempotencyKey] = ticket.ID
	return nil
}

func (s *MemoryStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTicket(s.byID[id]), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[msg.TicketID]; !ok {
		return ErrNotFound
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], *msg)
	s.byID[msg.TicketID].UpdatedAt = msg.CreatedAt
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[ticketID]; !ok {
		return nil, ErrNotFound
	}
	msgs := append([]domain.ChatMessage{}, s.messages[ticketID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *MemoryStore) MarkMessageRead(ctx context.Context, ticketID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.messages[ticketID]
	if !ok {
		return ErrNotFound
	}
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.byID[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	ticket.Status = status
	ticket.UpdatedAt = now
	if status == domain.TicketStatusClosed {
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
	return cloneTicket(ticket), nil
}

func (s *MemoryStore) Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range s.byID {
		if q.Category != nil && ticket.Category != *q.Category {
			continue
		}
		if q.Status != nil && ticket.Status != *q.Status {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	copied.SuggestedSolutions = append([]string(nil), t.SuggestedSolutions...)
	copied.Attachments = append([]domain.AttachmentRef(nil), t.Attachments...)
	if t.SourceMetadata != nil {
		copied.SourceMetadata = make(map[string]string, len(t.SourceMetadata))
		for k, v := range t.SourceMetadata {
			copied.SourceMetadata[k] = v
		}
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		copied.ClosedAt = &closed
	}
	return &copied
}
