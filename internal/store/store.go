package store

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Sentinel errors returned by TicketStore implementations. Callers translate
// these into the HTTP-facing error taxonomy.
var (
	// ErrNotFound reports an operation on a nonexistent ticket or message.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateKey reports an insert that collides on the idempotency
	// key. The orchestrator treats it as "already ingested", not a failure.
	ErrDuplicateKey = errors.New("store: duplicate idempotency key")
	// ErrDuplicateNumber reports an insert that collides on the generated
	// ticket number. The orchestrator regenerates the number and retries.
	ErrDuplicateNumber = errors.New("store: duplicate ticket number")
)

// TicketQuery filters the ticket listing. Nil fields match everything.
type TicketQuery struct {
	Category *domain.TicketCategory
	Status   *domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketStore persists tickets and their chat messages.
type TicketStore interface {
	// Create inserts a new ticket. The insert is atomic with respect to the
	// idempotency key: a second insert with the same key fails with
	// ErrDuplicateKey and leaves the first ticket untouched.
	Create(ctx context.Context, ticket *domain.Ticket) error
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error
	ListMessages(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
	MarkMessageRead(ctx context.Context, ticketID, messageID string) error
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
	Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error)
}
