// Package ingest is the pipeline core: it validates intake requests,
// deduplicates them, classifies them and persists the resulting tickets.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-intake/internal/classify"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/notify"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/store"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// Orchestrator runs the intake pipeline: validate, dedup, classify, persist,
// emit. It is safe under concurrent Ingest calls for the same idempotency
// key; at most one ticket is ever created per key.
type Orchestrator struct {
	store      store.TicketStore
	classifier *classify.Classifier
	hub        notify.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics

	prefix      string
	dedupBucket time.Duration

	group singleflight.Group
	now   func() time.Time
}

// Dependencies bundles orchestrator collaborators.
type Dependencies struct {
	Store      store.TicketStore
	Classifier *classify.Classifier
	Hub        notify.Publisher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Config tunes the orchestrator.
type Config struct {
	TicketNumberPrefix string
	DedupBucket        time.Duration
}

// NewOrchestrator constructs the pipeline core.
func NewOrchestrator(cfg Config, deps Dependencies) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.TicketNumberPrefix == "" {
		cfg.TicketNumberPrefix = "PG"
	}
	if cfg.DedupBucket <= 0 {
		cfg.DedupBucket = time.Hour
	}
	return &Orchestrator{
		store:       deps.Store,
		classifier:  deps.Classifier,
		hub:         deps.Hub,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		prefix:      cfg.TicketNumberPrefix,
		dedupBucket: cfg.DedupBucket,
		now:         time.Now,
	}
}

// ingestOutcome carries the pipeline result through singleflight. Created is
// false when the request resolved to a pre-existing ticket.
type ingestOutcome struct {
	ticket  *domain.Ticket
	created bool
}

// Ingest turns a normalized intake request into a persisted ticket. Calling
// it twice with the same idempotency key, sequentially or concurrently,
// returns the same ticket and creates exactly one; the second return value
// reports whether this call created it.
func (o *Orchestrator) Ingest(ctx context.Context, req domain.TicketIntakeRequest) (*domain.Ticket, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, util.NewValidationError(err.Error(), nil)
	}

	key := IdempotencyKey(&req, o.now(), o.dedupBucket)

	// singleflight collapses concurrent same-key callers onto one pipeline
	// run; the store's unique constraint covers races across processes.
	// Collapsed callers share the run's outcome, created flag included.
	v, err, _ := o.group.Do(key, func() (any, error) {
		return o.ingestOnce(ctx, key, &req)
	})
	if err != nil {
		return nil, false, err
	}
	outcome := v.(ingestOutcome)
	return outcome.ticket, outcome.created, nil
}

func (o *Orchestrator) ingestOnce(ctx context.Context, key string, req *domain.TicketIntakeRequest) (ingestOutcome, error) {
	existing, err := o.store.FindByIdempotencyKey(ctx, key)
	if err == nil {
		o.metrics.RecordDedupHit(req.Source)
		o.logger.Info("duplicate intake resolved to existing ticket",
			zap.String("ticket_id", existing.ID),
			zap.String("source", string(req.Source)))
		return ingestOutcome{ticket: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return ingestOutcome{}, err
	}

	result := o.classifier.Classify(ctx, req.Title, req.Description, req.CategoryHint)

	priority := result.Priority
	// A source that already flags higher urgency than the classifier wins.
	if req.PriorityHint != "" && req.PriorityHint.Rank() > priority.Rank() {
		priority = req.PriorityHint
	}

	now := o.now().UTC()
	response, resolution := domain.SLAHours(priority)
	ticket := &domain.Ticket{
		ID:                 uuid.NewString(),
		TicketNumber:       o.generateTicketNumber(now),
		IdempotencyKey:     key,
		Source:             req.Source,
		Title:              req.Title,
		Description:        req.Description,
		RequesterName:      req.RequesterName,
		RequesterEmail:     req.RequesterEmail,
		Category:           result.Category,
		Subcategory:        result.Subcategory,
		Priority:           priority,
		Status:             domain.TicketStatusOpen,
		Confidence:         result.Confidence,
		SuggestedSolutions: result.SuggestedSolutions,
		ResponseDueHours:   response,
		ResolutionDueHours: resolution,
		Attachments:        req.Attachments,
		SourceMetadata:     req.RawMetadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := o.createWithUniqueNumber(ctx, ticket); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Another process won the race; its ticket is the ticket.
			winner, err := o.store.FindByIdempotencyKey(ctx, key)
			if err != nil {
				return ingestOutcome{}, err
			}
			return ingestOutcome{ticket: winner}, nil
		}
		// The request classified and validated; persistence failure must be
		// surfaced, never swallowed.
		return ingestOutcome{}, fmt.Errorf("persist ticket: %w", err)
	}

	o.metrics.RecordIngest(req.Source)
	o.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("source", string(req.Source)),
		zap.String("category", string(ticket.Category)),
		zap.String("priority", string(ticket.Priority)),
		zap.String("classification_origin", string(result.Origin)))

	o.publish(notify.Event{
		Type:     notify.EventTicketCreated,
		TicketID: ticket.ID,
		Payload:  notify.TicketCreatedPayload{Ticket: ticket},
	})
	return ingestOutcome{ticket: ticket, created: true}, nil
}

// AppendMessage adds a chat message to an existing ticket.
func (o *Orchestrator) AppendMessage(ctx context.Context, ticketID string, senderID, senderName string, senderType domain.SenderType, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, util.NewValidationError("message content required", nil)
	}
	if !senderType.Valid() {
		return nil, util.NewValidationError("unknown sender type", nil)
	}

	msg := &domain.ChatMessage{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		SenderID:   senderID,
		SenderName: senderName,
		SenderType: senderType,
		Content:    content,
		CreatedAt:  o.now().UTC(),
	}
	if err := o.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	o.publish(notify.Event{
		Type:     notify.EventMessageAdded,
		TicketID: ticketID,
		Payload:  notify.MessageAddedPayload{Message: msg},
	})
	return msg, nil
}

// UpdateStatus applies a standard status transition. Invalid transitions are
// rejected and leave the ticket unchanged.
func (o *Orchestrator) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := o.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if !domain.CanTransition(ticket.Status, next) {
		return nil, util.NewInvalidStateTransition(string(ticket.Status), string(next))
	}
	return o.applyStatus(ctx, ticket, next)
}

// Reopen is the explicit operator action that moves a resolved or closed
// ticket back to open. It is deliberately separate from UpdateStatus.
func (o *Orchestrator) Reopen(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := o.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if !domain.CanReopen(ticket.Status) {
		return nil, util.NewInvalidStateTransition(string(ticket.Status), string(domain.TicketStatusOpen))
	}
	return o.applyStatus(ctx, ticket, domain.TicketStatusOpen)
}

func (o *Orchestrator) applyStatus(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus) (*domain.Ticket, error) {
	old := ticket.Status
	updated, err := o.store.UpdateStatus(ctx, ticket.ID, next)
	if err != nil {
		return nil, err
	}
	o.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(next)))
	o.publish(notify.Event{
		Type:     notify.EventStatusChanged,
		TicketID: ticket.ID,
		Payload:  notify.StatusChangedPayload{OldStatus: old, NewStatus: next},
	})
	return updated, nil
}

// GetTicket fetches a ticket with its message history.
func (o *Orchestrator) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, []domain.ChatMessage, error) {
	ticket, err := o.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, err
	}
	msgs, err := o.store.ListMessages(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// MarkMessageRead flags a single message as read.
func (o *Orchestrator) MarkMessageRead(ctx context.Context, ticketID, messageID string) error {
	if err := o.store.MarkMessageRead(ctx, ticketID, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return util.NewNotFound("message", map[string]any{"ticket_id": ticketID, "message_id": messageID})
		}
		return err
	}
	return nil
}

// Query lists tickets filtered by category and/or status.
func (o *Orchestrator) Query(ctx context.Context, q store.TicketQuery) ([]domain.Ticket, error) {
	return o.store.Query(ctx, q)
}

func (o *Orchestrator) publish(event notify.Event) {
	if o.hub == nil {
		return
	}
	// Fire-and-forget: the ticket exists regardless of delivery.
	o.hub.Publish(event)
}

// createWithUniqueNumber inserts the ticket, regenerating the ticket number
// on a number collision. Key collisions pass through to the caller.
func (o *Orchestrator) createWithUniqueNumber(ctx context.Context, ticket *domain.Ticket) error {
	const maxNumberRetries = 3
	var err error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		err = o.store.Create(ctx, ticket)
		if !errors.Is(err, store.ErrDuplicateNumber) {
			return err
		}
		ticket.TicketNumber = o.generateTicketNumber(o.now().UTC())
	}
	return err
}

// generateTicketNumber builds the human-readable number: prefix, UTC
// timestamp, random suffix. The suffix keeps numbers unique when two tickets
// land in the same second.
func (o *Orchestrator) generateTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", o.prefix, now.Format("20060102150405"), suffix)
}
