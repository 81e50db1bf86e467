package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresStore persists tickets via a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore instantiates the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const ticketColumns = `
        id, ticket_number, idempotency_key, source, title, description,
        requester_name, requester_email, category, subcategory, priority, status,
        confidence, suggested_solutions, response_due_hours, resolution_due_hours,
        attachments, source_metadata, created_at, updated_at, closed_at`

func (s *PostgresStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	attachments, err := json.Marshal(ticket.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	metadata, err := json.Marshal(ticket.SourceMetadata)
	if err != nil {
		return fmt.Errorf("marshal source metadata: %w", err)
	}

	const query = `
        INSERT INTO tickets (id, ticket_number, idempotency_key, source, title, description,
            requester_name, requester_email, category, subcategory, priority, status,
            confidence, suggested_solutions, response_due_hours, resolution_due_hours,
            attachments, source_metadata, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	_, err = s.pool.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.IdempotencyKey,
		ticket.Source,
		ticket.Title,
		ticket.Description,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.Category,
		ticket.Subcategory,
		ticket.Priority,
		ticket.Status,
		ticket.Confidence,
		ticket.SuggestedSolutions,
		ticket.ResponseDueHours,
		ticket.ResolutionDueHours,
		attachments,
		metadata,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// Both idempotency_key and ticket_number carry unique
			// constraints; the caller handles them differently.
			if strings.Contains(pgErr.ConstraintName, "ticket_number") {
				return ErrDuplicateNumber
			}
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE idempotency_key=$1`
	return s.fetchSingle(ctx, query, key)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return s.fetchSingle(ctx, query, id)
}

func (s *PostgresStore) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (id, ticket_id, sender_id, sender_name, sender_type, content, is_read, created_at)
        SELECT $1,$2,$3,$4,$5,$6,$7,$8 WHERE EXISTS (SELECT 1 FROM tickets WHERE id=$2)`
	cmd, err := s.pool.Exec(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.SenderID,
		msg.SenderName,
		msg.SenderType,
		msg.Content,
		msg.IsRead,
		msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = s.pool.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, msg.CreatedAt, msg.TicketID)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	if _, err := s.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	const query = `
        SELECT id, ticket_id, sender_id, sender_name, sender_type, content, is_read, created_at
        FROM chat_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderType,
			&msg.Content,
			&msg.IsRead,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *PostgresStore) MarkMessageRead(ctx context.Context, ticketID, messageID string) error {
	const query = `UPDATE chat_messages SET is_read=TRUE WHERE id=$1 AND ticket_id=$2`
	cmd, err := s.pool.Exec(ctx, query, messageID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET status=$1, updated_at=NOW(),
            closed_at=CASE WHEN $1='closed' THEN NOW() ELSE NULL END
        WHERE id=$2`
	cmd, err := s.pool.Exec(ctx, query, status, ticketID)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, ticketID)
}

func (s *PostgresStore) Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if q.Category != nil {
		args = append(args, *q.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		attachments []byte
		metadata    []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.IdempotencyKey,
		&ticket.Source,
		&ticket.Title,
		&ticket.Description,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Confidence,
		&ticket.SuggestedSolutions,
		&ticket.ResponseDueHours,
		&ticket.ResolutionDueHours,
		&attachments,
		&metadata,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &ticket.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ticket.SourceMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal source metadata: %w", err)
		}
	}
	return &ticket, nil
}
