package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// UnifiedIngestRequest is the single entry point payload: a source tag, the
// source-native data bag and the integration api key.
type UnifiedIngestRequest struct {
	Source domain.TicketSource `json:"source"`
	Data   map[string]any      `json:"data"`
	APIKey string              `json:"api_key"`
}

// TicketResponse mirrors the persisted ticket, including classification.
type TicketResponse struct {
	ID                 string                `json:"id"`
	TicketNumber       string                `json:"ticket_number"`
	Source             domain.TicketSource   `json:"source"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	RequesterName      string                `json:"requester_name"`
	RequesterEmail     string                `json:"requester_email"`
	Category           domain.TicketCategory `json:"category"`
	Subcategory        string                `json:"subcategory,omitempty"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	Confidence         float64               `json:"confidence"`
	SuggestedSolutions []string              `json:"suggested_solutions,omitempty"`
	ResponseDueHours   int                   `json:"response_due_hours"`
	ResolutionDueHours int                   `json:"resolution_due_hours"`
	Attachments        []domain.AttachmentRef `json:"attachments,omitempty"`
	SourceMetadata     map[string]string     `json:"source_metadata,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	ClosedAt           *time.Time            `json:"closed_at,omitempty"`
	AccessToken        string                `json:"access_token,omitempty"`
}

// FromTicket maps the domain ticket onto the response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		TicketNumber:       t.TicketNumber,
		Source:             t.Source,
		Title:              t.Title,
		Description:        t.Description,
		RequesterName:      t.RequesterName,
		RequesterEmail:     t.RequesterEmail,
		Category:           t.Category,
		Subcategory:        t.Subcategory,
		Priority:           t.Priority,
		Status:             t.Status,
		Confidence:         t.Confidence,
		SuggestedSolutions: t.SuggestedSolutions,
		ResponseDueHours:   t.ResponseDueHours,
		ResolutionDueHours: t.ResolutionDueHours,
		Attachments:        t.Attachments,
		SourceMetadata:     t.SourceMetadata,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		ClosedAt:           t.ClosedAt,
	}
}

// TicketDetailResponse adds the conversation thread.
type TicketDetailResponse struct {
	TicketResponse
	Messages []ChatMessageResponse `json:"messages"`
}

// ChatMessageResponse represents a thread message.
type ChatMessageResponse struct {
	ID         string            `json:"id"`
	TicketID   string            `json:"ticket_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	SenderType domain.SenderType `json:"sender_type"`
	Content    string            `json:"content"`
	IsRead     bool              `json:"is_read"`
	CreatedAt  time.Time         `json:"created_at"`
}

// FromMessage maps a chat message.
func FromMessage(m *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderType: m.SenderType,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

// AppendMessageRequest payload.
type AppendMessageRequest struct {
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	SenderType domain.SenderType `json:"sender_type"`
	Content    string            `json:"content"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}
