package adapter

import (
	"fmt"
	"unicode/utf8"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// maxGeneratedTitleLen bounds titles derived from free-form chat queries.
const maxGeneratedTitleLen = 100

// ChatbotAdapter normalizes queries escalated by the conversational agent.
// A chat query has no separate title; one is derived from the query text.
type ChatbotAdapter struct {
	descriptor Descriptor
}

// NewChatbotAdapter constructs the adapter.
func NewChatbotAdapter() *ChatbotAdapter {
	return &ChatbotAdapter{descriptor: Descriptor{
		Source: domain.SourceChatbot,
	}}
}

func (a *ChatbotAdapter) Source() domain.TicketSource { return domain.SourceChatbot }
func (a *ChatbotAdapter) Descriptor() Descriptor      { return a.descriptor }

func (a *ChatbotAdapter) Normalize(raw map[string]any) (domain.TicketIntakeRequest, error) {
	query := stringField(raw, "query", "message")
	title := stringField(raw, "title")
	if title == "" {
		title = truncateRunes(query, maxGeneratedTitleLen)
	}

	var externalID string
	if session := stringField(raw, "session_id"); session != "" {
		if msgID := stringField(raw, "message_id"); msgID != "" {
			externalID = fmt.Sprintf("CHAT-%s-%s", session, msgID)
		}
	}

	meta := map[string]string{}
	putMetadata(meta, raw, "session_id", "user_id", "department", "role")

	req := domain.TicketIntakeRequest{
		Source:         domain.SourceChatbot,
		ExternalID:     externalID,
		Title:          title,
		Description:    query,
		RequesterEmail: stringField(raw, "email", "user_email"),
		RequesterName:  stringField(raw, "name", "user_name"),
		RawMetadata:    meta,
	}
	if err := req.Validate(); err != nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError(err.Error(), nil)
	}
	return req, nil
}

// truncateRunes shortens s to at most n runes, never splitting a multi-byte
// character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
