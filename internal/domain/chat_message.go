package domain

import "time"

// SenderType identifies who authored a chat message.
type SenderType string

const (
	SenderTypeUser  SenderType = "user"
	SenderTypeAgent SenderType = "agent"
	SenderTypeAI    SenderType = "ai"
)

// Valid reports whether the sender type is known.
func (s SenderType) Valid() bool {
	switch s {
	case SenderTypeUser, SenderTypeAgent, SenderTypeAI:
		return true
	}
	return false
}

// ChatMessage is one entry in a ticket's conversation thread. Messages are
// exclusively owned by their ticket and ordered by creation time.
type ChatMessage struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderName string
	SenderType SenderType
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}
