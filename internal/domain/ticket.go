package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency, ordered low to critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityUrgent   TicketPriority = "urgent"
	TicketPriorityCritical TicketPriority = "critical"
)

// Rank returns the position of the priority in the low < medium < high <
// urgent < critical ordering. Unknown values rank as medium.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 0
	case TicketPriorityHigh:
		return 2
	case TicketPriorityUrgent:
		return 3
	case TicketPriorityCritical:
		return 4
	default:
		return 1
	}
}

// TicketCategory is the closed set of internal classification categories.
type TicketCategory string

const (
	CategoryHardwareInfrastructure TicketCategory = "hardware_infrastructure"
	CategorySoftwareServices       TicketCategory = "software_digital_services"
	CategoryAccessSecurity         TicketCategory = "access_security"
	CategoryGeneral                TicketCategory = "general"
)

// Valid reports whether the category belongs to the closed set.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryHardwareInfrastructure, CategorySoftwareServices, CategoryAccessSecurity, CategoryGeneral:
		return true
	}
	return false
}

// TicketSource enumerates intake channels.
type TicketSource string

const (
	SourceWebForm TicketSource = "web_form"
	SourceEmail   TicketSource = "email"
	SourceChatbot TicketSource = "chatbot"
	SourceGLPI    TicketSource = "glpi"
	SourceSolman  TicketSource = "solman"
)

// Valid reports whether the source is a known intake channel.
func (s TicketSource) Valid() bool {
	switch s {
	case SourceWebForm, SourceEmail, SourceChatbot, SourceGLPI, SourceSolman:
		return true
	}
	return false
}

// AttachmentRef is an opaque reference to a stored attachment. The pipeline
// never reads attachment content; storage is an external collaborator.
type AttachmentRef struct {
	FileName   string `json:"file_name"`
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Ticket is the canonical representation of a support request, regardless of
// the channel it arrived through.
type Ticket struct {
	ID                 string
	TicketNumber       string
	IdempotencyKey     string
	Source             TicketSource
	Title              string
	Description        string
	RequesterName      string
	RequesterEmail     string
	Category           TicketCategory
	Subcategory        string
	Priority           TicketPriority
	Status             TicketStatus
	Confidence         float64
	SuggestedSolutions []string
	ResponseDueHours   int
	ResolutionDueHours int
	Attachments        []AttachmentRef
	SourceMetadata     map[string]string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved},
	TicketStatusResolved:   {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether the standard transition API permits moving
// from current to next. Reopening is an explicit operator action and is not
// reachable through this table.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanReopen reports whether the explicit reopen action applies to the
// current status.
func CanReopen(current TicketStatus) bool {
	return current == TicketStatusResolved || current == TicketStatusClosed
}

// SLAHours returns the response/resolution SLA window in hours for a
// priority.
func SLAHours(p TicketPriority) (response, resolution int) {
	switch p {
	case TicketPriorityCritical:
		return 1, 4
	case TicketPriorityUrgent:
		return 2, 8
	case TicketPriorityHigh:
		return 4, 24
	case TicketPriorityLow:
		return 24, 72
	default:
		return 8, 48
	}
}
