package domain

import (
	"net/mail"
	"strings"
)

// TicketIntakeRequest is the normalized output of a source adapter. It is
// ephemeral: produced by an adapter, consumed exactly once by the ingestion
// orchestrator.
type TicketIntakeRequest struct {
	Source         TicketSource
	ExternalID     string
	Title          string
	Description    string
	RequesterEmail string
	RequesterName  string
	// CategoryHint is advisory, pre-populated from the source's own
	// classification via the adapter's category mapping. The classifier may
	// override it.
	CategoryHint TicketCategory
	// PriorityHint carries the source's own urgency when it has one.
	PriorityHint TicketPriority
	Attachments  []AttachmentRef
	// RawMetadata preserves source-specific fields for audit. The
	// orchestrator copies it onto the ticket and never interprets it.
	RawMetadata map[string]string
}

// Normalize trims whitespace on the user-facing text fields.
func (r *TicketIntakeRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.RequesterName = strings.TrimSpace(r.RequesterName)
	r.RequesterEmail = strings.TrimSpace(r.RequesterEmail)
	r.ExternalID = strings.TrimSpace(r.ExternalID)
}

// Validate enforces the intake invariants: non-empty title and description
// after normalization and a well-formed requester email.
func (r *TicketIntakeRequest) Validate() error {
	r.Normalize()
	if !r.Source.Valid() {
		return &FieldError{Field: "source", Reason: "unknown source"}
	}
	if r.Title == "" {
		return &FieldError{Field: "title", Reason: "required"}
	}
	if r.Description == "" {
		return &FieldError{Field: "description", Reason: "required"}
	}
	if _, err := mail.ParseAddress(r.RequesterEmail); err != nil {
		return &FieldError{Field: "requester_email", Reason: "malformed address"}
	}
	return nil
}

// FieldError reports a single invalid intake field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}
