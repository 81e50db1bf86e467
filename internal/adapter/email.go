package adapter

import (
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// EmailAdapter normalizes parsed inbound mail. The polling worker (and the
// per-source HTTP endpoint) hand it a flat payload of already-decoded
// fields; MIME parsing happens at the mail source, not here.
type EmailAdapter struct {
	descriptor Descriptor
}

// NewEmailAdapter constructs the adapter. Email carries no source category,
// so the mapping table stays empty.
func NewEmailAdapter() *EmailAdapter {
	return &EmailAdapter{descriptor: Descriptor{
		Source:             domain.SourceEmail,
		AcceptsAttachments: true,
	}}
}

func (a *EmailAdapter) Source() domain.TicketSource { return domain.SourceEmail }
func (a *EmailAdapter) Descriptor() Descriptor      { return a.descriptor }

func (a *EmailAdapter) Normalize(raw map[string]any) (domain.TicketIntakeRequest, error) {
	fromEmail := stringField(raw, "from_email", "email")
	fromName := stringField(raw, "from_name", "name")
	if fromName == "" {
		fromName = fromEmail
	}

	meta := map[string]string{}
	putMetadata(meta, raw, "message_id", "received_at", "mailbox")

	req := domain.TicketIntakeRequest{
		Source:         domain.SourceEmail,
		ExternalID:     stringField(raw, "message_id"),
		Title:          stringField(raw, "subject"),
		Description:    stringField(raw, "body"),
		RequesterEmail: fromEmail,
		RequesterName:  fromName,
		Attachments: attachmentRefs(sliceField(raw, "attachments"),
			[]string{"filename"}, []string{"path", "storage_key"}, []string{"content_type"}, []string{"size"}),
		RawMetadata: meta,
	}
	if err := req.Validate(); err != nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError(err.Error(), nil)
	}
	return req, nil
}
