package adapter

import (
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// WebFormAdapter normalizes submissions from the web support form. The form
// lets the requester pick a category themselves; that choice is only a hint.
type WebFormAdapter struct {
	descriptor Descriptor
}

// NewWebFormAdapter constructs the adapter.
func NewWebFormAdapter() *WebFormAdapter {
	return &WebFormAdapter{descriptor: Descriptor{
		Source:             domain.SourceWebForm,
		CategoryMapping:    defaultCategoryMapping(),
		AcceptsAttachments: true,
	}}
}

func (a *WebFormAdapter) Source() domain.TicketSource { return domain.SourceWebForm }
func (a *WebFormAdapter) Descriptor() Descriptor      { return a.descriptor }

func (a *WebFormAdapter) Normalize(raw map[string]any) (domain.TicketIntakeRequest, error) {
	meta := map[string]string{}
	putMetadata(meta, raw, "location", "asset_tag", "user_id", "phone")

	req := domain.TicketIntakeRequest{
		Source:         domain.SourceWebForm,
		Title:          stringField(raw, "title"),
		Description:    stringField(raw, "description"),
		RequesterEmail: stringField(raw, "email"),
		RequesterName:  stringField(raw, "name"),
		CategoryHint:   a.descriptor.MapCategory(stringField(raw, "category")),
		Attachments: attachmentRefs(sliceField(raw, "attachments"),
			[]string{"filename", "file_name"}, []string{"path", "storage_key"}, []string{"content_type", "mime_type"}, []string{"size", "size_bytes"}),
		RawMetadata: meta,
	}
	if err := req.Validate(); err != nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError(err.Error(), nil)
	}
	return req, nil
}
