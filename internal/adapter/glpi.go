package adapter

import (
	"fmt"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// GLPIAdapter normalizes tickets exported by the GLPI asset/ticketing
// system. GLPI payloads carry numeric priorities (1-6) and a nested
// recipient block.
type GLPIAdapter struct {
	descriptor Descriptor
}

// NewGLPIAdapter constructs the adapter with the default category mapping.
func NewGLPIAdapter() *GLPIAdapter {
	return &GLPIAdapter{descriptor: Descriptor{
		Source:             domain.SourceGLPI,
		CategoryMapping:    defaultCategoryMapping(),
		AcceptsAttachments: true,
	}}
}

func (a *GLPIAdapter) Source() domain.TicketSource { return domain.SourceGLPI }
func (a *GLPIAdapter) Descriptor() Descriptor      { return a.descriptor }

var glpiPriorities = map[int]domain.TicketPriority{
	1: domain.TicketPriorityLow,
	2: domain.TicketPriorityLow,
	3: domain.TicketPriorityMedium,
	4: domain.TicketPriorityHigh,
	5: domain.TicketPriorityUrgent,
	6: domain.TicketPriorityCritical,
}

func (a *GLPIAdapter) Normalize(raw map[string]any) (domain.TicketIntakeRequest, error) {
	externalID := stringField(raw, "id")
	if externalID == "" {
		return domain.TicketIntakeRequest{}, util.NewValidationError("glpi payload missing id", nil)
	}

	recipient := mapField(raw, "_users_id_recipient")
	if recipient == nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError("glpi payload missing recipient", nil)
	}

	priority := domain.TicketPriorityMedium
	if p, ok := glpiPriorities[intField(raw, "priority", 3)]; ok {
		priority = p
	}

	var hint domain.TicketCategory
	if category := mapField(raw, "itilcategories_id"); category != nil {
		hint = a.descriptor.MapCategory(stringField(category, "name"))
	}

	meta := map[string]string{"glpi_id": externalID}
	putMetadata(meta, raw, "urgency", "impact", "entities_id", "date")

	req := domain.TicketIntakeRequest{
		Source:         domain.SourceGLPI,
		ExternalID:     fmt.Sprintf("GLPI-%s", externalID),
		Title:          stringField(raw, "name"),
		Description:    stringField(raw, "content"),
		RequesterEmail: stringField(recipient, "email"),
		RequesterName:  stringField(recipient, "name"),
		CategoryHint:   hint,
		PriorityHint:   priority,
		Attachments: attachmentRefs(sliceField(raw, "documents"),
			[]string{"filename"}, []string{"filepath"}, []string{"mime"}, []string{"filesize"}),
		RawMetadata: meta,
	}
	if err := req.Validate(); err != nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError(err.Error(), nil)
	}
	return req, nil
}
