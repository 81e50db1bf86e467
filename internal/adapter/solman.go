package adapter

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// SolmanAdapter normalizes incidents forwarded by SAP Solution Manager.
type SolmanAdapter struct {
	descriptor Descriptor
}

// NewSolmanAdapter constructs the adapter with the default category mapping.
func NewSolmanAdapter() *SolmanAdapter {
	return &SolmanAdapter{descriptor: Descriptor{
		Source:             domain.SourceSolman,
		CategoryMapping:    defaultCategoryMapping(),
		AcceptsAttachments: true,
	}}
}

func (a *SolmanAdapter) Source() domain.TicketSource { return domain.SourceSolman }
func (a *SolmanAdapter) Descriptor() Descriptor      { return a.descriptor }

var solmanPriorities = map[string]domain.TicketPriority{
	"very high": domain.TicketPriorityCritical,
	"high":      domain.TicketPriorityHigh,
	"medium":    domain.TicketPriorityMedium,
	"low":       domain.TicketPriorityLow,
	"very low":  domain.TicketPriorityLow,
}

func (a *SolmanAdapter) Normalize(raw map[string]any) (domain.TicketIntakeRequest, error) {
	incidentID := stringField(raw, "IncidentID")
	if incidentID == "" {
		return domain.TicketIntakeRequest{}, util.NewValidationError("solman payload missing IncidentID", nil)
	}

	priority := domain.TicketPriorityMedium
	if p, ok := solmanPriorities[strings.ToLower(stringField(raw, "Priority"))]; ok {
		priority = p
	}

	meta := map[string]string{"solman_incident_id": incidentID}
	putMetadata(meta, raw, "SystemID", "Component", "ReporterID")

	req := domain.TicketIntakeRequest{
		Source:         domain.SourceSolman,
		ExternalID:     fmt.Sprintf("SOLMAN-%s", incidentID),
		Title:          stringField(raw, "ShortText"),
		Description:    stringField(raw, "Description"),
		RequesterEmail: stringField(raw, "ReporterEmail"),
		RequesterName:  stringField(raw, "ReporterName"),
		CategoryHint:   a.descriptor.MapCategory(stringField(raw, "Category")),
		PriorityHint:   priority,
		Attachments: attachmentRefs(sliceField(raw, "Attachments"),
			[]string{"FileName"}, []string{"FilePath"}, []string{"ContentType"}, []string{"FileSize"}),
		RawMetadata: meta,
	}
	if err := req.Validate(); err != nil {
		return domain.TicketIntakeRequest{}, util.NewValidationError(err.Error(), nil)
	}
	return req, nil
}
