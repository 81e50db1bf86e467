package classify

import "github.com/spec-kit/ticket-intake/internal/domain"

// Origin records which path produced a classification.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
)

// Result is the output of a classification round. Confidence below the
// configured threshold is never accepted from the remote service; the
// fallback path is forced instead.
type Result struct {
	Category           domain.TicketCategory
	Subcategory        string
	Priority           domain.TicketPriority
	Confidence         float64
	Reasoning          string
	SuggestedSolutions []string
	Origin             Origin
}
