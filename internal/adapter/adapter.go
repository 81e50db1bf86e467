// Package adapter translates raw source payloads into normalized ticket
// intake requests. Adapters are pure: no I/O, no persistence.
package adapter

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/util"
)

// Descriptor is the static per-channel configuration: adapter identity, the
// external-category → internal-category mapping table and whether the channel
// carries attachments. Loaded once at process start, immutable afterwards.
type Descriptor struct {
	Source             domain.TicketSource
	CategoryMapping    []CategoryRule
	AcceptsAttachments bool
}

// CategoryRule maps one upstream category keyword onto the internal set.
// Rules are checked in declaration order; the first match wins.
type CategoryRule struct {
	Keyword  string
	Category domain.TicketCategory
}

// MapCategory resolves an external category string against the mapping
// table. Matching is case-insensitive on substrings, mirroring how the
// upstream systems label categories inconsistently. Rule order decides
// ties, so the same label always resolves to the same category.
func (d Descriptor) MapCategory(external string) domain.TicketCategory {
	external = strings.ToUpper(strings.TrimSpace(external))
	if external == "" {
		return ""
	}
	for _, rule := range d.CategoryMapping {
		if strings.Contains(external, strings.ToUpper(rule.Keyword)) {
			return rule.Category
		}
	}
	return ""
}

// SourceAdapter normalizes one channel's raw payload shape. Implementations
// fail with a validation error when required fields are missing or
// malformed; they never perform I/O.
type SourceAdapter interface {
	Source() domain.TicketSource
	Descriptor() Descriptor
	Normalize(raw map[string]any) (domain.TicketIntakeRequest, error)
}

// Registry indexes adapters by source tag.
type Registry struct {
	adapters map[domain.TicketSource]SourceAdapter
}

// NewRegistry builds the default registry with one adapter per channel.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[domain.TicketSource]SourceAdapter)}
	for _, a := range []SourceAdapter{
		NewGLPIAdapter(),
		NewSolmanAdapter(),
		NewEmailAdapter(),
		NewWebFormAdapter(),
		NewChatbotAdapter(),
	} {
		r.adapters[a.Source()] = a
	}
	return r
}

// ForSource returns the adapter for a source tag.
func (r *Registry) ForSource(source domain.TicketSource) (SourceAdapter, error) {
	a, ok := r.adapters[source]
	if !ok {
		return nil, util.NewValidationError(fmt.Sprintf("unsupported ticket source %q", source), nil)
	}
	return a, nil
}

// defaultCategoryMapping mirrors the category labels the upstream systems
// use, collapsed onto the internal closed set. More specific keywords come
// before broader ones so compound labels resolve consistently.
func defaultCategoryMapping() []CategoryRule {
	return []CategoryRule{
		{"VPN", domain.CategorySoftwareServices},
		{"EMAIL", domain.CategorySoftwareServices},
		{"MAIL", domain.CategorySoftwareServices},
		{"SOFTWARE", domain.CategorySoftwareServices},
		{"APPLICATION", domain.CategorySoftwareServices},
		{"PROGRAM", domain.CategorySoftwareServices},
		{"PASSWORD", domain.CategoryAccessSecurity},
		{"PERMISSION", domain.CategoryAccessSecurity},
		{"ACCESS", domain.CategoryAccessSecurity},
		{"ACCOUNT", domain.CategoryAccessSecurity},
		{"PRINTER", domain.CategoryHardwareInfrastructure},
		{"NETWORK", domain.CategoryHardwareInfrastructure},
		{"CONNECTIVITY", domain.CategoryHardwareInfrastructure},
		{"HARDWARE", domain.CategoryHardwareInfrastructure},
		{"EQUIPMENT", domain.CategoryHardwareInfrastructure},
		{"DEVICE", domain.CategoryHardwareInfrastructure},
	}
}

// --- shared payload helpers ---

func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			switch s := v.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					return s
				}
			case fmt.Stringer:
				return s.String()
			case float64:
				return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", s), "0"), ".")
			case int:
				return fmt.Sprintf("%d", s)
			}
		}
	}
	return ""
}

func intField(raw map[string]any, key string, fallback int) int {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func mapField(raw map[string]any, key string) map[string]any {
	if v, ok := raw[key].(map[string]any); ok {
		return v
	}
	return nil
}

func sliceField(raw map[string]any, key string) []any {
	if v, ok := raw[key].([]any); ok {
		return v
	}
	return nil
}

// attachmentRefs converts a list of attachment maps into opaque references.
func attachmentRefs(items []any, nameKeys, pathKeys, mimeKeys, sizeKeys []string) []domain.AttachmentRef {
	var refs []domain.AttachmentRef
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref := domain.AttachmentRef{
			FileName:   stringField(m, nameKeys...),
			StorageKey: stringField(m, pathKeys...),
			MimeType:   stringField(m, mimeKeys...),
		}
		for _, k := range sizeKeys {
			if n := intField(m, k, 0); n > 0 {
				ref.SizeBytes = int64(n)
				break
			}
		}
		if ref.FileName == "" && ref.StorageKey == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// metadataString flattens selected raw fields into the audit metadata bag.
func putMetadata(meta map[string]string, raw map[string]any, keys ...string) {
	for _, key := range keys {
		if v := stringField(raw, key); v != "" {
			meta[key] = v
		}
	}
}
