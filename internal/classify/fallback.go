package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// LexiconEntry maps a set of keywords to a category/subcategory pair.
// Entries are matched in order; the entry with the most keyword hits wins,
// earlier entries winning ties, so classification of identical input is
// stable across runs.
type LexiconEntry struct {
	Subcategory string                `yaml:"subcategory"`
	Category    domain.TicketCategory `yaml:"category"`
	Keywords    []string              `yaml:"keywords"`
	Solutions   []string              `yaml:"solutions,omitempty"`
}

// Lexicon is the fallback classification table.
type Lexicon struct {
	Entries []LexiconEntry `yaml:"entries"`
}

// DefaultLexicon returns the built-in keyword table.
func DefaultLexicon() Lexicon {
	return Lexicon{Entries: []LexiconEntry{
		{
			Subcategory: "VPN",
			Category:    domain.CategorySoftwareServices,
			Keywords:    []string{"vpn", "remote access", "tunnel", "disconnect"},
			Solutions: []string{
				"Check your internet connection",
				"Restart the VPN client",
				"Try a different VPN gateway",
			},
		},
		{
			Subcategory: "Password",
			Category:    domain.CategoryAccessSecurity,
			Keywords:    []string{"password", "forgot", "expired", "unlock", "locked out"},
			Solutions: []string{
				"Use the self-service portal to reset your password",
				"Follow the instructions sent to your registered email",
			},
		},
		{
			Subcategory: "Email",
			Category:    domain.CategorySoftwareServices,
			Keywords:    []string{"email", "mailbox", "outlook", "quota", "smtp", "attachment"},
		},
		{
			Subcategory: "Access Control",
			Category:    domain.CategoryAccessSecurity,
			Keywords:    []string{"permission", "access denied", "shared folder", "drive", "authorization"},
		},
		{
			Subcategory: "Hardware",
			Category:    domain.CategoryHardwareInfrastructure,
			Keywords:    []string{"laptop", "desktop", "monitor", "keyboard", "mouse", "battery", "screen"},
		},
		{
			Subcategory: "Printer",
			Category:    domain.CategoryHardwareInfrastructure,
			Keywords:    []string{"printer", "print", "scan", "toner", "paper jam"},
		},
		{
			Subcategory: "Network",
			Category:    domain.CategoryHardwareInfrastructure,
			Keywords:    []string{"internet", "wifi", "network", "connectivity", "lan", "timeout"},
		},
		{
			Subcategory: "Software",
			Category:    domain.CategorySoftwareServices,
			Keywords:    []string{"install", "installation", "update", "license", "crash", "application", "error"},
		},
	}}
}

// LoadLexicon reads a lexicon from a YAML file. An empty path returns the
// built-in default.
func LoadLexicon(path string) (Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(lex.Entries) == 0 {
		return Lexicon{}, fmt.Errorf("lexicon %s contains no entries", path)
	}
	for i, entry := range lex.Entries {
		if !entry.Category.Valid() {
			return Lexicon{}, fmt.Errorf("lexicon entry %d: unknown category %q", i, entry.Category)
		}
	}
	return lex, nil
}

var urgencyKeywords = []string{"urgent", "critical", "emergency", "asap", "immediately"}

// Fallback is the deterministic keyword classifier. It is total: it never
// fails and always returns one of the fixed categories.
type Fallback struct {
	lexicon Lexicon
}

// NewFallback builds a fallback classifier over the given lexicon.
func NewFallback(lexicon Lexicon) *Fallback {
	return &Fallback{lexicon: lexicon}
}

// Classify matches the lexicon against title and description. Without any
// keyword hit it falls back to the source hint, then to the general
// category. Priority defaults to medium unless an urgency keyword appears.
func (f *Fallback) Classify(title, description string, hint domain.TicketCategory) Result {
	text := strings.ToLower(title + " " + description)

	best := -1
	bestMatches := 0
	for i, entry := range f.lexicon.Entries {
		matches := 0
		for _, kw := range entry.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				matches++
			}
		}
		if matches > bestMatches {
			best = i
			bestMatches = matches
		}
	}

	result := Result{
		Category:   domain.CategoryGeneral,
		Priority:   domain.TicketPriorityMedium,
		Confidence: 0.2,
		Reasoning:  "fallback classification using keyword matching",
		Origin:     OriginFallback,
	}
	if best >= 0 {
		entry := f.lexicon.Entries[best]
		result.Category = entry.Category
		result.Subcategory = entry.Subcategory
		result.SuggestedSolutions = append([]string(nil), entry.Solutions...)
		confidence := 0.3 + 0.1*float64(bestMatches)
		if confidence > 0.7 {
			confidence = 0.7
		}
		result.Confidence = confidence
	} else if hint.Valid() {
		result.Category = hint
		result.Confidence = 0.3
		result.Reasoning = "fallback classification from source hint"
	}

	for _, kw := range urgencyKeywords {
		if strings.Contains(text, kw) {
			result.Priority = domain.TicketPriorityHigh
			break
		}
	}
	if len(result.SuggestedSolutions) == 0 {
		result.SuggestedSolutions = []string{"A support agent will review your request shortly"}
	}
	return result
}
