package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// RemoteClassifier is the contract for the external natural-language
// classification service.
type RemoteClassifier interface {
	Classify(ctx context.Context, title, description string, hint domain.TicketCategory) (Result, error)
}

// GeminiClient calls a Gemini-style generateContent endpoint and parses the
// structured JSON the model is instructed to emit.
type GeminiClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiClient) { g.client = c }
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) GeminiOption {
	return func(g *GeminiClient) { g.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model name.
func WithModel(model string) GeminiOption {
	return func(g *GeminiClient) { g.model = model }
}

// NewGeminiClient creates a remote classifier client.
func NewGeminiClient(apiKey string, opts ...GeminiOption) *GeminiClient {
	g := &GeminiClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		apiKey:  apiKey,
		model:   "gemini-1.5-flash",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GeminiClient) Classify(ctx context.Context, title, description string, hint domain.TicketCategory) (Result, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(title, description, hint)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.3,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 1024,
			CandidateCount:  1,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("classifier api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return parseClassification(&gr)
}

func buildPrompt(title, description string, hint domain.TicketCategory) string {
	var b strings.Builder
	b.WriteString("You are an IT helpdesk assistant. Classify the following support request.\n\n")
	fmt.Fprintf(&b, "Title: %q\nDescription: %q\n", title, description)
	if hint.Valid() {
		fmt.Fprintf(&b, "The source system suggests the category %q; override it when the text disagrees.\n", hint)
	}
	b.WriteString(`
Available categories: hardware_infrastructure, software_digital_services, access_security, general.

Respond only with a JSON object:
{
  "category": "one of the available categories",
  "subcategory": "more specific subcategory",
  "priority": "low|medium|high|urgent|critical",
  "confidence": 0.0,
  "reasoning": "brief explanation",
  "suggested_solutions": ["ordered list of suggested solutions"]
}`)
	return b.String()
}

func parseClassification(gr *geminiResponse) (Result, error) {
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("empty classifier response")
	}
	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var parsed struct {
		Category           string   `json:"category"`
		Subcategory        string   `json:"subcategory"`
		Priority           string   `json:"priority"`
		Confidence         float64  `json:"confidence"`
		Reasoning          string   `json:"reasoning"`
		SuggestedSolutions []string `json:"suggested_solutions"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return Result{}, fmt.Errorf("parse classification payload: %w", err)
	}

	category := domain.TicketCategory(parsed.Category)
	if !category.Valid() {
		category = domain.CategoryGeneral
	}
	priority := domain.TicketPriority(strings.ToLower(parsed.Priority))
	switch priority {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh,
		domain.TicketPriorityUrgent, domain.TicketPriorityCritical:
	default:
		priority = domain.TicketPriorityMedium
	}

	return Result{
		Category:           category,
		Subcategory:        parsed.Subcategory,
		Priority:           priority,
		Confidence:         parsed.Confidence,
		Reasoning:          parsed.Reasoning,
		SuggestedSolutions: parsed.SuggestedSolutions,
		Origin:             OriginRemote,
	}, nil
}

// --- Gemini wire format types ---

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	CandidateCount  int     `json:"candidateCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
