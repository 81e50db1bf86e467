package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/adapter"
	transport "github.com/spec-kit/ticket-intake/internal/api/http"
	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/classify"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	"github.com/spec-kit/ticket-intake/internal/notify"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/store"
)

func newTestApp(t *testing.T, integrationKeys map[string]string, tokenSecret string) *fiber.App {
	t.Helper()

	mem := store.NewMemoryStore()
	hub := notify.NewHub()
	metrics := observability.NewMetrics()
	classifier := classify.NewClassifier(classify.DefaultLexicon(), classify.Options{})
	orch := ingest.NewOrchestrator(ingest.Config{}, ingest.Dependencies{
		Store:      mem,
		Classifier: classifier,
		Hub:        hub,
		Metrics:    metrics,
	})
	keys := auth.NewIntegrationKeys(integrationKeys)
	tokens := auth.NewTicketTokenManager(tokenSecret, 60)

	app := fiber.New()
	transport.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	transport.RegisterRoutes(app, transport.RouteConfig{
		Health:          handlers.NewHealthHandler("test", "test", nil, nil, metrics),
		Ingest:          handlers.NewIngestHandler(adapter.NewRegistry(), orch, keys, tokens, t.TempDir(), nil),
		Tickets:         handlers.NewTicketsHandler(orch, hub),
		IntegrationKeys: keys,
		TicketTokens:    tokens,
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	decoded := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func webFormPayload() map[string]any {
	return map[string]any{
		"source": "web_form",
		"data": map[string]any{
			"title":       "VPN keeps dropping",
			"description": "The vpn tunnel disconnects every hour.",
			"email":       "pat@example.com",
			"name":        "Pat",
		},
	}
}

func TestIngestEndpoint(t *testing.T) {
	app := newTestApp(t, nil, "")

	resp, body := doJSON(t, app, http.MethodPost, "/ingest", webFormPayload(), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["id"] == "" || data["ticket_number"] == "" {
		t.Errorf("response missing identifiers: %v", data)
	}
	if data["category"] != "software_digital_services" {
		t.Errorf("category = %v", data["category"])
	}
	if data["status"] != "open" {
		t.Errorf("status = %v", data["status"])
	}
}

func TestIngestEndpointDedups(t *testing.T) {
	app := newTestApp(t, nil, "")
	payload := map[string]any{
		"source": "glpi",
		"data": map[string]any{
			"id":      42,
			"name":    "Monitor flickers",
			"content": "Flickers under load.",
			"_users_id_recipient": map[string]any{
				"email": "pat@example.com", "name": "Pat",
			},
		},
	}

	firstResp, first := doJSON(t, app, http.MethodPost, "/ingest", payload, nil)
	secondResp, second := doJSON(t, app, http.MethodPost, "/ingest", payload, nil)
	if firstResp.StatusCode != http.StatusCreated {
		t.Errorf("first ingest status = %d, want 201", firstResp.StatusCode)
	}
	if secondResp.StatusCode != http.StatusOK {
		t.Errorf("duplicate ingest status = %d, want 200", secondResp.StatusCode)
	}
	firstID := first["data"].(map[string]any)["id"]
	secondID := second["data"].(map[string]any)["id"]
	if firstID != secondID {
		t.Errorf("duplicate ingest created a new ticket: %v vs %v", firstID, secondID)
	}
}

func TestIngestEndpointValidation(t *testing.T) {
	app := newTestApp(t, nil, "")

	resp, body := doJSON(t, app, http.MethodPost, "/ingest", map[string]any{
		"source": "web_form",
		"data":   map[string]any{"title": "no description or email"},
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_FAILED" {
		t.Errorf("error = %v", errObj)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/ingest", map[string]any{
		"source": "telepathy",
		"data":   map[string]any{},
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d for unknown source", resp.StatusCode)
	}
}

func TestIngestEndpointRequiresKey(t *testing.T) {
	app := newTestApp(t, map[string]string{"portal": "k3y"}, "")

	resp, _ := doJSON(t, app, http.MethodPost, "/ingest", webFormPayload(), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d without key", resp.StatusCode)
	}

	payload := webFormPayload()
	payload["api_key"] = "k3y"
	resp, _ = doJSON(t, app, http.MethodPost, "/ingest", payload, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d with key", resp.StatusCode)
	}
}

func TestPerSourceIngestEndpoint(t *testing.T) {
	app := newTestApp(t, map[string]string{"solman": "s3cret"}, "")
	payload := map[string]any{
		"IncidentID":    "INC1",
		"ShortText":     "SAP crash",
		"Description":   "Crashes on login.",
		"Priority":      "High",
		"ReporterEmail": "pat@example.com",
	}

	resp, _ := doJSON(t, app, http.MethodPost, "/ingest/solman", payload, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d without header", resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodPost, "/ingest/solman", payload,
		map[string]string{"X-API-Key": "s3cret"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["priority"] != "high" {
		t.Errorf("priority = %v", data["priority"])
	}
}

func TestWebFormMultipartEndpoint(t *testing.T) {
	app := newTestApp(t, nil, "")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "Broken keyboard")
	_ = form.WriteField("description", "Keys are sticking on my laptop keyboard.")
	_ = form.WriteField("email", "pat@example.com")
	_ = form.WriteField("name", "Pat")
	part, err := form.CreateFormFile("attachments", "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("jpeg-bytes"))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/web-form", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	data := body["data"].(map[string]any)
	attachments, _ := data["attachments"].([]any)
	if len(attachments) != 1 {
		t.Fatalf("attachments = %v", data["attachments"])
	}
	ref := attachments[0].(map[string]any)
	if ref["file_name"] != "photo.jpg" {
		t.Errorf("attachment = %v", ref)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t, nil, "")

	_, created := doJSON(t, app, http.MethodPost, "/ingest", webFormPayload(), nil)
	ticketID := created["data"].(map[string]any)["id"].(string)

	resp, body := doJSON(t, app, http.MethodGet, "/tickets/"+ticketID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if body["data"].(map[string]any)["messages"] == nil {
		t.Error("detail response missing messages list")
	}

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/tickets/%s/messages", ticketID), map[string]any{
		"sender_id":   "u1",
		"sender_name": "Pat",
		"sender_type": "user",
		"content":     "Any update?",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("message status = %d, body = %v", resp.StatusCode, body)
	}
	messageID := body["data"].(map[string]any)["id"].(string)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/tickets/%s/messages/%s/read", ticketID, messageID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/tickets/%s/status", ticketID), map[string]any{
		"status": "in_progress",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status update = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/tickets/%s/status", ticketID), map[string]any{
		"status": "closed",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("invalid transition = %d", resp.StatusCode)
	}
	if body["error"].(map[string]any)["code"] != "INVALID_STATE_TRANSITION" {
		t.Errorf("error = %v", body["error"])
	}

	doJSON(t, app, http.MethodPatch, fmt.Sprintf("/tickets/%s/status", ticketID), map[string]any{"status": "resolved"}, nil)
	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/tickets/%s/reopen", ticketID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reopen = %d", resp.StatusCode)
	}
	if body["data"].(map[string]any)["status"] != "open" {
		t.Errorf("status after reopen = %v", body["data"].(map[string]any)["status"])
	}

	resp, body = doJSON(t, app, http.MethodGet, "/tickets?status=open", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d", resp.StatusCode)
	}
	if items := body["data"].([]any); len(items) != 1 {
		t.Errorf("list returned %d tickets", len(items))
	}

	resp, _ = doJSON(t, app, http.MethodGet, "/tickets/does-not-exist", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing ticket = %d", resp.StatusCode)
	}
}

func TestTicketAccessWithToken(t *testing.T) {
	app := newTestApp(t, map[string]string{"portal": "k3y"}, "sign-me")

	payload := webFormPayload()
	payload["api_key"] = "k3y"
	_, created := doJSON(t, app, http.MethodPost, "/ingest", payload, nil)
	data := created["data"].(map[string]any)
	ticketID := data["id"].(string)
	token, _ := data["access_token"].(string)
	if token == "" {
		t.Fatal("ingest response missing access token")
	}

	resp, _ := doJSON(t, app, http.MethodGet, "/tickets/"+ticketID, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated get = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, http.MethodGet, "/tickets/"+ticketID, nil,
		map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token get = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, http.MethodGet, "/tickets/"+ticketID, nil,
		map[string]string{"X-API-Key": "k3y"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api key get = %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, nil, "")

	resp, body := doJSON(t, app, http.MethodGet, "/health/live", nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "alive" {
		t.Errorf("live = %d %v", resp.StatusCode, body)
	}

	// Memory mode: backends report disabled, readiness holds.
	resp, body = doJSON(t, app, http.MethodGet, "/health/ready", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d %v", resp.StatusCode, body)
	}

	doJSON(t, app, http.MethodPost, "/ingest", webFormPayload(), nil)
	resp, body = doJSON(t, app, http.MethodGet, "/stats", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats = %d", resp.StatusCode)
	}
	stats := body["data"].(map[string]any)
	ingested := stats["ingested_by_source"].(map[string]any)
	if ingested["web_form"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
}
