package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/adapter"
	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util"
)

// IngestHandler exposes the intake endpoints: one unified entry point plus a
// thin per-channel route for each upstream integration.
type IngestHandler struct {
	registry     *adapter.Registry
	orchestrator *ingest.Orchestrator
	keys         *auth.IntegrationKeys
	tokens       *auth.TicketTokenManager
	attachDir    string
	logger       *zap.Logger
}

// NewIngestHandler constructs handler.
func NewIngestHandler(registry *adapter.Registry, orchestrator *ingest.Orchestrator, keys *auth.IntegrationKeys, tokens *auth.TicketTokenManager, attachDir string, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{
		registry:     registry,
		orchestrator: orchestrator,
		keys:         keys,
		tokens:       tokens,
		attachDir:    attachDir,
		logger:       logger,
	}
}

// Ingest POST /ingest. The payload carries the source tag, the source-native
// data bag and the integration api key.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var req dto.UnifiedIngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if h.keys.Enabled() {
		if _, ok := h.keys.Verify(req.APIKey); !ok {
			return apperrors.NewUnauthorized("invalid or missing api key")
		}
	}
	return h.ingestRaw(c, req.Source, req.Data)
}

// IngestFor builds the handler for one per-channel route, e.g.
// POST /ingest/glpi. The api key travels in the X-API-Key header and is
// checked by middleware.
func (h *IngestHandler) IngestFor(source domain.TicketSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var raw map[string]any
		if err := c.BodyParser(&raw); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		return h.ingestRaw(c, source, raw)
	}
}

// IngestWebForm POST /ingest/web-form. Multipart variant of the web form
// channel: form fields plus uploaded files, which are stored locally and
// attached as opaque references.
func (h *IngestHandler) IngestWebForm(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("expected multipart form data", nil)
	}

	raw := map[string]any{}
	for field, values := range form.Value {
		if len(values) > 0 {
			raw[field] = values[0]
		}
	}

	var attachments []any
	for _, file := range form.File["attachments"] {
		name := filepath.Base(file.Filename)
		key := fmt.Sprintf("%s_%s", uuid.NewString(), name)
		if err := os.MkdirAll(h.attachDir, 0o755); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := c.SaveFile(file, filepath.Join(h.attachDir, key)); err != nil {
			h.logger.Error("attachment save failed", zap.String("file", name), zap.Error(err))
			return apperrors.NewInternalError(err)
		}
		attachments = append(attachments, map[string]any{
			"filename":     name,
			"storage_key":  key,
			"content_type": file.Header.Get("Content-Type"),
			"size":         int(file.Size),
		})
	}
	if len(attachments) > 0 {
		raw["attachments"] = attachments
	}

	return h.ingestRaw(c, domain.SourceWebForm, raw)
}

func (h *IngestHandler) ingestRaw(c *fiber.Ctx, source domain.TicketSource, raw map[string]any) error {
	if name, ok := auth.IntegrationFromContext(c); ok {
		h.logger.Debug("authenticated ingest",
			zap.String("integration", name), zap.String("source", string(source)))
	}

	a, err := h.registry.ForSource(source)
	if err != nil {
		return err
	}
	req, err := a.Normalize(raw)
	if err != nil {
		return err
	}

	ticket, created, err := h.orchestrator.Ingest(c.UserContext(), req)
	if err != nil {
		return err
	}

	resp := dto.FromTicket(ticket)
	if h.tokens != nil {
		// Token issuance must not fail the ingest; the ticket already exists.
		if token, _, err := h.tokens.Issue(ticket.ID, ticket.RequesterEmail); err == nil {
			resp.AccessToken = token
		} else {
			h.logger.Warn("ticket token issuance failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	// A duplicate intake resolves to the pre-existing ticket: 200, not 201.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}
