package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	"github.com/spec-kit/ticket-intake/internal/notify"
	"github.com/spec-kit/ticket-intake/internal/store"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util"
)

// TicketsHandler serves ticket lookup, conversation and lifecycle endpoints.
type TicketsHandler struct {
	orchestrator *ingest.Orchestrator
	hub          *notify.Hub
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(orchestrator *ingest.Orchestrator, hub *notify.Hub) *TicketsHandler {
	return &TicketsHandler{orchestrator: orchestrator, hub: hub}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.orchestrator.Query(c.UserContext(), query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, msgs, err := h.orchestrator.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.TicketDetailResponse{
		TicketResponse: dto.FromTicket(ticket),
		Messages:       make([]dto.ChatMessageResponse, 0, len(msgs)),
	}
	for i := range msgs {
		detail.Messages = append(detail.Messages, dto.FromMessage(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": detail})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	var req dto.AppendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.orchestrator.AppendMessage(c.UserContext(), c.Params("id"), req.SenderID, req.SenderName, req.SenderType, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// MarkMessageRead POST /tickets/:id/messages/:mid/read.
func (h *TicketsHandler) MarkMessageRead(c *fiber.Ctx) error {
	if err := h.orchestrator.MarkMessageRead(c.UserContext(), c.Params("id"), c.Params("mid")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"read": true}})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.Status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", req.Status), nil)
	}
	ticket, err := h.orchestrator.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Reopen POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	ticket, err := h.orchestrator.Reopen(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Typing POST /tickets/:id/typing. Broadcast-only; nothing is persisted.
func (h *TicketsHandler) Typing(c *fiber.Ctx) error {
	var payload notify.TypingPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	h.hub.Publish(notify.Event{
		Type:     notify.EventTyping,
		TicketID: c.Params("id"),
		Payload:  payload,
	})
	return c.SendStatus(http.StatusAccepted)
}

// StreamEvents GET /tickets/:id/events. Server-sent event stream of the
// ticket's room. Clients that fall behind miss events rather than stalling
// the pipeline.
func (h *TicketsHandler) StreamEvents(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if _, _, err := h.orchestrator.GetTicket(c.UserContext(), ticketID); err != nil {
		return err
	}

	sub := h.hub.Subscribe(ticketID)
	ctx := c.UserContext()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(sub)
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				body, err := json.Marshal(event)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, body); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func parseTicketQuery(c *fiber.Ctx) (store.TicketQuery, error) {
	query := store.TicketQuery{}
	if category := c.Query("category"); category != "" {
		tc := domain.TicketCategory(category)
		if !tc.Valid() {
			return query, apperrors.NewValidationError(fmt.Sprintf("unknown category %q", category), nil)
		}
		query.Category = &tc
	}
	if status := c.Query("status"); status != "" {
		ts := domain.TicketStatus(status)
		if !ts.Valid() {
			return query, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status), nil)
		}
		query.Status = &ts
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	query.Offset = (page - 1) * pageSize
	query.Limit = pageSize
	return query, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
