// Package mailpoll runs the scheduled background process that drains
// configured mailboxes into the ingestion pipeline.
package mailpoll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-intake/internal/adapter"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	"github.com/spec-kit/ticket-intake/internal/store"
)

// InboundMessage is one mail fetched from a mailbox, already decoded.
type InboundMessage struct {
	UID         uint32
	MessageID   string
	Subject     string
	FromEmail   string
	FromName    string
	Body        string
	Attachments []domain.AttachmentRef
	Received    time.Time
}

// MailSource lists messages from one mailbox. Implementations return every
// message with a UID strictly greater than the watermark, in any order.
type MailSource interface {
	ListSince(ctx context.Context, watermark uint32) ([]InboundMessage, error)
}

// Mailbox pairs a configured mailbox name with its source.
type Mailbox struct {
	Name   string
	Source MailSource
}

// Worker polls every configured mailbox on a fixed interval and feeds parsed
// messages through the email adapter into the orchestrator. Each mailbox is
// polled independently; a slow or failing mailbox never stalls the others.
type Worker struct {
	mailboxes  []Mailbox
	adapter    *adapter.EmailAdapter
	orch       *ingest.Orchestrator
	watermarks store.WatermarkStore
	interval   time.Duration
	logger     *zap.Logger
	cron       *cron.Cron
}

// NewWorker constructs the polling worker.
func NewWorker(mailboxes []Mailbox, emailAdapter *adapter.EmailAdapter, orch *ingest.Orchestrator, watermarks store.WatermarkStore, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Worker{
		mailboxes:  mailboxes,
		adapter:    emailAdapter,
		orch:       orch,
		watermarks: watermarks,
		interval:   interval,
		logger:     logger,
	}
}

// Start schedules the polling loop. It returns immediately; call Stop to
// halt scheduling.
func (w *Worker) Start(ctx context.Context) error {
	if len(w.mailboxes) == 0 {
		w.logger.Info("no mailboxes configured; email polling disabled")
		return nil
	}
	w.cron = cron.New()
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, func() { w.PollAll(ctx) }); err != nil {
		return fmt.Errorf("mailpoll: invalid schedule %q: %w", spec, err)
	}
	w.cron.Start()
	w.logger.Info("email polling started",
		zap.Int("mailboxes", len(w.mailboxes)),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (w *Worker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// PollAll runs one polling cycle over every mailbox concurrently.
func (w *Worker) PollAll(ctx context.Context) {
	// Zero-value errgroup: one mailbox failing does not cancel the others.
	var g errgroup.Group
	for _, mb := range w.mailboxes {
		mb := mb
		g.Go(func() error {
			if err := w.pollMailbox(ctx, mb); err != nil {
				w.logger.Warn("mailbox poll failed; will retry next cycle",
					zap.String("mailbox", mb.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pollMailbox drains one mailbox. The watermark is advanced only after a
// message is durably ingested, so a crash mid-batch re-processes the
// remainder; idempotency keys derived from message IDs keep re-processing
// duplicate-free.
func (w *Worker) pollMailbox(ctx context.Context, mb Mailbox) error {
	watermark, err := w.watermarks.Get(ctx, mb.Name)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}

	msgs, err := mb.Source.ListSince(ctx, watermark)
	if err != nil {
		// Transient: the watermark stays put, nothing is lost.
		return fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].UID < msgs[j].UID })

	for _, msg := range msgs {
		req, err := w.adapter.Normalize(rawPayload(mb.Name, msg))
		if err != nil {
			// Malformed mail will stay malformed; skip it and move the
			// watermark past it so the batch is not wedged forever.
			w.logger.Warn("skipping malformed email",
				zap.String("mailbox", mb.Name),
				zap.Uint32("uid", msg.UID),
				zap.Error(err))
			if err := w.watermarks.Set(ctx, mb.Name, msg.UID); err != nil {
				return fmt.Errorf("advance watermark: %w", err)
			}
			continue
		}

		if _, _, err := w.orch.Ingest(ctx, req); err != nil {
			// Stop here: the watermark must never pass an unprocessed
			// message. This one is retried next cycle.
			return fmt.Errorf("ingest uid %d: %w", msg.UID, err)
		}

		if err := w.watermarks.Set(ctx, mb.Name, msg.UID); err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
	}
	w.logger.Info("mailbox drained",
		zap.String("mailbox", mb.Name),
		zap.Int("messages", len(msgs)))
	return nil
}

func rawPayload(mailbox string, msg InboundMessage) map[string]any {
	attachments := make([]any, 0, len(msg.Attachments))
	for _, ref := range msg.Attachments {
		attachments = append(attachments, map[string]any{
			"filename":     ref.FileName,
			"storage_key":  ref.StorageKey,
			"content_type": ref.MimeType,
			"size":         int(ref.SizeBytes),
		})
	}
	raw := map[string]any{
		"subject":     msg.Subject,
		"body":        msg.Body,
		"from_email":  msg.FromEmail,
		"from_name":   msg.FromName,
		"message_id":  msg.MessageID,
		"mailbox":     mailbox,
		"attachments": attachments,
	}
	if !msg.Received.IsZero() {
		raw["received_at"] = msg.Received.UTC().Format(time.RFC3339)
	}
	return raw
}
