package mailpoll

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spec-kit/ticket-intake/internal/adapter"
	"github.com/spec-kit/ticket-intake/internal/classify"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	"github.com/spec-kit/ticket-intake/internal/store"
)

type fakeSource struct {
	messages []InboundMessage
	err      error
	calls    int
}

func (f *fakeSource) ListSince(ctx context.Context, watermark uint32) ([]InboundMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []InboundMessage
	for _, m := range f.messages {
		if m.UID > watermark {
			out = append(out, m)
		}
	}
	return out, nil
}

func mailMessage(uid uint32, subject string) InboundMessage {
	return InboundMessage{
		UID:       uid,
		MessageID: fmt.Sprintf("<%d@mail.example.com>", uid),
		Subject:   subject,
		FromEmail: "pat@example.com",
		FromName:  "Pat",
		Body:      "Body for " + subject,
	}
}

func newTestWorker(mem store.TicketStore, src MailSource, watermarks store.WatermarkStore) *Worker {
	classifier := classify.NewClassifier(classify.DefaultLexicon(), classify.Options{})
	orch := ingest.NewOrchestrator(ingest.Config{}, ingest.Dependencies{
		Store:      mem,
		Classifier: classifier,
	})
	return NewWorker(
		[]Mailbox{{Name: "support", Source: src}},
		adapter.NewEmailAdapter(), orch, watermarks, 0, nil)
}

func TestPollIngestsAndAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	watermarks := store.NewMemoryWatermarkStore()
	src := &fakeSource{messages: []InboundMessage{
		mailMessage(3, "VPN down"),
		mailMessage(1, "Printer jam"),
		mailMessage(2, "Password reset"),
	}}

	w := newTestWorker(mem, src, watermarks)
	w.PollAll(ctx)

	tickets, err := mem.Query(ctx, store.TicketQuery{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(tickets))
	}

	mark, _ := watermarks.Get(ctx, "support")
	if mark != 3 {
		t.Errorf("watermark = %d, want 3", mark)
	}

	// A second cycle sees nothing new and creates nothing.
	w.PollAll(ctx)
	tickets, _ = mem.Query(ctx, store.TicketQuery{Limit: 10})
	if len(tickets) != 3 {
		t.Errorf("re-poll created tickets: %d", len(tickets))
	}
}

func TestPollSkipsMalformedMail(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	watermarks := store.NewMemoryWatermarkStore()

	malformed := mailMessage(2, "No sender on this one")
	malformed.FromEmail = ""
	malformed.FromName = ""
	src := &fakeSource{messages: []InboundMessage{
		mailMessage(1, "Printer jam"),
		malformed,
		mailMessage(3, "VPN down"),
	}}

	w := newTestWorker(mem, src, watermarks)
	w.PollAll(ctx)

	tickets, _ := mem.Query(ctx, store.TicketQuery{Limit: 10})
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets around the malformed mail, got %d", len(tickets))
	}
	mark, _ := watermarks.Get(ctx, "support")
	if mark != 3 {
		t.Errorf("watermark = %d, want 3 (advanced past the malformed mail)", mark)
	}
}

func TestPollStopsAtIngestFailureWithoutAdvancing(t *testing.T) {
	ctx := context.Background()
	failing := &createFailsAfter{TicketStore: store.NewMemoryStore(), allow: 1}
	watermarks := store.NewMemoryWatermarkStore()
	src := &fakeSource{messages: []InboundMessage{
		mailMessage(1, "Printer jam"),
		mailMessage(2, "VPN down"),
		mailMessage(3, "Password reset"),
	}}

	w := newTestWorker(failing, src, watermarks)
	w.PollAll(ctx)

	mark, _ := watermarks.Get(ctx, "support")
	if mark != 1 {
		t.Fatalf("watermark = %d, want 1 (never past a failed ingest)", mark)
	}

	// Next cycle, with the store healthy again, drains the remainder without
	// duplicating message 1.
	failing.allow = -1
	w.PollAll(ctx)

	tickets, _ := failing.TicketStore.Query(ctx, store.TicketQuery{Limit: 10})
	if len(tickets) != 3 {
		t.Fatalf("expected 3 tickets after recovery, got %d", len(tickets))
	}
	mark, _ = watermarks.Get(ctx, "support")
	if mark != 3 {
		t.Errorf("watermark = %d, want 3", mark)
	}
}

// createFailsAfter lets `allow` creates through, then fails. allow < 0 means
// never fail.
type createFailsAfter struct {
	store.TicketStore
	allow int
}

func (s *createFailsAfter) Create(ctx context.Context, ticket *domain.Ticket) error {
	if s.allow == 0 {
		return errors.New("storage unavailable")
	}
	if s.allow > 0 {
		s.allow--
	}
	return s.TicketStore.Create(ctx, ticket)
}

func TestPollListFailureLeavesWatermark(t *testing.T) {
	ctx := context.Background()
	watermarks := store.NewMemoryWatermarkStore()
	if err := watermarks.Set(ctx, "support", 7); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{err: errors.New("imap: connection reset")}

	w := newTestWorker(store.NewMemoryStore(), src, watermarks)
	w.PollAll(ctx)

	mark, _ := watermarks.Get(ctx, "support")
	if mark != 7 {
		t.Errorf("watermark = %d, want unchanged 7", mark)
	}
	if src.calls != 1 {
		t.Errorf("expected 1 list call, got %d", src.calls)
	}
}

func TestPollOneMailboxFailureDoesNotStallOthers(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	watermarks := store.NewMemoryWatermarkStore()
	classifier := classify.NewClassifier(classify.DefaultLexicon(), classify.Options{})
	orch := ingest.NewOrchestrator(ingest.Config{}, ingest.Dependencies{Store: mem, Classifier: classifier})

	healthy := &fakeSource{messages: []InboundMessage{mailMessage(1, "VPN down")}}
	broken := &fakeSource{err: errors.New("login failed")}

	w := NewWorker([]Mailbox{
		{Name: "broken", Source: broken},
		{Name: "healthy", Source: healthy},
	}, adapter.NewEmailAdapter(), orch, watermarks, 0, nil)
	w.PollAll(ctx)

	tickets, _ := mem.Query(ctx, store.TicketQuery{Limit: 10})
	if len(tickets) != 1 {
		t.Errorf("healthy mailbox should still be drained, got %d tickets", len(tickets))
	}
}
