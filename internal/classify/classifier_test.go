package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

type stubRemote struct {
	result Result
	err    error
	calls  int
}

func (s *stubRemote) Classify(ctx context.Context, title, description string, hint domain.TicketCategory) (Result, error) {
	s.calls++
	return s.result, s.err
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 2 * time.Millisecond}
}

func TestClassifyUsesRemoteResult(t *testing.T) {
	remote := &stubRemote{result: Result{
		Category:   domain.CategoryAccessSecurity,
		Priority:   domain.TicketPriorityHigh,
		Confidence: 0.9,
		Origin:     OriginRemote,
	}}
	c := NewClassifier(DefaultLexicon(), Options{Remote: remote, Retry: fastRetry(2), Threshold: 0.5})

	result := c.Classify(context.Background(), "Locked out", "Cannot log in.", "")
	if result.Origin != OriginRemote {
		t.Fatalf("origin = %s, want remote", result.Origin)
	}
	if result.Category != domain.CategoryAccessSecurity {
		t.Errorf("category = %s", result.Category)
	}
	if remote.calls != 1 {
		t.Errorf("expected 1 remote call, got %d", remote.calls)
	}
}

func TestClassifyFallsBackWhenRemoteUnavailable(t *testing.T) {
	remote := &stubRemote{err: errors.New("connection refused")}
	fallbacks := 0
	c := NewClassifier(DefaultLexicon(), Options{
		Remote:     remote,
		Retry:      fastRetry(3),
		Threshold:  0.5,
		OnFallback: func() { fallbacks++ },
	})

	result := c.Classify(context.Background(), "VPN down", "The vpn tunnel will not connect.", "")
	if result.Origin != OriginFallback {
		t.Fatalf("origin = %s, want fallback", result.Origin)
	}
	if result.Category != domain.CategorySoftwareServices {
		t.Errorf("category = %s, want software from keyword match", result.Category)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %f, want 0 when remote unavailable", result.Confidence)
	}
	if remote.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", remote.calls)
	}
	if fallbacks != 1 {
		t.Errorf("expected 1 fallback notification, got %d", fallbacks)
	}
}

func TestClassifyLowConfidenceForcesFallback(t *testing.T) {
	remote := &stubRemote{result: Result{
		Category:   domain.CategoryGeneral,
		Priority:   domain.TicketPriorityMedium,
		Confidence: 0.2,
		Origin:     OriginRemote,
	}}
	c := NewClassifier(DefaultLexicon(), Options{Remote: remote, Retry: fastRetry(2), Threshold: 0.5})

	result := c.Classify(context.Background(), "Printer broken", "The printer shows a paper jam.", "")
	if result.Origin != OriginFallback {
		t.Fatalf("origin = %s, want fallback for low remote confidence", result.Origin)
	}
	if result.Category != domain.CategoryHardwareInfrastructure {
		t.Errorf("category = %s, want hardware from keyword match", result.Category)
	}
	if result.Confidence <= 0 {
		t.Errorf("confidence = %f, want the fallback's own confidence", result.Confidence)
	}
}

func TestClassifyNilRemoteUsesFallback(t *testing.T) {
	c := NewClassifier(DefaultLexicon(), Options{})

	result := c.Classify(context.Background(), "Forgot password", "Need a reset.", "")
	if result.Origin != OriginFallback {
		t.Fatalf("origin = %s, want fallback", result.Origin)
	}
	if result.Category != domain.CategoryAccessSecurity {
		t.Errorf("category = %s", result.Category)
	}
	if result.Confidence <= 0 {
		t.Errorf("confidence = %f, want positive when fallback is the primary path", result.Confidence)
	}
}

func TestClassifyNeverReturnsInvalidCategory(t *testing.T) {
	remote := &stubRemote{err: errors.New("boom")}
	c := NewClassifier(DefaultLexicon(), Options{Remote: remote, Retry: fastRetry(1)})

	result := c.Classify(context.Background(), "anything at all", "completely unmatched text qzx", "")
	if !result.Category.Valid() {
		t.Errorf("classification produced invalid category %q", result.Category)
	}
}
