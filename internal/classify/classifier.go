package classify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

const fallbackUnavailableReason = "fallback: remote classifier unavailable"

// Classifier combines the remote classification service with the
// deterministic fallback. Classify never returns an error: classification
// must never block ticket creation.
type Classifier struct {
	remote    RemoteClassifier
	fallback  *Fallback
	retry     RetryPolicy
	timeout   time.Duration
	threshold float64
	logger    *zap.Logger

	onFallback func()
}

// Options bundles classifier tuning knobs.
type Options struct {
	// Remote may be nil, in which case every call takes the fallback path.
	Remote RemoteClassifier
	Retry  RetryPolicy
	// Timeout bounds each remote attempt.
	Timeout time.Duration
	// Threshold is the minimum remote confidence accepted; lower results are
	// replaced by the fallback classification.
	Threshold float64
	Logger    *zap.Logger
	// OnFallback is invoked whenever the fallback path serves a request.
	OnFallback func()
}

// NewClassifier constructs a Classifier over the given lexicon.
func NewClassifier(lexicon Lexicon, opts Options) *Classifier {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Classifier{
		remote:     opts.Remote,
		fallback:   NewFallback(lexicon),
		retry:      opts.Retry,
		timeout:    opts.Timeout,
		threshold:  opts.Threshold,
		logger:     opts.Logger,
		onFallback: opts.OnFallback,
	}
}

// Classify returns a classification for the given text. Remote failures and
// low-confidence remote answers are absorbed into the fallback path.
func (c *Classifier) Classify(ctx context.Context, title, description string, hint domain.TicketCategory) Result {
	if c.remote == nil {
		return c.useFallback(title, description, hint, "", -1)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		result, err := c.classifyOnce(ctx, title, description, hint)
		if err == nil {
			if result.Confidence < c.threshold {
				c.logger.Info("remote classification below confidence threshold",
					zap.Float64("confidence", result.Confidence),
					zap.Float64("threshold", c.threshold))
				fb := c.useFallback(title, description, hint, "", -1)
				fb.Reasoning = "fallback: remote confidence below threshold"
				return fb
			}
			return result
		}
		lastErr = err
		if attempt < c.retry.MaxAttempts {
			select {
			case <-time.After(c.retry.NextDelay(attempt)):
			case <-ctx.Done():
				attempt = c.retry.MaxAttempts
			}
		}
	}

	c.logger.Warn("remote classifier unavailable, using fallback", zap.Error(lastErr))
	return c.useFallback(title, description, hint, fallbackUnavailableReason, 0)
}

func (c *Classifier) classifyOnce(ctx context.Context, title, description string, hint domain.TicketCategory) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.remote.Classify(attemptCtx, title, description, hint)
}

// useFallback runs the deterministic classifier. confidence >= 0 overrides
// the fallback's own confidence (the unavailable path reports 0).
func (c *Classifier) useFallback(title, description string, hint domain.TicketCategory, reasoning string, confidence float64) Result {
	if c.onFallback != nil {
		c.onFallback()
	}
	result := c.fallback.Classify(title, description, hint)
	if reasoning != "" {
		result.Reasoning = reasoning
	}
	if confidence >= 0 {
		result.Confidence = confidence
	}
	return result
}
