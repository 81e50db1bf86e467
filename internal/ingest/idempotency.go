package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// IdempotencyKey derives the deduplication key for an intake request.
//
// Requests carrying a source-native identifier key on (source, externalId),
// so reprocessing the same upstream event (an email poll retry, a duplicate
// webhook) always lands on the same key. Requests without one (typically
// web-form double submits) key on a content hash of requester, title and
// description truncated to a time bucket, so the same person resubmitting
// the same text within the bucket dedups, while a genuine new report of the
// same issue next day does not.
func IdempotencyKey(req *domain.TicketIntakeRequest, now time.Time, bucket time.Duration) string {
	h := sha256.New()
	if req.ExternalID != "" {
		fmt.Fprintf(h, "src:%s:%s", req.Source, req.ExternalID)
	} else {
		if bucket <= 0 {
			bucket = time.Hour
		}
		fmt.Fprintf(h, "content:%s|%s|%s|%d",
			req.RequesterEmail, req.Title, req.Description,
			now.UTC().Truncate(bucket).Unix())
	}
	return hex.EncodeToString(h.Sum(nil))
}
