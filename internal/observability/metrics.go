package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Metrics provides basic in-memory counters for the ingestion pipeline.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	ingestCount   map[domain.TicketSource]int64
	dedupHits     map[domain.TicketSource]int64
	fallbackCount int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		ingestCount:  make(map[domain.TicketSource]int64),
		dedupHits:    make(map[domain.TicketSource]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordIngest counts a successfully created ticket per source.
func (m *Metrics) RecordIngest(source domain.TicketSource) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestCount[source]++
}

// RecordDedupHit counts an ingest call resolved by the idempotency lookup.
func (m *Metrics) RecordDedupHit(source domain.TicketSource) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedupHits[source]++
}

// RecordFallbackClassification counts classifications served by the
// deterministic fallback.
func (m *Metrics) RecordFallbackClassification() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackCount++
}

// Snapshot returns a copy of the pipeline counters.
func (m *Metrics) Snapshot() (ingest, dedup map[domain.TicketSource]int64, fallback int64) {
	if m == nil {
		return nil, nil, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ingest = make(map[domain.TicketSource]int64, len(m.ingestCount))
	for k, v := range m.ingestCount {
		ingest[k] = v
	}
	dedup = make(map[domain.TicketSource]int64, len(m.dedupHits))
	for k, v := range m.dedupHits {
		dedup[k] = v
	}
	return ingest, dedup, m.fallbackCount
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
