package config

import (
	"testing"
	"time"
)

func TestParseMailboxes(t *testing.T) {
	boxes, err := parseMailboxes("support:pa55@imap.example.com:993, it-help:s3cret@mail.example.org:993")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("expected 2 mailboxes, got %d", len(boxes))
	}
	if boxes[0].Name != "support" || boxes[0].Addr != "imap.example.com:993" || boxes[0].Password != "pa55" {
		t.Errorf("first mailbox = %+v", boxes[0])
	}
	if boxes[1].Username != "it-help" {
		t.Errorf("second mailbox = %+v", boxes[1])
	}
}

func TestParseMailboxesErrors(t *testing.T) {
	for _, raw := range []string{"justuser", "user-without-host:pw@", ":pw@host:993"} {
		if _, err := parseMailboxes(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
	boxes, err := parseMailboxes("  ")
	if err != nil || boxes != nil {
		t.Errorf("blank spec should parse to nothing, got (%v, %v)", boxes, err)
	}
}

func TestParseIntegrationKeys(t *testing.T) {
	keys := parseIntegrationKeys("glpi:key-1, portal:key-2, broken-pair")
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys["glpi"] != "key-1" || keys["portal"] != "key-2" {
		t.Errorf("keys = %v", keys)
	}
	if parseIntegrationKeys("") != nil {
		t.Error("empty spec should yield nil")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port == "" {
		t.Error("missing default port")
	}
	if cfg.Ingest.TicketNumberPrefix != "PG" {
		t.Errorf("prefix = %q", cfg.Ingest.TicketNumberPrefix)
	}
	if cfg.Ingest.DedupBucket() != time.Hour {
		t.Errorf("dedup bucket = %v", cfg.Ingest.DedupBucket())
	}
	if cfg.Classifier.Enabled() {
		t.Error("classifier should be disabled without an api key")
	}
	if cfg.Classifier.ConfidenceThreshold != 0.5 {
		t.Errorf("threshold = %f", cfg.Classifier.ConfidenceThreshold)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9999")
	t.Setenv("CLASSIFIER_API_KEY", "k")
	t.Setenv("CLASSIFIER_BASE_URL", "http://localhost:8081")
	t.Setenv("EMAIL_MAILBOXES", "support:pw@imap.example.com:993")
	t.Setenv("INGEST_API_KEYS", "glpi:abc")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:9999" {
		t.Errorf("addr = %s", cfg.App.Addr())
	}
	if !cfg.Classifier.Enabled() {
		t.Error("classifier should be enabled")
	}
	if len(cfg.Email.Mailboxes) != 1 {
		t.Errorf("mailboxes = %+v", cfg.Email.Mailboxes)
	}
	if cfg.Ingest.IntegrationKeys["glpi"] != "abc" {
		t.Errorf("integration keys = %v", cfg.Ingest.IntegrationKeys)
	}
	if cfg.App.RequestTimeout() != 12*time.Second {
		t.Errorf("timeout = %v", cfg.App.RequestTimeout())
	}
}

func TestLoadRejectsBadMailboxSpec(t *testing.T) {
	t.Setenv("EMAIL_MAILBOXES", "nonsense")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed mailbox spec")
	}
}
