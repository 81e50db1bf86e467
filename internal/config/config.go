package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Classifier  ClassifierConfig
	Email       EmailConfig
	Ingest      IngestConfig
	Auth        AuthConfig
	Attachments AttachmentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ClassifierConfig configures the remote classification service and the
// deterministic fallback.
type ClassifierConfig struct {
	BaseURL             string
	APIKey              string
	Model               string
	TimeoutSeconds      int
	MaxAttempts         int
	ConfidenceThreshold float64
	LexiconPath         string
}

// Enabled reports whether the remote classifier is configured. When false
// every classification goes through the fallback path.
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey != "" && c.BaseURL != ""
}

// Timeout returns the per-attempt remote call timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MailboxConfig identifies one polled IMAP account.
type MailboxConfig struct {
	Name     string
	Addr     string
	Username string
	Password string
}

// EmailConfig configures the email polling worker.
type EmailConfig struct {
	Mailboxes           []MailboxConfig
	PollIntervalSeconds int
}

// PollInterval returns the polling cadence.
func (e EmailConfig) PollInterval() time.Duration {
	if e.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

// IngestConfig tunes the ingestion orchestrator.
type IngestConfig struct {
	TicketNumberPrefix string
	DedupBucketSeconds int
	// IntegrationKeys maps integration name to its API key. Values starting
	// with "$2" are treated as bcrypt hashes.
	IntegrationKeys map[string]string
}

// DedupBucket returns the time bucket used for content-hash idempotency keys.
func (i IngestConfig) DedupBucket() time.Duration {
	if i.DedupBucketSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(i.DedupBucketSeconds) * time.Second
}

// AuthConfig defines ticket access token parameters.
type AuthConfig struct {
	TicketTokenSecret     string
	TicketTokenTTLMinutes int
}

// AttachmentConfig locates attachment storage.
type AttachmentConfig struct {
	StorageDir string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	mailboxes, err := parseMailboxes(os.Getenv("EMAIL_MAILBOXES"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_MAILBOXES: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Classifier: ClassifierConfig{
			BaseURL:             getEnv("CLASSIFIER_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
			APIKey:              os.Getenv("CLASSIFIER_API_KEY"),
			Model:               getEnv("CLASSIFIER_MODEL", "gemini-1.5-flash"),
			TimeoutSeconds:      getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 5),
			MaxAttempts:         getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 2),
			ConfidenceThreshold: getEnvAsFloat("CLASSIFIER_CONFIDENCE_THRESHOLD", 0.5),
			LexiconPath:         os.Getenv("CLASSIFIER_LEXICON_PATH"),
		},
		Email: EmailConfig{
			Mailboxes:           mailboxes,
			PollIntervalSeconds: getEnvAsInt("EMAIL_POLL_INTERVAL_SECONDS", 30),
		},
		Ingest: IngestConfig{
			TicketNumberPrefix: getEnv("TICKET_NUMBER_PREFIX", "PG"),
			DedupBucketSeconds: getEnvAsInt("INGEST_DEDUP_BUCKET_SECONDS", 3600),
			IntegrationKeys:    parseIntegrationKeys(os.Getenv("INGEST_API_KEYS")),
		},
		Auth: AuthConfig{
			TicketTokenSecret:     os.Getenv("AUTH_TICKET_TOKEN_SECRET"),
			TicketTokenTTLMinutes: getEnvAsInt("AUTH_TICKET_TOKEN_TTL_MINUTES", 1440),
		},
		Attachments: AttachmentConfig{
			StorageDir: getEnv("ATTACHMENT_STORAGE_DIR", "attachments"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// parseMailboxes parses a comma-separated list of mailbox specs of the form
// user:password@host:port. The mailbox name defaults to the user part.
func parseMailboxes(raw string) ([]MailboxConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var result []MailboxConfig
	for _, spec := range strings.Split(raw, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		at := strings.LastIndex(spec, "@")
		if at < 0 {
			return nil, fmt.Errorf("mailbox %q missing @host", spec)
		}
		creds, addr := spec[:at], spec[at+1:]
		user, pass, ok := strings.Cut(creds, ":")
		if !ok || user == "" || addr == "" {
			return nil, fmt.Errorf("mailbox %q must be user:password@host:port", spec)
		}
		result = append(result, MailboxConfig{
			Name:     user,
			Addr:     addr,
			Username: user,
			Password: pass,
		})
	}
	return result, nil
}

// parseIntegrationKeys parses "name:secret,name2:secret2".
func parseIntegrationKeys(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || secret == "" {
			continue
		}
		keys[name] = secret
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
