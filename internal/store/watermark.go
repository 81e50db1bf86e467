package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// WatermarkStore persists, per mailbox, the highest mail UID whose message
// has been durably ingested. The email polling worker resumes from it after
// a restart, so it must only ever be advanced past ingested messages.
type WatermarkStore interface {
	// Get returns the stored watermark, or 0 when none exists yet.
	Get(ctx context.Context, mailbox string) (uint32, error)
	Set(ctx context.Context, mailbox string, uid uint32) error
}

const watermarkKeyPrefix = "mailpoll:watermark:"

// RedisWatermarkStore keeps watermarks in Redis, surviving restarts.
type RedisWatermarkStore struct {
	client *redis.Client
}

// NewRedisWatermarkStore wraps a redis client.
func NewRedisWatermarkStore(client *redis.Client) *RedisWatermarkStore {
	return &RedisWatermarkStore{client: client}
}

func (s *RedisWatermarkStore) Get(ctx context.Context, mailbox string) (uint32, error) {
	val, err := s.client.Get(ctx, watermarkKeyPrefix+mailbox).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	uid, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(uid), nil
}

func (s *RedisWatermarkStore) Set(ctx context.Context, mailbox string, uid uint32) error {
	return s.client.Set(ctx, watermarkKeyPrefix+mailbox, strconv.FormatUint(uint64(uid), 10), 0).Err()
}

// MemoryWatermarkStore is the in-process fallback used without Redis and in
// tests.
type MemoryWatermarkStore struct {
	mu         sync.Mutex
	watermarks map[string]uint32
}

// NewMemoryWatermarkStore constructs an empty store.
func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{watermarks: make(map[string]uint32)}
}

func (s *MemoryWatermarkStore) Get(ctx context.Context, mailbox string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermarks[mailbox], nil
}

func (s *MemoryWatermarkStore) Set(ctx context.Context, mailbox string, uid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[mailbox] = uid
	return nil
}
