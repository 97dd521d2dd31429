// Package scantoken issues and resolves the opaque tokens embedded in event
// QR codes. An organizer scans a volunteer's code at the venue; the token
// maps back to the event being attended and lapses once the event is over.
package scantoken

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pledgeit/pkg/platform/sentinel"
)

// Store persists scan tokens for their lifetime.
type Store interface {
	Put(ctx context.Context, token string, eventID int64, ttl time.Duration) error
	Resolve(ctx context.Context, token string) (int64, error)
}

// New returns a fresh opaque token.
func New() string {
	return uuid.New().String()
}

// --- in-memory store ---

type entry struct {
	eventID int64
	expires time.Time
}

// InMemory keeps tokens in a map with lazy expiry; the standalone
// deployment's substitute for Redis.
type InMemory struct {
	mu     sync.Mutex
	tokens map[string]entry
	clock  func() time.Time
}

type MemoryOption func(*InMemory)

func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemory) { s.clock = clock }
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{tokens: make(map[string]entry), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Put(ctx context.Context, token string, eventID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = entry{eventID: eventID, expires: s.clock().Add(ttl)}
	return nil
}

func (s *InMemory) Resolve(ctx context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if !s.clock().Before(e.expires) {
		delete(s.tokens, token)
		return 0, sentinel.ErrExpired
	}
	return e.eventID, nil
}

// --- redis store ---

const redisPrefix = "scan:"

// Redis stores tokens with a native TTL so expiry needs no sweeper.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Put(ctx context.Context, token string, eventID int64, ttl time.Duration) error {
	return s.client.Set(ctx, redisPrefix+token, eventID, ttl).Err()
}

func (s *Redis) Resolve(ctx context.Context, token string) (int64, error) {
	val, err := s.client.Get(ctx, redisPrefix+token).Result()
	if err == redis.Nil {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
