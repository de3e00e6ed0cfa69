// Package preview persists read-only view state: the truncation state of each
// open view and a cache of rendered heights keyed by content hash.
package preview

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"docpad/api/internal/truncate"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ErrViewNotFound is returned for unknown or expired views.
var ErrViewNotFound = errors.New("view not found or expired")

// View is one read-only rendering of a document
type View struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	ContentHash   string    `json:"content_hash"`
	MeasuredLines float64   `json:"measured_lines"`
	Expanded      bool      `json:"expanded"`
	ShowAll       bool      `json:"show_all"`
	CreatedAt     time.Time `json:"created_at"`
}

// State returns the truncation state of the view
func (v View) State() truncate.State {
	return truncate.State{MeasuredLines: v.MeasuredLines, Expanded: v.Expanded}
}

// Store keeps views and measurements
type Store interface {
	SaveView(ctx context.Context, view View, ttl time.Duration) error
	LookupView(ctx context.Context, id string) (View, error)
	DeleteView(ctx context.Context, id string) error
	CachedMeasurement(ctx context.Context, contentHash string) (float64, bool, error)
	SaveMeasurement(ctx context.Context, contentHash string, lines float64, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// ContentHash fingerprints a persisted value for the measurement cache
func ContentHash(value string) string {
	sum := blake2b.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// RedisStore implements view storage using Redis
type RedisStore struct {
	client        *redis.Client
	viewPrefix    string
	measurePrefix string
}

// NewRedisStore creates a new Redis-backed view store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:        client,
		viewPrefix:    "view:",
		measurePrefix: "measure:",
	}
}

func (s *RedisStore) viewKey(id string) string {
	return s.viewPrefix + id
}

func (s *RedisStore) measureKey(hash string) string {
	return s.measurePrefix + hash
}

// SaveView stores a view with expiration
func (s *RedisStore) SaveView(ctx context.Context, view View, ttl time.Duration) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	jsonData, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.viewKey(view.ID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save view: %w", err)
	}
	return nil
}

// LookupView retrieves a view by id
func (s *RedisStore) LookupView(ctx context.Context, id string) (View, error) {
	jsonData, err := s.client.Get(ctx, s.viewKey(id)).Result()
	if err == redis.Nil {
		return View{}, ErrViewNotFound
	}
	if err != nil {
		return View{}, fmt.Errorf("lookup view: %w", err)
	}

	var view View
	if err := json.Unmarshal([]byte(jsonData), &view); err != nil {
		return View{}, fmt.Errorf("unmarshal view: %w", err)
	}
	return view, nil
}

// DeleteView removes a view. Unknown ids are not an error.
func (s *RedisStore) DeleteView(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.viewKey(id)).Err(); err != nil {
		return fmt.Errorf("delete view: %w", err)
	}
	return nil
}

// CachedMeasurement returns the line count measured for a content hash
func (s *RedisStore) CachedMeasurement(ctx context.Context, contentHash string) (float64, bool, error) {
	raw, err := s.client.Get(ctx, s.measureKey(contentHash)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup measurement: %w", err)
	}
	lines, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse measurement: %w", err)
	}
	return lines, true, nil
}

// SaveMeasurement caches the line count for a content hash
func (s *RedisStore) SaveMeasurement(ctx context.Context, contentHash string, lines float64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	value := strconv.FormatFloat(lines, 'f', -1, 64)
	if err := s.client.Set(ctx, s.measureKey(contentHash), value, ttl).Err(); err != nil {
		return fmt.Errorf("save measurement: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
