package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gamenight/internal/dependencies/clock"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
)

// Storage is a Redis-backed conversation store. Each context lives under its
// own key and expires after Config.ConversationTTL of inactivity.
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping reports whether Redis is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.ConversationStore = (*Storage)(nil)

func (s *Storage) LoadConversation(ctx context.Context, id model.PersonID) (*model.Conversation, error) {
	data, err := s.client.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrConversationNotFound
		}
		return nil, model.Unavailable("load conversation", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, model.Unavailable("decode conversation", err)
	}
	return &conv, nil
}

func (s *Storage) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	stored := conv.Clone()
	stored.UpdatedAt = s.clock.Now()
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	// A zero TTL keeps the key forever
	err = s.client.Set(ctx, conversationKey(conv.PersonID), data, s.cfg.ConversationTTL).Err()
	return model.Unavailable("save conversation", err)
}

func (s *Storage) DeleteConversation(ctx context.Context, id model.PersonID) error {
	return model.Unavailable("delete conversation", s.client.Del(ctx, conversationKey(id)).Err())
}
