package presetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thesyncim/studio"
)

// DefaultRedisKey is the hash holding presets when RedisConfig.Key is empty.
const DefaultRedisKey = "studio:presets"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string        // Hash key (default: DefaultRedisKey)
	Timeout  time.Duration // Dial and ping timeout (default: 5s)
}

// RedisStore keeps presets as JSON values of one Redis hash, one field per
// preset name.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, studio.WrapError(studio.ErrCodeResourceUnavailable, err, "connect to redis at %s", cfg.Addr)
	}
	logger().Debug("connected", "addr", cfg.Addr, "key", cfg.Key)
	return &RedisStore{client: client, key: cfg.Key}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]studio.PresetData, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	out := make(map[string]studio.PresetData, len(fields))
	for name, raw := range fields {
		var d studio.PresetData
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			logger().Warn("skipping unreadable preset", "name", name, "err", err)
			continue
		}
		out[name] = d
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, name string, data studio.PresetData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, name, raw).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key, name, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("hdel %s %s: %w", s.key, name, err)
	}
	return nil
}

// Clear removes the whole preset hash.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
