package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flowpad/flowpad/graph"
)

// RedisStore keeps each flowchart as a JSON string under <prefix>:flowchart:<id>
// and orders them with a sorted set scored by creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":flowchart:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":flowcharts"
}

func (s *RedisStore) List(ctx context.Context) ([]graph.Summary, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flowcharts: %w", err)
	}
	if len(ids) == 0 {
		return []graph.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load flowcharts: %w", err)
	}

	out := make([]graph.Summary, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a value: deleted concurrently.
			continue
		}
		var f graph.Flowchart
		if err := json.Unmarshal([]byte(str), &f); err != nil {
			return nil, fmt.Errorf("failed to decode flowchart: %w", err)
		}
		out = append(out, f.Summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*graph.Flowchart, error) {
	str, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flowchart: %w", err)
	}
	var f graph.Flowchart
	if err := json.Unmarshal([]byte(str), &f); err != nil {
		return nil, fmt.Errorf("failed to decode flowchart: %w", err)
	}
	return &f, nil
}

func (s *RedisStore) Create(ctx context.Context, f graph.Flowchart) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode flowchart: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(f.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store flowchart: %w", err)
	}
	if !ok {
		return fmt.Errorf("flowchart %s already exists", f.ID)
	}

	score := float64(f.CreatedAt.UnixNano())
	if err := s.client.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: f.ID}).Err(); err != nil {
		return fmt.Errorf("failed to index flowchart: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, f graph.Flowchart) error {
	existing, err := s.Get(ctx, f.ID)
	if err != nil {
		return err
	}
	existing.Title = f.Title
	existing.Data = f.Data

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to encode flowchart: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.key(f.ID), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update flowchart: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete flowchart: %w", err)
	}
	if err := s.client.ZRem(ctx, s.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to unindex flowchart: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
