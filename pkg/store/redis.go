package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/liliang-cn/federation-go/pkg/learning"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

const (
	providerKeyPrefix = "federation:provider:"
	providersSetKey   = "federation:providers"
	healthKeyPrefix   = "federation:health:"
	outcomeKeyPrefix  = "federation:outcomes:"

	// healthHistoryLimit caps each provider's health sorted set.
	healthHistoryLimit = 10_000
)

func providerKey(id string) string { return providerKeyPrefix + id }
func healthKey(id string) string   { return healthKeyPrefix + id }
func outcomeKey(id string) string  { return outcomeKeyPrefix + id }

// RedisStore implements Store on Redis. Providers are JSON strings, the
// provider index is a set, and health history and outcomes are sorted sets
// scored by timestamp.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// SaveProvider stores the provider JSON and indexes its id.
func (s *RedisStore) SaveProvider(ctx context.Context, p *registry.Provider) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal provider %s: %w", p.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, providerKey(p.ID), data, 0)
	pipe.SAdd(ctx, providersSetKey, p.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetProvider retrieves a provider by id.
func (s *RedisStore) GetProvider(ctx context.Context, id string) (*registry.Provider, error) {
	data, err := s.client.Get(ctx, providerKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var p registry.Provider
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider %s: %w", id, err)
	}
	return &p, nil
}

// GetAllProviders retrieves every indexed provider.
func (s *RedisStore) GetAllProviders(ctx context.Context) (map[string]*registry.Provider, error) {
	ids, err := s.client.SMembers(ctx, providersSetKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]*registry.Provider, len(ids))
	for _, id := range ids {
		p, err := s.GetProvider(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// SaveHealth appends a health entry to the provider's history, trimming the
// set to the retention limit.
func (s *RedisStore) SaveHealth(ctx context.Context, providerID string, h registry.Health) error {
	checkedAt := h.LastChecked
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	rec := HealthRecord{ProviderID: providerID, Health: h, CheckedAt: checkedAt}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal health for %s: %w", providerID, err)
	}

	key := healthKey(providerID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(checkedAt.UnixNano()),
		Member: string(data),
	})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-healthHistoryLimit-1))
	_, err = pipe.Exec(ctx)
	return err
}

// GetHealthHistory returns the most recent health entries, newest first.
func (s *RedisStore) GetHealthHistory(ctx context.Context, providerID string, limit int) ([]HealthRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	members, err := s.client.ZRevRange(ctx, healthKey(providerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]HealthRecord, 0, len(members))
	for _, m := range members {
		var rec HealthRecord
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal health entry for %s: %w", providerID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveOutcome appends an outcome to the provider's history.
func (s *RedisStore) SaveOutcome(ctx context.Context, o *learning.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome %s: %w", o.OutcomeID, err)
	}

	createdAt := o.CompletedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	key := outcomeKey(o.ProviderID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(createdAt.UnixNano()),
		Member: string(data),
	})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-healthHistoryLimit-1))
	_, err = pipe.Exec(ctx)
	return err
}

// GetRoutingStats aggregates outcomes for a provider over the last N days.
func (s *RedisStore) GetRoutingStats(ctx context.Context, providerID string, days int) (*RoutingStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	members, err := s.client.ZRangeByScore(ctx, outcomeKey(providerID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixNano(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	stats := &RoutingStats{ProviderID: providerID}
	totalLatency := 0
	for _, m := range members {
		var o learning.Outcome
		if err := json.Unmarshal([]byte(m), &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome for %s: %w", providerID, err)
		}
		stats.TotalRequests++
		switch o.Status {
		case learning.StatusSuccess:
			stats.SuccessfulRequests++
		case learning.StatusFailure, learning.StatusError, learning.StatusTimeout:
			stats.FailedRequests++
		}
		stats.TotalCost += o.ActualCost
		totalLatency += o.ActualLatencyMS
	}
	stats.AvgLatencyMS = float64(totalLatency) / float64(stats.TotalRequests)
	return stats, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
