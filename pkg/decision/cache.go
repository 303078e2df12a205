package decision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// ResultCache stores successful evaluation results keyed by table version
// and canonical inputs. Lookups are best-effort; a cache failure must never
// fail an evaluation.
type ResultCache interface {
	Get(ctx context.Context, table *models.DecisionTable, inputs map[string]any) (*models.EvaluationResult, bool)
	Put(ctx context.Context, table *models.DecisionTable, inputs map[string]any, result *models.EvaluationResult)
}

// RedisCache implements ResultCache on redis with a fixed TTL.
type RedisCache struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

const defaultCacheTTL = 5 * time.Minute

// NewRedisCache creates a cache from a redis URL.
func NewRedisCache(redisURL string, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisCache{
		client: redis.NewClient(opts),
		logger: logger,
		ttl:    defaultCacheTTL,
	}, nil
}

// Get returns a cached result when present and decodable.
func (c *RedisCache) Get(ctx context.Context, table *models.DecisionTable, inputs map[string]any) (*models.EvaluationResult, bool) {
	payload, err := c.client.Get(ctx, cacheKey(table, inputs)).Bytes()
	if err != nil {
		return nil, false
	}

	var result models.EvaluationResult

	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.WarnContext(ctx, "failed to decode cached evaluation", "table_id", table.ID, "error", err)

		return nil, false
	}

	return &result, true
}

// Put stores a result. Unsuccessful results are never cached.
func (c *RedisCache) Put(ctx context.Context, table *models.DecisionTable, inputs map[string]any, result *models.EvaluationResult) {
	if !result.Success {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode evaluation for cache", "table_id", table.ID, "error", err)

		return
	}

	if err := c.client.Set(ctx, cacheKey(table, inputs), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to write evaluation cache", "table_id", table.ID, "error", err)
	}
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cacheKey canonicalizes the input bag (sorted keys) so equal inputs hash
// equally regardless of map iteration order.
func cacheKey(table *models.DecisionTable, inputs map[string]any) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	hash := sha256.New()

	for _, k := range keys {
		encoded, _ := json.Marshal(inputs[k])
		fmt.Fprintf(hash, "%s=%s;", k, encoded)
	}

	return fmt.Sprintf("flowforge:decision:%s:v%d:%s", table.ID, table.Version, hex.EncodeToString(hash.Sum(nil)))
}
