// Package cache provides the shared caching layer: a Redis-backed
// service for cross-instance scenario reuse with graceful degradation,
// and a process-local TTL cache for hot quote and news lookups.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
)

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return errors that callers
// handle by regenerating from source.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures     int
	checkInterval   time.Duration
	recoveryBackoff time.Duration
}

// Key formats for the cache types this engine stores
const (
	PrefixScenarioSet = "scenario:%s:%s" // symbol, timeframe
	PrefixQuote       = "quote:%s"
	PrefixFusedSignal = "signal:%s"
)

// Default TTLs
const (
	DefaultQuoteTTL  = 15 * time.Second
	DefaultSignalTTL = 60 * time.Second
)

// NewCacheService creates a new CacheService with the provided
// configuration. A failed initial connection returns the service in
// degraded mode rather than an error; health probes recover it.
func NewCacheService(cfg config.RedisConfig, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:          client,
		config:          cfg,
		logger:          logger.With().Str("component", "CacheService").Logger(),
		maxFailures:     3,
		checkInterval:   30 * time.Second,
		recoveryBackoff: 5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.logger.Warn().Err(err).Msg("Initial Redis connection failed, starting degraded")
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	cs.logger.Info().Str("address", cfg.Address).Msg("Redis connected")

	return cs, nil
}

// IsHealthy returns whether Redis is currently available
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn().Int("failures", cs.failureCount).Msg("Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Redis recovered")
	}
	cs.failureCount = 0
	cs.healthy = true
	cs.lastCheck = time.Now()
}

// checkHealth probes Redis when unhealthy and enough time has passed
func (cs *CacheService) checkHealth(ctx context.Context) {
	cs.mu.RLock()
	healthy := cs.healthy
	sinceCheck := time.Since(cs.lastCheck)
	cs.mu.RUnlock()

	if healthy || sinceCheck < cs.recoveryBackoff {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := cs.client.Ping(probeCtx).Err(); err == nil {
		cs.recordSuccess()
	} else {
		cs.mu.Lock()
		cs.lastCheck = time.Now()
		cs.mu.Unlock()
	}
}

// Get retrieves a string value by key
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth(ctx)
	if !cs.IsHealthy() {
		return "", fmt.Errorf("redis unavailable")
	}

	val, err := cs.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", err
	}
	if err != nil {
		cs.recordFailure()
		return "", err
	}
	cs.recordSuccess()
	return val, nil
}

// Set stores a string value with a TTL
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth(ctx)
	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	if err := cs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// Delete removes a key
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// DeletePattern removes all keys matching a pattern via SCAN
func (cs *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	iter := cs.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			cs.recordFailure()
			return err
		}
	}
	if err := iter.Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// GetJSON retrieves and unmarshals a JSON value
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// SetJSON marshals and stores a JSON value with a TTL
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return cs.Set(ctx, key, string(data), ttl)
}

// Close shuts down the Redis client
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping verifies the Redis connection
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// ScenarioSetKey builds the cache key for a scenario set
func ScenarioSetKey(symbol, timeframe string) string {
	return fmt.Sprintf(PrefixScenarioSet, symbol, timeframe)
}

// QuoteKey builds the cache key for a live quote
func QuoteKey(symbol string) string {
	return fmt.Sprintf(PrefixQuote, symbol)
}

// FusedSignalKey builds the cache key for a fused signal snapshot
func FusedSignalKey(symbol string) string {
	return fmt.Sprintf(PrefixFusedSignal, symbol)
}
