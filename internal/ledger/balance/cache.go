package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "ledger:coa:version"

// Cache stores trial-balance responses in Redis behind a version counter.
// Chart-of-accounts mutations bump the version, orphaning every cached
// report at once; the TTL sweeps up whatever journal postings change.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Bump invalidates all cached reports by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return ver, err
}

func (c *Cache) trialBalanceKey(ctx context.Context, organisationID, branchID uuid.UUID, year, period int) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:tb:%s:%s:%d-%02d:%s", organisationID, branchID, year, period, strconv.FormatInt(ver, 10)), nil
}

// GetTrialBalance loads a cached trial balance. Cache errors degrade to a
// miss; the engine always has the store to fall back on.
func (c *Cache) GetTrialBalance(ctx context.Context, organisationID, branchID uuid.UUID, year, period int) (TrialBalance, bool) {
	if c == nil || c.client == nil {
		return TrialBalance{}, false
	}
	key, err := c.trialBalanceKey(ctx, organisationID, branchID, year, period)
	if err != nil {
		return TrialBalance{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return TrialBalance{}, false
	}
	var tb TrialBalance
	if err := json.Unmarshal(raw, &tb); err != nil {
		return TrialBalance{}, false
	}
	return tb, true
}

// SetTrialBalance stores a computed trial balance under the current version.
func (c *Cache) SetTrialBalance(ctx context.Context, organisationID, branchID uuid.UUID, tb TrialBalance) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.trialBalanceKey(ctx, organisationID, branchID, tb.FiscalYear, tb.FiscalPeriod)
	if err != nil {
		return
	}
	raw, err := json.Marshal(tb)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}
