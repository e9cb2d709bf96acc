package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache for statement projections. Postings
// invalidate the counterparty's key, so staleness is bounded to the TTL
// only for out-of-band writes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs the cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func statementKey(companyID int64, side Side, counterpartyID int64) string {
	return fmt.Sprintf("ledger:statement:%d:%s:%d", companyID, side, counterpartyID)
}

// GetStatement returns a cached statement, or false on miss.
func (c *Cache) GetStatement(ctx context.Context, companyID int64, side Side, counterpartyID int64) ([]Entry, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, statementKey(companyID, side, counterpartyID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// SetStatement stores a statement projection.
func (c *Cache) SetStatement(ctx context.Context, companyID int64, side Side, counterpartyID int64, entries []Entry) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statementKey(companyID, side, counterpartyID), raw, c.ttl).Err()
}

// Invalidate drops the counterparty's cached statement.
func (c *Cache) Invalidate(ctx context.Context, companyID int64, side Side, counterpartyID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, statementKey(companyID, side, counterpartyID)).Err()
}
