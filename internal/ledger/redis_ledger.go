// Package ledger implements asset.Ledger, the at-most-once guard around
// asset materialisation: only one attempt may hold a given asset ID's
// claim at a time, whether that attempt is a goroutine on this device or
// another device sharing a fleet-wide Redis instance.
//
// Grounded on exactly_once/idempotency.go's RedisIdempotencyManager,
// adapted from "has this message been processed" keys to "is this asset
// currently being materialised" keys, reusing the same atomic
// check-and-reserve Lua script shape.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/redis/go-redis/v9"
)

const reserveScript = `
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
	return 0
end
redis.call('SETEX', key, ARGV[1], ARGV[2])
return 1
`

// RedisLedger backs asset.Ledger with a Redis instance shared across a
// device fleet, so two devices racing to materialise the same asset
// version never both attempt the download.
type RedisLedger struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisLedger builds a RedisLedger. ttl bounds how long a reservation
// survives an attempt that never confirms or releases it (e.g. a device
// that reboots mid-download), so the claim eventually expires and a
// later attempt can retry.
func NewRedisLedger(client *redis.Client, namespace string, ttl time.Duration) *RedisLedger {
	if namespace == "" {
		namespace = "asset-ledger"
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLedger{client: client, namespace: namespace, ttl: ttl}
}

func (l *RedisLedger) key(id asset.ID) string {
	return fmt.Sprintf("%s:%s", l.namespace, id.String())
}

// Reserve implements asset.Ledger.
func (l *RedisLedger) Reserve(ctx context.Context, id asset.ID) (bool, error) {
	result, err := l.client.Eval(ctx, reserveScript, []string{l.key(id)},
		int(l.ttl.Seconds()), time.Now().Unix()).Int()
	if err != nil {
		return false, fmt.Errorf("ledger: reserve %s: %w", id, err)
	}
	return result == 1, nil
}

// Confirm implements asset.Ledger.
func (l *RedisLedger) Confirm(ctx context.Context, id asset.ID) error {
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("ledger: confirm %s: %w", id, err)
	}
	return nil
}

// Release implements asset.Ledger.
func (l *RedisLedger) Release(ctx context.Context, id asset.ID) error {
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("ledger: release %s: %w", id, err)
	}
	return nil
}
