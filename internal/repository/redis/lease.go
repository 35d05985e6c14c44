package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "compliance:worker:lease:"

// Lease is a per-organization reconciliation lease so only one worker
// instance sweeps an organization at a time. Acquire is SET NX with a TTL;
// Release only deletes the key when this holder still owns it.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
	holder string
}

func NewLease(client *redis.Client, ttl time.Duration) *Lease {
	return &Lease{client: client, ttl: ttl, holder: uuid.NewString()}
}

// Acquire tries to take the lease for the organization. Returns false when
// another worker holds it.
func (l *Lease) Acquire(ctx context.Context, orgID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKeyPrefix+orgID.String(), l.holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease for %s: %w", orgID, err)
	}
	return ok, nil
}

// releaseScript deletes the lease only if this holder still owns it, so a
// worker that overran its TTL cannot release a successor's lease.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Release gives the lease back.
func (l *Lease) Release(ctx context.Context, orgID uuid.UUID) error {
	err := releaseScript.Run(ctx, l.client, []string{leaseKeyPrefix + orgID.String()}, l.holder).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease for %s: %w", orgID, err)
	}
	return nil
}
