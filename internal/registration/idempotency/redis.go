package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
)

const (
	keyPrefix    = "podium:idempotency:"
	pendingValue = "pending"
)

// Redis shares idempotency keys across server instances. A key is claimed
// with SET NX and holds "pending" until the admission commits.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Reserve(ctx context.Context, key string, ttl time.Duration) (id.SubmissionID, bool, error) {
	k := keyPrefix + key
	for range 2 {
		ok, err := r.client.SetNX(ctx, k, pendingValue, ttl).Result()
		if err != nil {
			return id.SubmissionID{}, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return id.SubmissionID{}, true, nil
		}

		val, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return id.SubmissionID{}, false, fmt.Errorf("read idempotency key: %w", err)
		}
		if val == pendingValue {
			return id.SubmissionID{}, false, sentinel.ErrConflict
		}
		subID, err := id.ParseSubmissionID(val)
		if err != nil {
			return id.SubmissionID{}, false, fmt.Errorf("corrupt idempotency key %q: %w", key, err)
		}
		return subID, false, nil
	}
	return id.SubmissionID{}, false, sentinel.ErrConflict
}

func (r *Redis) Complete(ctx context.Context, key string, subID id.SubmissionID, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, subID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// releaseScript deletes the key only while it is still pending.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, pendingValue).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
