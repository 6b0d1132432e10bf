package service

import (
	"context"
	"sync"
	"time"

	dErrors "podium/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for admission, moderation and
// lifecycle writes. The Postgres implementation opens a SQL transaction and
// places it in ctx; the in-memory one serialises on a lock shard.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// numTxShards spreads unrelated events across independent locks.
const numTxShards = 128

// DefaultTxTimeout bounds a transaction when the caller sets no deadline.
const DefaultTxTimeout = 5 * time.Second

// shardedTx is the in-memory StoreTx. Work for the same lock key (an event id
// for admissions and lifecycle changes) runs one at a time, which makes the
// count-then-insert of an admission atomic against other admissions.
type shardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func newShardedTx(timeout time.Duration) *shardedTx {
	return &shardedTx{timeout: timeout}
}

// NewInMemoryTx returns the lock-sharded StoreTx used with the memory store.
func NewInMemoryTx(timeout time.Duration) StoreTx {
	return newShardedTx(timeout)
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func (t *shardedTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txLockKeyCtx).(string); ok && key != "" {
		return int(hashLockKey(key) % numTxShards)
	}
	return 0
}

// hashLockKey is FNV-1a.
func hashLockKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txLockKey struct{}

var txLockKeyCtx = txLockKey{}

// WithLockKey scopes the next RunInTx to key. SQL transactions ignore it and
// rely on row locks instead.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txLockKeyCtx, key)
}
