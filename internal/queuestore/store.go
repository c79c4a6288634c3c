// Copyright 2025 James Ross
package queuestore

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// dequeueBatchLua is the atomic batched move described in spec.md
// §4.1.1. Transcribed from the original Python agent's
// DEQUEUE_BATCH_LUA (cloud_cache.py), which this package's tests
// exercise the same way the original's test suite did: crash
// recovery by re-running against a non-empty destination.
const dequeueBatchLua = `
local ret = {}
if redis.call('EXISTS', KEYS[2]) == 1 then
    ret = redis.call('LRANGE', KEYS[2], 0, -1)
elseif redis.call('EXISTS', KEYS[1]) == 1 then
    for i = 1, tonumber(ARGV[1]) do
        local val = redis.call('RPOPLPUSH', KEYS[1], KEYS[2])
        if not val then
            break
        end
        table.insert(ret, val)
    end
end
return ret
`

// Store is the QueueStore capability from spec.md §4.1, backed by a
// Redis-API-compatible server.
type Store struct {
	rdb    *redis.Client
	script *redis.Script
}

// New registers the dequeue_batch script against rdb. Registration is
// idempotent and cheap; go-redis lazily EVALSHAs and falls back to
// EVAL on NOSCRIPT, exactly the pattern the teacher's own
// exactly_once package follows for its reservation script.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, script: redis.NewScript(dequeueBatchLua)}
}

// AppendHead appends one entry at the head of queue (producer side).
func (s *Store) AppendHead(ctx context.Context, queue, entry string) error {
	return s.rdb.LPush(ctx, queue, entry).Err()
}

// Range returns entries by index; stop = -1 means "to end".
func (s *Store) Range(ctx context.Context, queue string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, queue, start, stop).Result()
}

// Delete drops queue and reports whether it existed.
func (s *Store) Delete(ctx context.Context, queue string) (bool, error) {
	n, err := s.rdb.Del(ctx, queue).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List enumerates queue names matching pattern. The store holds
// O(tens) of queues, so KEYS-style enumeration is acceptable (spec.md
// §4.1) rather than an incremental SCAN.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	names, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Len reports a queue's current length without transferring its
// contents, for periodic depth sampling.
func (s *Store) Len(ctx context.Context, queue string) (int64, error) {
	return s.rdb.LLen(ctx, queue).Result()
}

// Incr and Expire and TTL back the enqueuer's fixed-window rate
// limiter; they are plain Redis primitives, not part of the
// QueueStore move/rename contract in spec.md §4.1.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.TTL(ctx, key).Result()
}

// RenameIfAbsent atomically renames src to dst; it succeeds only if
// dst does not already exist. Used to promote work queues to retry
// queues and to advance a retry queue's attempt suffix.
func (s *Store) RenameIfAbsent(ctx context.Context, src, dst string) (bool, error) {
	return s.rdb.RenameNX(ctx, src, dst).Result()
}

// AtomicPushExpireDelete prepends entries to failQueue (newest batch
// at head, per spec.md I4), sets failQueue's TTL, and deletes
// retryQueue — all within one pipelined round trip.
func (s *Store) AtomicPushExpireDelete(ctx context.Context, failQueue string, entries []string, ttl time.Duration, retryQueue string) error {
	args := make([]interface{}, len(entries))
	for i, e := range entries {
		args[i] = e
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, failQueue, args...)
		p.Expire(ctx, failQueue, ttl)
		p.Del(ctx, retryQueue)
		return nil
	})
	return err
}

// DequeueBatch returns up to n entries moved atomically from source
// to destination, per the resume semantics in spec.md §4.1.1.
func (s *Store) DequeueBatch(ctx context.Context, source, destination string, n int) ([]string, error) {
	res, err := s.script.Run(ctx, s.rdb, []string{source, destination}, n).Result()
	if err != nil {
		return nil, err
	}
	return toStrings(res)
}

// PeekQueue is the read-only inspection primitive the admin surface
// uses; distinct from Range only in name, grounded on the original's
// peek_queue.
func (s *Store) PeekQueue(ctx context.Context, queue string, start, stop int64) ([]string, error) {
	return s.Range(ctx, queue, start, stop)
}

// ClearQueue is an operator-facing destructive delete, equivalent to
// Delete but named per the original's clear_queue for the admin API.
func (s *Store) ClearQueue(ctx context.Context, queue string) (bool, error) {
	return s.Delete(ctx, queue)
}

// ClearEverything flushes the entire logical database. It refuses to
// run unless confirm is true, mirroring the original's
// clear_everything(confirm=False) guard against fat-fingered wipes.
func (s *Store) ClearEverything(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmRequired
	}
	return s.rdb.FlushDB(ctx).Err()
}

func toStrings(res interface{}) ([]string, error) {
	raw, ok := res.([]interface{})
	if !ok {
		if res == nil {
			return nil, nil
		}
		return nil, ErrUnexpectedScriptResult
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, ErrUnexpectedScriptResult
		}
		out = append(out, s)
	}
	return out, nil
}
