package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultL2Timeout bounds every Redis round trip so a slow L2 can never
// stall the request path.
const DefaultL2Timeout = 2 * time.Second

// RedisStore is the L2 tier: a shared Redis-backed store with native
// expiry and a tag -> key-set index used for group invalidation.
//
// Infrastructure failures never escape this layer. A failed read
// surfaces as absent, a failed write as false; the orchestrator treats
// both as cache misses.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
	log       *logrus.Logger
}

// NewRedisStore wraps a Redis client as an L2 store. All stored keys
// and tag sets are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string, opTimeout time.Duration, log *logrus.Logger) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultL2Timeout
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
		log:       log,
	}
}

// Get reads a value and its remaining TTL. Returns found=false for
// unknown keys and for any transport error; remaining is zero when the
// key has no expiry or the TTL is unknown.
func (s *RedisStore) Get(ctx context.Context, key string) (value []byte, remaining time.Duration, found bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.storageKey(key))
	ttlCmd := pipe.TTL(ctx, s.storageKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, false
		}
		s.log.WithError(err).WithField("key", key).Warn("l2 get failed, treating as miss")
		return nil, 0, false
	}

	data, err := getCmd.Bytes()
	if err != nil {
		return nil, 0, false
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		remaining = ttl
	}
	return data, remaining, true
}

// Set writes a value with native expiry, then adds the key to each
// tag's set and pushes the set's own expiry out to ttl+TagGracePeriod
// so the index cannot outlive the data by more than the grace period.
// Returns false on any transport error.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	storageKey := s.storageKey(key)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, storageKey, value, ttl)
	for _, tag := range tags {
		tagKey := s.tagKey(tag)
		pipe.SAdd(ctx, tagKey, storageKey)
		pipe.Expire(ctx, tagKey, ttl+TagGracePeriod)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("l2 set failed")
		return false
	}
	return true
}

// Delete removes a key and reports whether it existed. Tag-set
// membership is not cleaned up; dangling references are filtered lazily
// during invalidation.
func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.client.Del(ctx, s.storageKey(key)).Result()
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("l2 delete failed")
		return false
	}
	return n > 0
}

// InvalidateByTags deletes every key referenced by the given tags, then
// the tag sets themselves. Returns the number of live keys removed;
// references to already-expired keys are no-ops.
func (s *RedisStore) InvalidateByTags(ctx context.Context, tags []string) int {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	removed := 0
	for _, tag := range tags {
		tagKey := s.tagKey(tag)

		members, err := s.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			s.log.WithError(err).WithField("tag", tag).Warn("l2 tag lookup failed")
			continue
		}

		if len(members) > 0 {
			n, err := s.client.Del(ctx, members...).Result()
			if err != nil {
				s.log.WithError(err).WithField("tag", tag).Warn("l2 tag invalidation failed")
				continue
			}
			removed += int(n)
		}

		if err := s.client.Del(ctx, tagKey).Err(); err != nil {
			s.log.WithError(err).WithField("tag", tag).Warn("l2 tag set delete failed")
		}
	}
	return removed
}

// MemoryUsed reports the server's used_memory from INFO, or 0 when
// unavailable. Used only by the metrics snapshot.
func (s *RedisStore) MemoryUsed(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(info, "\r\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// Ping checks connectivity with the store's bounded timeout.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) storageKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + "tag:" + tag
}
