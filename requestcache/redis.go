package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// clearScanBatch bounds how many keys a Clear deletes per round trip.
const clearScanBatch = 100

// Codec converts values to and from the bytes kept in Redis.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonCodec[V any] struct{}

func (jsonCodec[V]) Marshal(v V) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// JSONCodec returns the default codec, which marshals values with
// encoding/json.
func JSONCodec[V any]() Codec[V] { return jsonCodec[V]{} }

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

// WithKeyPrefix sets the Redis key prefix. Defaults to "outguard:rc:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) { o.prefix = prefix }
}

// WithRedisTimeout bounds each Redis round trip. Defaults to one second.
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRedisLogger sets the logger for fail-soft diagnostics. Defaults to
// a no-op logger.
func WithRedisLogger(log *zap.Logger) RedisOption {
	return func(o *redisOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// RedisStore shares resolved values across process instances through
// Redis. All operations fail soft: when Redis is unreachable reads are
// misses and writes are discarded, so callers only lose reuse, never
// availability. The caller owns the client's lifecycle.
type RedisStore[V any] struct {
	rdb     redis.UniversalClient
	codec   Codec[V]
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

// NewRedisStore creates a store on an existing client. A nil codec falls
// back to JSONCodec.
func NewRedisStore[V any](client redis.UniversalClient, codec Codec[V], opts ...RedisOption) *RedisStore[V] {
	o := redisOptions{
		prefix:  "outguard:rc:",
		timeout: time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if codec == nil {
		codec = JSONCodec[V]()
	}
	return &RedisStore[V]{
		rdb:     client,
		codec:   codec,
		prefix:  o.prefix,
		timeout: o.timeout,
		log:     o.log,
	}
}

// Get retrieves a value by key. Misses, unreachable Redis and undecodable
// payloads all report a miss.
func (s *RedisStore[V]) Get(key string) (V, bool) {
	var zero V

	ctx, cancel := s.opCtx()
	defer cancel()

	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Debug("redis get failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	v, err := s.codec.Unmarshal(data)
	if err != nil {
		s.log.Debug("redis value undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set stores a value under key. A ttl <= 0 stores it without expiry.
// Errors are discarded.
func (s *RedisStore[V]) Set(key string, v V, ttl time.Duration) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		s.log.Debug("redis value unencodable, discarding write", zap.String("key", key), zap.Error(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.rdb.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		s.log.Debug("redis set failed, discarding write", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a key. Errors are discarded.
func (s *RedisStore[V]) Delete(key string) {
	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		s.log.Debug("redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every key under the store's prefix. It is best effort:
// the scan stops at the operation timeout.
func (s *RedisStore[V]) Clear() {
	ctx, cancel := s.opCtx()
	defer cancel()

	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", clearScanBatch).Iterator()
	keys := make([]string, 0, clearScanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == clearScanBatch {
			s.rdb.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	if err := iter.Err(); err != nil {
		s.log.Debug("redis clear scan failed", zap.Error(err))
	}
}

// Len reports 0: entries live in Redis and are shared between instances.
func (s *RedisStore[V]) Len() int { return 0 }

func (s *RedisStore[V]) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
