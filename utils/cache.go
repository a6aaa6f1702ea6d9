package utils

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCacheTTL = time.Minute
	cacheOpTimeout  = 2 * time.Second
	scanBatch       = 1000
	maxScanRounds   = 10
)

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Logger.Debug("cache miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return b, true
}

// CacheGetJSON decodes a cached value into out. A corrupt entry counts as a miss.
func CacheGetJSON(ctx context.Context, key string, out interface{}) bool {
	b, ok := CacheGetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		Logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// CacheSetBytes stores bytes; a non-positive ttl uses the default.
func CacheSetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		Logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	CacheSetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(ctx context.Context, prefixes ...string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for _, prefix := range prefixes {
		var cursor uint64
		for i := 0; i < maxScanRounds; i++ {
			keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
			if err != nil {
				Logger.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
				break
			}
			cursor = cur
			if len(keys) > 0 {
				if err := rc.Del(ctx, keys...).Err(); err != nil {
					Logger.Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
				}
			}
			if cursor == 0 {
				break
			}
		}
	}
}
