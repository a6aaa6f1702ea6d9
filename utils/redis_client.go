package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/carecircle/config"
)

var (
	redisClient *redis.Client
	redisMu     sync.RWMutex
)

// InitRedis connects the shared client. When redis is disabled the cache helpers become no-ops.
func InitRedis(cfg config.AppConfig) error {
	if cfg.RedisDisabled {
		SetRedis(nil)
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return errors.Wrap(err, "utils:InitRedis: ping")
	}
	SetRedis(client)
	return nil
}

// SetRedis replaces the shared client; nil disables caching.
func SetRedis(client *redis.Client) {
	redisMu.Lock()
	redisClient = client
	redisMu.Unlock()
}

// GetRedis returns the shared client or nil when caching is off.
func GetRedis() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}
