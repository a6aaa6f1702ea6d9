package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"

	"github.com/cppla/carecircle/models"
	"github.com/cppla/carecircle/services"
)

// CachedStore serves forum and category lookups from a local LRU. They are read on every write
// and change rarely; counters on the cached copies may lag.
type CachedStore struct {
	*Store
	cache gcache.Cache
	ttl   time.Duration
}

var _ services.Store = (*CachedStore)(nil)

// NewCachedStore wraps store with an LRU of size entries expiring after ttl.
func NewCachedStore(store *Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 1024
	}
	return &CachedStore{Store: store, cache: gcache.New(size).LRU().Build(), ttl: ttl}
}

func (c *CachedStore) GetForum(ctx context.Context, id uint) (models.Forum, error) {
	key := fmt.Sprintf("forum_%d", id)
	v, err := c.cache.Get(key)
	if err == nil {
		return v.(models.Forum), nil
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		return models.Forum{}, errors.Wrap(err, "repository:CachedStore.GetForum: Get")
	}
	forum, err := c.Store.GetForum(ctx, id)
	if err != nil {
		return models.Forum{}, err
	}
	c.set(key, forum)
	return forum, nil
}

func (c *CachedStore) GetCategory(ctx context.Context, id uint) (models.Category, error) {
	key := fmt.Sprintf("category_%d", id)
	v, err := c.cache.Get(key)
	if err == nil {
		return v.(models.Category), nil
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		return models.Category{}, errors.Wrap(err, "repository:CachedStore.GetCategory: Get")
	}
	category, err := c.Store.GetCategory(ctx, id)
	if err != nil {
		return models.Category{}, err
	}
	c.set(key, category)
	return category, nil
}

func (c *CachedStore) set(key string, v interface{}) {
	if c.ttl > 0 {
		_ = c.cache.SetWithExpire(key, v, c.ttl)
		return
	}
	_ = c.cache.Set(key, v)
}
