/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Cache provides the basic operations the file registry needs from a cache.
type Cache interface {
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get loads the value under key into data. It returns found=false on a
	// miss.
	Get(ctx context.Context, key string, data interface{}) (bool, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// cacheSize defines the size of the local cache (in number of entries).
const cacheSize = 128000

// localTTL bounds how long an entry lives in process memory before it is
// reloaded from redis.
const localTTL = 1 * time.Minute

// TieredCache keeps entries in a local TinyLFU cache, backed by redis when a
// client is supplied.
type TieredCache struct {
	cache *cache.Cache
}

// NewCache creates a cache. client may be nil, in which case only the local
// tier is used and entries are not shared between replicas.
func NewCache(client redis.UniversalClient) *TieredCache {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(cacheSize, localTTL),
	}
	if client != nil {
		opts.Redis = client
	}
	return &TieredCache{cache: cache.New(opts)}
}

func (r *TieredCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *TieredCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *TieredCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

// FileKey is the cache key of a registry row.
func FileKey(id uint32) string {
	return fmt.Sprintf("tally:file:%d", id)
}
