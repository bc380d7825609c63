package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheTimeout    = 2 * time.Second

	// SimilarPostsPrefix namespaces the ranked similar-post ids of each post.
	SimilarPostsPrefix = "cache:post:similar:"
)

// SimilarPostsKey is the cache key of a post's similar-post ranking.
func SimilarPostsKey(postID uint) string {
	return fmt.Sprintf("%s%d", SimilarPostsPrefix, postID)
}

// withRedis runs fn with a bounded context. It reports false when no client is configured.
func withRedis(timeout time.Duration, fn func(ctx context.Context, rc *redis.Client)) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fn(ctx, rc)
	return true
}

// CacheGetJSON decodes a cached JSON value into v. Misses and decode failures both report false.
func CacheGetJSON(key string, v interface{}) bool {
	var (
		b   []byte
		err error
	)
	if !withRedis(cacheTimeout, func(ctx context.Context, rc *redis.Client) {
		b, err = rc.Get(ctx, key).Bytes()
	}) {
		return false
	}
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			Sugar.Debugf("cache get key=%s err=%v", key, err)
		}
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// CacheSetJSON stores v as JSON, using the default TTL when ttl is not positive.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnf("cache encode key=%s err=%v", key, err)
		return
	}
	withRedis(cacheTimeout, func(ctx context.Context, rc *redis.Client) {
		if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set key=%s err=%v", key, err)
		}
	})
}

// InvalidateByPrefix deletes every key under prefix, scanning in bounded rounds.
func InvalidateByPrefix(prefix string) {
	withRedis(3*time.Second, func(ctx context.Context, rc *redis.Client) {
		iter := rc.Scan(ctx, 0, prefix+"*", 1000).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if len(keys) == 1000 {
				rc.Del(ctx, keys...)
				keys = keys[:0]
			}
		}
		if err := iter.Err(); err != nil {
			Sugar.Warnf("cache invalidate prefix=%s err=%v", prefix, err)
		}
		if len(keys) > 0 {
			rc.Del(ctx, keys...)
		}
	})
}
