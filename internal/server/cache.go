package server

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"layer-anything/internal/config"
	"layer-anything/internal/layer"
	"layer-anything/pkg/geometry"
)

// Cache stores detection results in redis so repeated uploads of the same
// image skip OCR and segmentation. All failures are soft: callers treat
// errors as cache misses and keep serving.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a redis-backed cache. The connection is lazy; use Ping to
// probe it.
func NewCache(cfg config.RedisConfig) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, ttl: cfg.TTL}
}

// Ping probes the redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetJSON loads a cached value into out. The bool reports a hit; a missing
// key is not an error.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores a value under the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// BytesMD5 returns the hex md5 digest of a byte slice.
func BytesMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// textKey caches text detection per image and granularity.
func textKey(md5sum string, granularity layer.Granularity) string {
	return fmt.Sprintf("text:%s:%s", md5sum, granularity)
}

// objectKey caches interactive segmentation per image and rect.
func objectKey(md5sum string, rect geometry.RectInt) string {
	return fmt.Sprintf("object:%s:%d,%d,%d,%d", md5sum, rect.X, rect.Y, rect.Width, rect.Height)
}

// autoKey caches automatic segmentation per image.
func autoKey(md5sum string) string {
	return "object:" + md5sum + ":auto"
}
