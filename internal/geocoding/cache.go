package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"example.com/activities/internal/geo"
	"example.com/activities/internal/observability"
)

// CoordinateCache stores resolved coordinates across ranking calls.
type CoordinateCache interface {
	Get(ctx context.Context, place string) (geo.Coordinate, bool, error)
	Set(ctx context.Context, place string, coord geo.Coordinate) error
}

// CachingGeocoder consults a CoordinateCache before delegating to the next
// Geocoder. Only successful lookups are cached.
type CachingGeocoder struct {
	next   geo.Geocoder
	cache  CoordinateCache
	logger *zap.Logger
}

var _ geo.Geocoder = (*CachingGeocoder)(nil)

// NewCachingGeocoder wraps next with cache.
func NewCachingGeocoder(next geo.Geocoder, cache CoordinateCache, logger *zap.Logger) *CachingGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingGeocoder{next: next, cache: cache, logger: logger}
}

// Resolve implements geo.Geocoder.
func (g *CachingGeocoder) Resolve(ctx context.Context, place string) (geo.Coordinate, error) {
	key := cacheKey(place)
	coord, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		// a broken cache degrades to direct lookups
		g.logger.Warn("geocode cache read failed", zap.String("place", place), zap.Error(err))
	} else if ok {
		observability.RecordGeocode("cache", "ok")
		return coord, nil
	}

	coord, err = g.next.Resolve(ctx, place)
	if err != nil {
		return geo.Coordinate{}, err
	}
	if err := g.cache.Set(ctx, key, coord); err != nil {
		g.logger.Warn("geocode cache write failed", zap.String("place", place), zap.Error(err))
	}
	return coord, nil
}

func cacheKey(place string) string {
	return strings.ToLower(strings.TrimSpace(place))
}

// MemoryCache is an in-process CoordinateCache with expiry.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache constructs a MemoryCache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, 2*ttl)}
}

// Get returns the cached coordinate for place, if present.
func (c *MemoryCache) Get(_ context.Context, place string) (geo.Coordinate, bool, error) {
	v, ok := c.items.Get(place)
	if !ok {
		return geo.Coordinate{}, false, nil
	}
	coord, ok := v.(geo.Coordinate)
	return coord, ok, nil
}

// Set stores coord for place until the cache TTL elapses.
func (c *MemoryCache) Set(_ context.Context, place string, coord geo.Coordinate) error {
	c.items.SetDefault(place, coord)
	return nil
}

// RedisCache is a CoordinateCache shared between service replicas.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache. Keys are namespaced by prefix.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "geocode:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get reads place from Redis; a missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, place string) (geo.Coordinate, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+place).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Coordinate{}, false, nil
	}
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	var coord geo.Coordinate
	if err := json.Unmarshal(raw, &coord); err != nil {
		return geo.Coordinate{}, false, err
	}
	return coord, true, nil
}

// Set writes coord for place to Redis with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, place string, coord geo.Coordinate) error {
	raw, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+place, raw, c.ttl).Err()
}
