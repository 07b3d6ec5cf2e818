package geocoding

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"example.com/activities/internal/config"
	"example.com/activities/internal/geo"
)

const redisKeyPrefix = "activities:geocode:"

// FromConfig builds the Mapbox geocoder, wrapped in the configured
// cross-call cache. The returned close func releases cache connections.
func FromConfig(cfg config.Config, logger *zap.Logger) (geo.Geocoder, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	client := NewMapboxClient(MapboxConfig{
		BaseURL:       cfg.MapboxBaseURL,
		AccessToken:   cfg.MapboxAPIKey,
		RatePerSecond: cfg.GeocodeRatePerSec,
	})
	if cfg.MapboxAPIKey == "" {
		logger.Warn("MAPBOX_API_KEY is empty; geocoding requests will be rejected upstream")
	}

	switch cfg.GeocodeCache {
	case config.CacheMemory:
		logger.Info("geocode cache enabled", zap.String("backend", "memory"), zap.Duration("ttl", cfg.GeocodeCacheTTL))
		return NewCachingGeocoder(client, NewMemoryCache(cfg.GeocodeCacheTTL), logger), noop, nil
	case config.CacheRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		logger.Info("geocode cache enabled", zap.String("backend", "redis"), zap.Duration("ttl", cfg.GeocodeCacheTTL))
		return NewCachingGeocoder(client, NewRedisCache(rdb, redisKeyPrefix, cfg.GeocodeCacheTTL), logger), rdb.Close, nil
	}
	return client, noop, nil
}
