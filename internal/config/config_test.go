package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, CacheNone, cfg.GeocodeCache)
	assert.Equal(t, "Barcelona", cfg.ReferenceCity)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, time.Minute, cfg.DLQBaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.GeocodeCacheTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("REFERENCE_CITY", "Madrid")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("GEOCODE_CACHE", "redis")
	t.Setenv("GEOCODE_CACHE_TTL", "90m")
	t.Setenv("OUTBOX_BATCH_SIZE", "7")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "Madrid", cfg.ReferenceCity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, CacheRedis, cfg.GeocodeCache)
	assert.Equal(t, 90*time.Minute, cfg.GeocodeCacheTTL)
	assert.Equal(t, 7, cfg.OutboxBatchSize)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REFERENCE_CITY=Lisbon\nSTORE_DRIVER=memory\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", cfg.ReferenceCity)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, `unknown STORE_DRIVER "sqlite"`)
}

func TestValidateRejectsBlankReferenceCity(t *testing.T) {
	cfg := Config{StoreDriver: StoreMemory, GeocodeCache: CacheNone, GeocodeRatePerSec: 1, ReferenceCity: "  "}
	assert.Error(t, cfg.Validate())
}
