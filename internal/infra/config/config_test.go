package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("STORAGE_DRIVER", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StorageDriver)
	require.Equal(t, 30*time.Minute, cfg.PendingTimeout)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.Equal(t, "sandbox", cfg.GatewayMode)
}

func TestLoadRequiresDriverSettings(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	require.ErrorContains(t, err, "MONGO_URI")

	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = Load()
	require.ErrorContains(t, err, "unknown STORAGE_DRIVER")
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/motorent")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PENDING_TIMEOUT", "45m")
	t.Setenv("RETRY_BACKOFF", "2s, ,10s")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.StorageDriver)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 45*time.Minute, cfg.PendingTimeout)
	require.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, cfg.RetryBackoff)
}

func TestLoadTreatsBlankSettingsAsDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("STORAGE_DRIVER", "  ")
	t.Setenv("GATEWAY_MODE", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StorageDriver)
	require.Equal(t, "sandbox", cfg.GatewayMode)
}
