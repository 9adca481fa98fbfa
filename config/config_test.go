package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "data/dataset.json", cfg.DataPath)
	require.Equal(t, "models", cfg.ModelsDir)
	require.Equal(t, 10, cfg.Search.DefaultTopN)
	require.InDelta(t, 0.6, cfg.Search.SemanticWeight, 1e-9)
	require.False(t, cfg.Backup.Enabled())
	require.Equal(t, "json", cfg.Backup.Codec)
	require.False(t, cfg.Monitor.AutoRetrain)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_PATH", "/srv/listings.json")
	t.Setenv("SEARCH_DEFAULT_TOP_N", "25")
	t.Setenv("SEARCH_SEMANTIC_WEIGHT", "0.8")
	t.Setenv("BACKUP_PROVIDER", "s3")
	t.Setenv("BACKUP_BUCKET", "models-bucket")
	t.Setenv("BACKUP_COMPRESSION", "lz4")
	t.Setenv("BACKUP_CODEC", "JSON")
	t.Setenv("AUTO_RETRAIN", "true")
	t.Setenv("RETRAIN_CHECK_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/srv/listings.json", cfg.DataPath)
	require.Equal(t, 25, cfg.Search.DefaultTopN)
	require.InDelta(t, 0.8, cfg.Search.SemanticWeight, 1e-9)
	require.True(t, cfg.Backup.Enabled())
	require.Equal(t, "lz4", cfg.Backup.Compression)
	require.Equal(t, "json", cfg.Backup.Codec)
	require.True(t, cfg.Monitor.AutoRetrain)
	require.Equal(t, 30*time.Second, cfg.Monitor.CheckInterval)

	// MaxTopN is lifted to at least DefaultTopN.
	require.GreaterOrEqual(t, cfg.Search.MaxTopN, 25)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("BACKUP_PROVIDER", "s3")
	_, err := Load()
	require.ErrorContains(t, err, "BACKUP_BUCKET")

	t.Setenv("BACKUP_PROVIDER", "ftp")
	_, err = Load()
	require.ErrorContains(t, err, "BACKUP_PROVIDER")

	t.Setenv("BACKUP_PROVIDER", "none")
	t.Setenv("SEARCH_SEMANTIC_WEIGHT", "1.5")
	_, err = Load()
	require.ErrorContains(t, err, "SEMANTIC_WEIGHT")
}

func TestLoad_MinioRequiresEndpoint(t *testing.T) {
	t.Setenv("BACKUP_PROVIDER", "minio")
	t.Setenv("BACKUP_BUCKET", "models")

	_, err := Load()
	require.ErrorContains(t, err, "BACKUP_ENDPOINT")

	t.Setenv("BACKUP_ENDPOINT", "localhost:9000")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Backup.Enabled())
}
