package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://u:p@localhost:5432/swap?sslmode=disable")
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, int64(100), cfg.StartingPoints)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.UseMemoryStore())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_SOURCE", MemorySource)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TX_MAX_ATTEMPTS", "5")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.True(t, cfg.UseMemoryStore())
	assert.True(t, cfg.IsProduction())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_source: memory\njwt_secret: "+testSecret+"\nstarting_points: 250\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.StartingPoints)
	assert.True(t, cfg.UseMemoryStore())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing db source", func(t *testing.T) {
		t.Setenv("DB_SOURCE", "")
		t.Setenv("JWT_SECRET", testSecret)
		_, err := Load("")
		assert.ErrorContains(t, err, "DB_SOURCE")
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("DB_SOURCE", MemorySource)
		t.Setenv("JWT_SECRET", "short")
		_, err := Load("")
		assert.ErrorContains(t, err, "at least 32 bytes")
	})
}
