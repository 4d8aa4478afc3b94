package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	v, err := Load("")
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(v))

	cfg, err := Unmarshal(v)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, filepath.Clean("data/studyhub.db"), cfg.Database.DSN)
	assert.Equal(t, filepath.Clean("data/uploads"), cfg.Paths.Uploads)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 20, cfg.Search.MaxLimit)
	assert.Equal(t, 5*time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Equal(t, 30000, cfg.AI.MaxChars)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.AI.BreakerRecovery)
	assert.False(t, cfg.AI.Enabled)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, "X-Request-ID", cfg.CORS.ExposedHeaders)
	assert.Empty(t, cfg.Log.AccessFile)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	file := filepath.Join(dir, "studyhub.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9000
search:
  default_limit: 3
ai:
  enabled: true
  api_key: from-file
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STUDYHUB_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("STUDYHUB_SERVER_PORT", "9100")
	t.Cleanup(func() { os.Unsetenv("STUDYHUB_LOG_LEVEL") })

	v, err := Load(file)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(v))

	assert.Equal(t, 9100, v.GetInt("server.port"))
	assert.Equal(t, 3, v.GetInt("search.default_limit"))
	assert.Equal(t, "from-file", v.GetString("ai.api_key"))
	assert.Equal(t, "debug", v.GetString("log.level"))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"unknown database", map[string]interface{}{"database.type": "oracle"}},
		{"postgres without dsn", map[string]interface{}{"database.type": "postgres", "database.dsn": ""}},
		{"bad port", map[string]interface{}{"server.port": 70000}},
		{"default above max", map[string]interface{}{"search.default_limit": 50}},
		{"ai without key", map[string]interface{}{"ai.enabled": true}},
		{"pdf key without customer", map[string]interface{}{"pdf.license_key": "-----BEGIN UNIDOC LICENSE KEY-----"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Load("")
			require.NoError(t, err)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			assert.Error(t, ValidateConfig(v))
		})
	}
}
