package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chtemp moves the test into a fresh directory so Load only sees the config
// files the test wrote.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Len(t, cfg.Upstream.ChannelIDs, 4)
	assert.Equal(t, 24*time.Hour, cfg.TTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "5432", cfg.Store.Port)
	assert.Len(t, cfg.AuthorizedEmails, 2)
	assert.False(t, cfg.HasStore())
}

func TestLoadTOMLFile(t *testing.T) {
	dir := chtemp(t)
	writeFile(t, dir, "config.toml", `
api_port = 9090
authorized_emails = ["dev@example.com"]

[upstream]
api_key = "real-key"
channel_ids = ["UC-one", "UC-two"]

[store]
host = "db.internal"
user = "geotube"
password = "secret"
database = "videos"

[cache]
ttl_hours = 6
retention_days = 30
`)

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, "real-key", cfg.Upstream.APIKey)
	assert.Equal(t, []string{"UC-one", "UC-two"}, cfg.Upstream.ChannelIDs)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, []string{"dev@example.com"}, cfg.AuthorizedEmails)
	assert.Equal(t, 6*time.Hour, cfg.TTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.True(t, cfg.HasStore())
	assert.Equal(t, "5432", cfg.Store.Port)
}

func TestLoadFirstFileWins(t *testing.T) {
	dir := chtemp(t)
	writeFile(t, dir, "config.toml", "[upstream]\napi_key = \"from-main\"\n")
	writeFile(t, dir, "config.ci.toml", "[upstream]\napi_key = \"from-ci\"\n")
	writeFile(t, dir, "config.template.toml", "[upstream]\napi_key = \"YOUR_API_KEY_HERE\"\n")

	cfg, err := Load(testLogger())
	require.NoError(t, err)
	assert.Equal(t, "from-main", cfg.Upstream.APIKey)
}

func TestLoadFallsBackToLaterFile(t *testing.T) {
	dir := chtemp(t)
	writeFile(t, dir, "config.ci.toml", "[upstream]\napi_key = \"from-ci\"\n")
	writeFile(t, dir, "config.template.toml", "[upstream]\napi_key = \"YOUR_API_KEY_HERE\"\n")

	cfg, err := Load(testLogger())
	require.NoError(t, err)
	assert.Equal(t, "from-ci", cfg.Upstream.APIKey)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chtemp(t)
	writeFile(t, dir, "config.toml", "[upstream]\napi_key = \"from-file\"\n")
	t.Setenv("GEOTUBE_API_KEY", "from-env")
	t.Setenv("GEOTUBE_CHANNEL_IDS", "UC-env-1, UC-env-2 ,")
	t.Setenv("API_PORT", "7777")
	t.Setenv("POSTGRES_HOST", "env-db")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Upstream.APIKey)
	assert.Equal(t, []string{"UC-env-1", "UC-env-2"}, cfg.Upstream.ChannelIDs)
	assert.Equal(t, 7777, cfg.APIPort)
	assert.Equal(t, "env-db", cfg.Store.Host)
	assert.True(t, cfg.HasStore())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chtemp(t)
	writeFile(t, dir, "config.toml", "this is not toml ===")

	_, err := Load(testLogger())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		apiKey string
		valid  bool
	}{
		{name: "realKey", apiKey: "AIza-something", valid: true},
		{name: "empty", apiKey: "", valid: false},
		{name: "whitespace", apiKey: "   ", valid: false},
		{name: "placeholder", apiKey: "YOUR_API_KEY_HERE", valid: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Upstream: Upstream{APIKey: tc.apiKey}}
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMissingAPIKey)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b , "))
	assert.Empty(t, splitList(""))
	assert.Empty(t, splitList(" , ,"))
}
