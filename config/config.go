// Package config loads the service configuration from a layered set of
// sources: an optional .env file, the first TOML file found from an ordered
// candidate list, environment variable overrides, and hardcoded fallback
// defaults in that order of increasing precedence for the env layer and
// decreasing for the files.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const apiKeyPlaceholder = "YOUR_API_KEY_HERE"

// ErrMissingAPIKey is returned by Validate when no usable upstream API key
// was found in any source. The pipeline requires one as a precondition.
var ErrMissingAPIKey = errors.New("upstream api key is missing")

// ConfigFiles are tried in order; the first one that exists wins.
var ConfigFiles = []string{
	"config.toml",
	"config.ci.toml",
	"config.template.toml",
}

var defaultChannelIDs = []string{
	"UCynoa1DjwnvHAowA_jiMEAQ",
	"UCK0KOjX3beyB9nzonls0cuw",
	"UCACkIrvrGAQ7kuc0hMVwvmA",
	"UCtWRAKKvOEA0CXOue9BG8ZA",
}

var defaultAuthorizedEmails = []string{
	"fallback1@example.com",
	"fallback2@example.com",
}

type Upstream struct {
	APIKey     string   `toml:"api_key"`
	ChannelIDs []string `toml:"channel_ids"`
	AppPackage string   `toml:"app_package"`
	AppCert    string   `toml:"app_cert"`
}

type Geocoder struct {
	Endpoint  string `toml:"endpoint"`
	UserAgent string `toml:"user_agent"`
}

type Store struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type Cache struct {
	TTLHours      int `toml:"ttl_hours"`
	RetentionDays int `toml:"retention_days"`
}

type Config struct {
	Upstream         Upstream `toml:"upstream"`
	Geocoder         Geocoder `toml:"geocoder"`
	Store            Store    `toml:"store"`
	Cache            Cache    `toml:"cache"`
	APIPort          int      `toml:"api_port"`
	AuthorizedEmails []string `toml:"authorized_emails"`
}

func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Cache.RetentionDays) * 24 * time.Hour
}

// HasStore reports whether a persistent store was configured. Without one
// the service falls back to the in-memory store.
func (c *Config) HasStore() bool {
	return c.Store.Host != ""
}

func (c *Config) Validate() error {
	key := strings.TrimSpace(c.Upstream.APIKey)
	if key == "" || key == apiKeyPlaceholder {
		return ErrMissingAPIKey
	}
	return nil
}

// Load builds the configuration from all layers. A missing config file is
// not an error; a file that exists but fails to decode is.
func Load(logger *slog.Logger) (*Config, error) {
	// .env is a convenience for local development only.
	_ = godotenv.Load()

	cfg := &Config{}
	for _, name := range ConfigFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if _, err := toml.DecodeFile(name, cfg); err != nil {
			return nil, err
		}
		logger.Info("loaded config file", slog.String("file", name))
		break
	}

	cfg.Upstream.APIKey = getParam("GEOTUBE_API_KEY", cfg.Upstream.APIKey)
	cfg.Upstream.AppPackage = getParam("GEOTUBE_APP_PACKAGE", cfg.Upstream.AppPackage)
	cfg.Upstream.AppCert = getParam("GEOTUBE_APP_CERT", cfg.Upstream.AppCert)
	if ids := getParam("GEOTUBE_CHANNEL_IDS", ""); ids != "" {
		cfg.Upstream.ChannelIDs = splitList(ids)
	}
	cfg.Geocoder.Endpoint = getParam("GEOTUBE_GEOCODER_ENDPOINT", cfg.Geocoder.Endpoint)
	cfg.Geocoder.UserAgent = getParam("GEOTUBE_GEOCODER_USER_AGENT", cfg.Geocoder.UserAgent)
	cfg.Store.Host = getParam("POSTGRES_HOST", cfg.Store.Host)
	cfg.Store.Port = getParam("POSTGRES_PORT", cfg.Store.Port)
	cfg.Store.User = getParam("POSTGRES_USER", cfg.Store.User)
	cfg.Store.Password = getParam("POSTGRES_PASSWORD", cfg.Store.Password)
	cfg.Store.Database = getParam("POSTGRES_DB", cfg.Store.Database)
	if port := getParam("API_PORT", ""); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.APIPort = p
		}
	}
	if emails := getParam("GEOTUBE_AUTHORIZED_EMAILS", ""); emails != "" {
		cfg.AuthorizedEmails = splitList(emails)
	}

	applyDefaults(cfg, logger)

	return cfg, nil
}

func applyDefaults(cfg *Config, logger *slog.Logger) {
	if len(cfg.Upstream.ChannelIDs) == 0 {
		cfg.Upstream.ChannelIDs = append([]string{}, defaultChannelIDs...)
	}
	if len(cfg.AuthorizedEmails) == 0 {
		logger.Warn("no authorized emails configured, using fallback list")
		cfg.AuthorizedEmails = append([]string{}, defaultAuthorizedEmails...)
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Cache.RetentionDays == 0 {
		cfg.Cache.RetentionDays = 7
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.Store.Port == "" {
		cfg.Store.Port = "5432"
	}
}

func getParam(param, def string) string {
	if val, ok := os.LookupEnv(param); ok {
		return val
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
