// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from an optional config.yaml, a .env
// file and environment variables. Environment variables win over the file,
// and the file wins over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	// RateLimitRPS is per client IP; a negative value disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// StoreConfig selects the CRM persistence backend.
type StoreConfig struct {
	Driver  string        `yaml:"driver" env:"STORE_DRIVER"`
	DSN     string        `yaml:"dsn" env:"STORE_DSN"`
	Timeout time.Duration `yaml:"timeout" env:"STORE_TIMEOUT"`
}

// RedisConfig is optional; without a URL an in-process cache is used.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

// GraphConfig holds app-only Microsoft Graph credentials.
type GraphConfig struct {
	TenantID     string        `yaml:"tenant_id" env:"GRAPH_TENANT_ID"`
	ClientID     string        `yaml:"client_id" env:"GRAPH_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"GRAPH_CLIENT_SECRET"`
	BaseURL      string        `yaml:"base_url" env:"GRAPH_BASE_URL"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"GRAPH_CACHE_TTL"`
}

// Enabled reports whether Graph credentials are configured.
func (g GraphConfig) Enabled() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != ""
}

// SageX3Config points at the ERP.
type SageX3Config struct {
	BaseURL        string        `yaml:"base_url" env:"SAGEX3_BASE_URL"`
	Username       string        `yaml:"username" env:"SAGEX3_USERNAME"`
	Password       string        `yaml:"password" env:"SAGEX3_PASSWORD"`
	Timeout        time.Duration `yaml:"timeout" env:"SAGEX3_TIMEOUT"`
	SearchCacheTTL time.Duration `yaml:"search_cache_ttl" env:"SAGEX3_SEARCH_CACHE_TTL"`
}

// Enabled reports whether an ERP endpoint is configured.
func (s SageX3Config) Enabled() bool {
	return s.BaseURL != ""
}

// AuthConfig validates bearer tokens. An empty secret runs the service in
// anonymous development mode.
type AuthConfig struct {
	Secret   string `yaml:"secret" env:"JWT_SECRET"`
	Issuer   string `yaml:"issuer" env:"JWT_ISSUER"`
	Audience string `yaml:"audience" env:"JWT_AUDIENCE"`
}

// AttachmentConfig controls the upload relay.
type AttachmentConfig struct {
	ArchiveDir     string `yaml:"archive_dir" env:"ATTACHMENT_ARCHIVE_DIR"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"ATTACHMENT_MAX_UPLOAD_BYTES"`
}

// BackfillConfig scopes the auto-link backfill CLI.
type BackfillConfig struct {
	Since     time.Duration `yaml:"since" env:"BACKFILL_SINCE"`
	PageDelay time.Duration `yaml:"page_delay" env:"BACKFILL_PAGE_DELAY"`
	Threshold float64       `yaml:"threshold" env:"BACKFILL_THRESHOLD"`
	Include   []string      `yaml:"include" env:"BACKFILL_INCLUDE"`
	Exclude   []string      `yaml:"exclude" env:"BACKFILL_EXCLUDE"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// Config holds all configuration for the CRM bridge.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Store       StoreConfig      `yaml:"store"`
	Redis       RedisConfig      `yaml:"redis"`
	Graph       GraphConfig      `yaml:"graph"`
	SageX3      SageX3Config     `yaml:"sagex3"`
	Auth        AuthConfig       `yaml:"auth"`
	Attachments AttachmentConfig `yaml:"attachments"`
	Backfill    BackfillConfig   `yaml:"backfill"`
	Log         LogConfig        `yaml:"logging"`
}

// Load reads .env, then the YAML file at CONFIG_PATH (default config.yaml;
// a missing file is fine), then environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var file Config
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg := merge(fromEnv, file)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func merge(e, f Config) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            firstSet(e.Server.Port, f.Server.Port, 8080),
			ReadTimeout:     firstSet(e.Server.ReadTimeout, f.Server.ReadTimeout, 15*time.Second),
			WriteTimeout:    firstSet(e.Server.WriteTimeout, f.Server.WriteTimeout, 60*time.Second),
			ShutdownTimeout: firstSet(e.Server.ShutdownTimeout, f.Server.ShutdownTimeout, 10*time.Second),
			RateLimitRPS:    firstSet(e.Server.RateLimitRPS, f.Server.RateLimitRPS, 20),
			RateLimitBurst:  firstSet(e.Server.RateLimitBurst, f.Server.RateLimitBurst, 40),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(firstNonEmpty(e.Store.Driver, f.Store.Driver, "memory")),
			DSN:     firstNonEmpty(e.Store.DSN, f.Store.DSN),
			Timeout: firstSet(e.Store.Timeout, f.Store.Timeout, 5*time.Second),
		},
		Redis: RedisConfig{
			URL: firstNonEmpty(e.Redis.URL, f.Redis.URL),
		},
		Graph: GraphConfig{
			TenantID:     firstNonEmpty(e.Graph.TenantID, f.Graph.TenantID),
			ClientID:     firstNonEmpty(e.Graph.ClientID, f.Graph.ClientID),
			ClientSecret: firstNonEmpty(e.Graph.ClientSecret, f.Graph.ClientSecret),
			BaseURL:      firstNonEmpty(e.Graph.BaseURL, f.Graph.BaseURL, "https://graph.microsoft.com/v1.0"),
			CacheTTL:     firstSet(e.Graph.CacheTTL, f.Graph.CacheTTL, 15*time.Minute),
		},
		SageX3: SageX3Config{
			BaseURL:        firstNonEmpty(e.SageX3.BaseURL, f.SageX3.BaseURL),
			Username:       firstNonEmpty(e.SageX3.Username, f.SageX3.Username),
			Password:       firstNonEmpty(e.SageX3.Password, f.SageX3.Password),
			Timeout:        firstSet(e.SageX3.Timeout, f.SageX3.Timeout, 30*time.Second),
			SearchCacheTTL: firstSet(e.SageX3.SearchCacheTTL, f.SageX3.SearchCacheTTL, time.Minute),
		},
		Auth: AuthConfig{
			Secret:   firstNonEmpty(e.Auth.Secret, f.Auth.Secret),
			Issuer:   firstNonEmpty(e.Auth.Issuer, f.Auth.Issuer),
			Audience: firstNonEmpty(e.Auth.Audience, f.Auth.Audience),
		},
		Attachments: AttachmentConfig{
			ArchiveDir:     firstNonEmpty(e.Attachments.ArchiveDir, f.Attachments.ArchiveDir),
			MaxUploadBytes: firstSet(e.Attachments.MaxUploadBytes, f.Attachments.MaxUploadBytes, 25<<20),
		},
		Backfill: BackfillConfig{
			Since:     firstSet(e.Backfill.Since, f.Backfill.Since, 7*24*time.Hour),
			PageDelay: firstSet(e.Backfill.PageDelay, f.Backfill.PageDelay, 500*time.Millisecond),
			Threshold: firstSet(e.Backfill.Threshold, f.Backfill.Threshold, 1.0),
			Include:   firstList(e.Backfill.Include, f.Backfill.Include),
			Exclude:   firstList(e.Backfill.Exclude, f.Backfill.Exclude),
		},
		Log: LogConfig{
			Level:  strings.ToLower(firstNonEmpty(e.Log.Level, f.Log.Level, "info")),
			Format: strings.ToLower(firstNonEmpty(e.Log.Format, f.Log.Format, "json")),
		},
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	g := c.Graph
	if !g.Enabled() && (g.TenantID != "" || g.ClientID != "" || g.ClientSecret != "") {
		errs = append(errs, errors.New("graph requires tenant_id, client_id and client_secret together"))
	}

	if c.SageX3.Enabled() {
		u, err := url.Parse(c.SageX3.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("sagex3.base_url %q is not an absolute URL", c.SageX3.BaseURL))
		}
	}

	if c.Backfill.Threshold <= 0 || c.Backfill.Threshold > 1 {
		errs = append(errs, fmt.Errorf("backfill.threshold %v must be in (0, 1]", c.Backfill.Threshold))
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("logging.format %q must be json or text", c.Log.Format))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// firstSet returns the first non-zero value.
func firstSet[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

func firstList(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
