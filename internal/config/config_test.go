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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Graph.BaseURL != "https://graph.microsoft.com/v1.0" {
		t.Errorf("Graph.BaseURL = %q", cfg.Graph.BaseURL)
	}
	if cfg.Graph.Enabled() || cfg.SageX3.Enabled() {
		t.Error("integrations should be disabled without credentials")
	}
	if cfg.Backfill.Since != 7*24*time.Hour {
		t.Errorf("Backfill.Since = %v, want 168h", cfg.Backfill.Since)
	}
	if cfg.Attachments.MaxUploadBytes != 25<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Attachments.MaxUploadBytes)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v, want json/info", cfg.Log)
	}
}

func TestLoad_FileWithExpansion(t *testing.T) {
	t.Setenv("TEST_SAGE_PASSWORD", "s3cret")
	writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
store:
  driver: SQLite
  dsn: /tmp/crm.db
sagex3:
  base_url: https://x3.example.com
  username: bridge
  password: ${TEST_SAGE_PASSWORD}
backfill:
  threshold: 0.5
  include:
    - sales@corp.com
    - support@corp.com
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.SageX3.Password != "s3cret" {
		t.Errorf("SageX3.Password = %q, want expanded value", cfg.SageX3.Password)
	}
	if cfg.Backfill.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Backfill.Threshold)
	}
	if len(cfg.Backfill.Include) != 2 {
		t.Errorf("Include = %v, want two mailboxes", cfg.Backfill.Include)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	writeConfig(t, `
server:
  port: 9090
redis:
  url: redis://file:6379/0
`)
	t.Setenv("PORT", "7070")
	t.Setenv("BACKFILL_EXCLUDE", "noreply@corp.com,alerts@corp.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want env value 7070", cfg.Server.Port)
	}
	if cfg.Redis.URL != "redis://file:6379/0" {
		t.Errorf("Redis.URL = %q, want file value", cfg.Redis.URL)
	}
	if len(cfg.Backfill.Exclude) != 2 || cfg.Backfill.Exclude[1] != "alerts@corp.com" {
		t.Errorf("Exclude = %v", cfg.Backfill.Exclude)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return merge(Config{}, Config{})
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"partial graph", func(c *Config) { c.Graph.TenantID = "tenant" }, true},
		{"full graph", func(c *Config) {
			c.Graph.TenantID, c.Graph.ClientID, c.Graph.ClientSecret = "t", "c", "s"
		}, false},
		{"relative erp url", func(c *Config) { c.SageX3.BaseURL = "x3.local/api" }, true},
		{"threshold above one", func(c *Config) { c.Backfill.Threshold = 1.5 }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFirstSet(t *testing.T) {
	if got := firstSet(0, 0, 3); got != 3 {
		t.Errorf("firstSet = %d, want 3", got)
	}
	if got := firstSet(2*time.Second, time.Second); got != 2*time.Second {
		t.Errorf("firstSet = %v, want 2s", got)
	}
}
