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

// CRM bridge API server.
//
// Entry point for the add-in backend. It:
//  1. Loads configuration from config.yaml, .env and the environment
//  2. Opens the CRM store and the auxiliary cache (Redis when configured)
//  3. Builds the match engine, link workflow and optional Graph/Sage X3 clients
//  4. Serves the REST API until SIGTERM/SIGINT, then drains in-flight requests
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bcem/crmbridge/internal/api"
	"github.com/bcem/crmbridge/internal/attachment"
	"github.com/bcem/crmbridge/internal/auth"
	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/config"
	"github.com/bcem/crmbridge/internal/crm"
	"github.com/bcem/crmbridge/internal/link"
	"github.com/bcem/crmbridge/internal/mailbox"
	"github.com/bcem/crmbridge/internal/match"
	"github.com/bcem/crmbridge/internal/sagex3"
	"github.com/bcem/crmbridge/internal/store"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(setupLogger(cfg.Log.Level, cfg.Log.Format))
	slog.Info("starting crm bridge",
		"store", cfg.Store.Driver,
		"graph", cfg.Graph.Enabled(),
		"sagex3", cfg.SageX3.Enabled(),
		"auth", cfg.Auth.Secret != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- CRM Store ---
	backend, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	health := map[string]api.HealthCheck{"store": backend.Ping}

	// --- Auxiliary Cache ---
	var aux cache.Cache = cache.NewMemory()
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		rc := cache.NewRedis(rdb)
		if err := rc.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis")
		aux = rc
		health["redis"] = rc.Ping
	}

	// --- Domain Services ---
	svc := crm.NewService(crm.Config{Store: backend, Timeout: cfg.Store.Timeout})

	apiCfg := api.Config{
		CRM:            svc,
		Matcher:        match.NewEngine(svc),
		Linker:         link.NewWorkflow(svc),
		Validator:      auth.NewValidator(auth.ValidatorConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience}),
		Limiter:        api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		Health:         health,
		MaxUploadBytes: cfg.Attachments.MaxUploadBytes,
	}
	if apiCfg.Validator == nil {
		slog.Warn("JWT_SECRET not set, serving every request as the anonymous development user")
	}

	// --- Microsoft Graph (optional) ---
	if cfg.Graph.Enabled() {
		apiCfg.Mailbox = mailbox.NewGraphProvider(mailbox.GraphConfig{
			HTTPClient: graphClient(ctx, cfg.Graph),
			BaseURL:    cfg.Graph.BaseURL,
			Cache:      aux,
			CacheTTL:   cfg.Graph.CacheTTL,
		})
		slog.Info("graph mailbox access enabled", "tenant", cfg.Graph.TenantID)
	}

	// --- Sage X3 (optional) ---
	if cfg.SageX3.Enabled() {
		erp := sagex3.NewClient(sagex3.Config{
			BaseURL:        cfg.SageX3.BaseURL,
			Username:       cfg.SageX3.Username,
			Password:       cfg.SageX3.Password,
			Timeout:        cfg.SageX3.Timeout,
			Cache:          aux,
			SearchCacheTTL: cfg.SageX3.SearchCacheTTL,
		})
		apiCfg.ERP = erp
		apiCfg.Relay = attachment.NewRelay(attachment.Config{
			ERP:        erp,
			ArchiveDir: cfg.Attachments.ArchiveDir,
			MaxSize:    cfg.Attachments.MaxUploadBytes,
		})
		slog.Info("sage x3 integration enabled", "base_url", cfg.SageX3.BaseURL)
	}

	// --- HTTP Server ---
	handler := api.NewServer(apiCfg).Handler()
	ready, stopped, err := api.Serve(ctx, api.ServeConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler)
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready

	<-ctx.Done()
	slog.Info("received shutdown signal")
	<-stopped

	slog.Info("crm bridge stopped")
}

// graphClient returns an HTTP client that authenticates with app-only
// client credentials against the tenant's token endpoint.
func graphClient(ctx context.Context, g config.GraphConfig) *http.Client {
	creds := &clientcredentials.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", g.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	client := creds.Client(ctx)
	client.Timeout = 30 * time.Second
	return client
}

func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if format == "text" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
