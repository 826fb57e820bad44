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

// CRM bridge auto-link backfill command.
//
// Standalone CLI that walks Microsoft 365 mailboxes over a lookback window
// and links every message whose sender matches a CRM record exactly onto
// that record's activity timeline. Already processed messages are remembered
// in the auxiliary cache so reruns only pick up new mail.
//
// Usage:
//
//	go run ./cmd/backfill/ [--mailboxes a@org.com,b@org.com] [--since 168h] [--threshold 1.0]
package main

import (
	"context"
	"flag"
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

	"github.com/bcem/crmbridge/internal/backfill"
	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/config"
	"github.com/bcem/crmbridge/internal/crm"
	"github.com/bcem/crmbridge/internal/dedup"
	"github.com/bcem/crmbridge/internal/link"
	"github.com/bcem/crmbridge/internal/mailbox"
	"github.com/bcem/crmbridge/internal/match"
	"github.com/bcem/crmbridge/internal/store"
)

func main() {
	// --- CLI Flags ---
	mailboxesFlag := flag.String("mailboxes", "", "Comma-separated mailboxes (optional; empty = configured include list or all licensed users)")
	sinceFlag := flag.String("since", "", "Lookback duration (e.g. 168h for 1 week); overrides backfill.since")
	thresholdFlag := flag.Float64("threshold", 0, "Minimum match score to link; overrides backfill.threshold")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(setupLogger(cfg.Log.Level, cfg.Log.Format))

	since := cfg.Backfill.Since
	if *sinceFlag != "" {
		since, err = time.ParseDuration(*sinceFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --since duration %q: %v\n", *sinceFlag, err)
			os.Exit(1)
		}
	}
	threshold := cfg.Backfill.Threshold
	if *thresholdFlag != 0 {
		if *thresholdFlag < 0 || *thresholdFlag > 1 {
			fmt.Fprintf(os.Stderr, "Error: --threshold must be in (0, 1], got %v\n", *thresholdFlag)
			os.Exit(1)
		}
		threshold = *thresholdFlag
	}

	if !cfg.Graph.Enabled() {
		slog.Error("graph credentials are required for backfill (GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- CRM Store ---
	backend, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

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
	} else {
		slog.Warn("REDIS_URL not set, processed messages are not remembered between runs")
	}

	// --- Graph ---
	httpClient := graphClient(ctx, cfg.Graph)
	provider := mailbox.NewGraphProvider(mailbox.GraphConfig{
		HTTPClient: httpClient,
		BaseURL:    cfg.Graph.BaseURL,
		Cache:      aux,
		CacheTTL:   cfg.Graph.CacheTTL,
		PageDelay:  cfg.Backfill.PageDelay,
	})

	// --- Resolve mailboxes ---
	include := cfg.Backfill.Include
	if *mailboxesFlag != "" {
		include = splitList(*mailboxesFlag)
	}
	dir := mailbox.NewDirectory(httpClient, cfg.Graph.BaseURL)
	found, err := dir.Mailboxes(ctx, include, cfg.Backfill.Exclude)
	if err != nil {
		slog.Error("mailbox discovery failed", "error", err)
		os.Exit(1)
	}
	var mailboxes []string
	for _, m := range found {
		// Use UPN or mail as the identifier
		id := m.UserPrincipalName
		if id == "" {
			id = m.Mail
		}
		mailboxes = append(mailboxes, id)
	}
	if len(mailboxes) == 0 {
		slog.Error("no mailboxes to backfill")
		os.Exit(1)
	}
	slog.Info("resolved mailboxes for backfill", "count", len(mailboxes), "mailboxes", mailboxes)

	// --- Run Backfill ---
	svc := crm.NewService(crm.Config{Store: backend, Timeout: cfg.Store.Timeout})
	runner := backfill.NewRunner(backfill.RunnerConfig{
		Lister:    provider,
		Provider:  provider,
		Matcher:   match.NewEngine(svc),
		Linker:    link.NewWorkflow(svc),
		Seen:      dedup.NewFilter(aux, 0),
		Threshold: threshold,
	})

	result, err := runner.Run(ctx, backfill.Request{Mailboxes: mailboxes, Since: since})
	if err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	for _, mr := range result.MailboxResults {
		slog.Info("mailbox result",
			"mailbox", mr.Mailbox,
			"linked", mr.Linked,
			"unmatched", mr.Unmatched,
			"skipped", mr.Skipped,
			"errors", mr.Errors,
		)
	}
	if result.TotalErrors > 0 {
		os.Exit(2)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func graphClient(ctx context.Context, g config.GraphConfig) *http.Client {
	creds := &clientcredentials.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", g.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return creds.Client(ctx)
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
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
