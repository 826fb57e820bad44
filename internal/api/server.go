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

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bcem/crmbridge/internal/attachment"
	"github.com/bcem/crmbridge/internal/auth"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/sagex3"
)

// Gateway is the CRM record store gateway; crm.Service satisfies it.
type Gateway interface {
	FindByEmail(ctx context.Context, email string) result.Result[*models.CrmRecord]
	FindByContent(ctx context.Context, content string) result.Result[*models.CrmRecord]
	CreateContact(ctx context.Context, req models.CreateContactRequest) result.Result[*models.CrmRecord]
	CreateLead(ctx context.Context, req models.CreateLeadRequest) result.Result[*models.CrmRecord]
	LogActivity(ctx context.Context, req models.CreateActivityRequest) result.Result[*models.Activity]
	ActivityTimeline(ctx context.Context, entityID string) result.Result[[]models.Activity]
	Search(ctx context.Context, req models.SearchRequest) result.Result[*models.SearchResponse]
	GetRecord(ctx context.Context, id string) result.Result[*models.CrmRecord]
	GetContact(ctx context.Context, id string) result.Result[*models.Contact]
	GetLead(ctx context.Context, id string) result.Result[*models.Lead]
	UpdateContact(ctx context.Context, id string, req models.UpdateContactRequest) result.Result[*models.Contact]
	UpdateLead(ctx context.Context, id string, req models.UpdateLeadRequest) result.Result[*models.Lead]
	ConvertLead(ctx context.Context, id string, req models.ConvertLeadRequest) result.Result[*models.CrmRecord]
}

// Matcher ranks candidate records for an email.
type Matcher interface {
	Find(ctx context.Context, email models.EmailContext) []models.MatchResult
}

// Linker links an email to a record.
type Linker interface {
	Link(ctx context.Context, req models.LinkRequest) models.LinkResult
}

// ERP is the Sage X3 surface exposed over HTTP.
type ERP interface {
	CreateLead(ctx context.Context, req models.CreateLeadRequest) result.Result[*models.Lead]
	CreateContact(ctx context.Context, req models.CreateContactRequest) result.Result[*models.Contact]
	CreateOpportunity(ctx context.Context, req models.CreateOpportunityRequest) result.Result[*models.Opportunity]
	Search(ctx context.Context, query string) result.Result[[]models.EntityReference]
	CreateActivity(ctx context.Context, a sagex3.YActivity) result.Result[*sagex3.ActivityResponse]
}

// Relay uploads attachments.
type Relay interface {
	Upload(ctx context.Context, activityID, fileName string, content []byte) result.Result[*attachment.Upload]
}

// MailboxSource fetches email snapshots server side.
type MailboxSource interface {
	EmailContext(ctx context.Context, mailbox, itemID string) (models.EmailContext, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

const defaultMaxUpload = 25 << 20

// Config holds the server's dependencies. Mailbox may be nil when Graph
// is not configured.
type Config struct {
	CRM       Gateway
	Matcher   Matcher
	Linker    Linker
	ERP       ERP
	Relay     Relay
	Mailbox   MailboxSource
	Validator *auth.Validator
	Limiter   *RateLimiter
	Health    map[string]HealthCheck

	// MaxUploadBytes caps attachment request bodies.
	MaxUploadBytes int64
}

// Server routes API requests.
type Server struct {
	crm       Gateway
	matcher   Matcher
	linker    Linker
	erp       ERP
	relay     Relay
	mailbox   MailboxSource
	validator *auth.Validator
	limiter   *RateLimiter
	health    map[string]HealthCheck
	maxUpload int64
}

// NewServer creates the API server.
func NewServer(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Server{
		crm:       cfg.CRM,
		matcher:   cfg.Matcher,
		linker:    cfg.Linker,
		erp:       cfg.ERP,
		relay:     cfg.Relay,
		mailbox:   cfg.Mailbox,
		validator: cfg.Validator,
		limiter:   cfg.Limiter,
		health:    cfg.Health,
		maxUpload: maxUpload,
	}
}

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(auth.RequestIDMiddleware, logRequests, s.limiter.Middleware, auth.Middleware(s.validator, unauthorized))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	c := r.PathPrefix("/api/crm").Subrouter()
	c.HandleFunc("/find-by-email", s.handleFindByEmail).Methods(http.MethodGet)
	c.HandleFunc("/find-by-content", s.handleFindByContent).Methods(http.MethodGet)
	c.HandleFunc("/create-contact", s.handleCreateContact).Methods(http.MethodPost)
	c.HandleFunc("/create-lead", s.handleCreateLead).Methods(http.MethodPost)
	c.HandleFunc("/log-activity", s.handleLogActivity).Methods(http.MethodPost)
	c.HandleFunc("/activity-timeline/{entityId}", s.handleActivityTimeline).Methods(http.MethodGet)
	c.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	c.HandleFunc("/record/{id}", s.handleGetRecord).Methods(http.MethodGet)
	c.HandleFunc("/contact/{id}", s.handleGetContact).Methods(http.MethodGet)
	c.HandleFunc("/contact/{id}", s.handleUpdateContact).Methods(http.MethodPut)
	c.HandleFunc("/lead/{id}", s.handleGetLead).Methods(http.MethodGet)
	c.HandleFunc("/lead/{id}", s.handleUpdateLead).Methods(http.MethodPut)
	c.HandleFunc("/convert-lead/{id}", s.handleConvertLead).Methods(http.MethodPost)

	o := r.PathPrefix("/api/outlook").Subrouter()
	o.HandleFunc("/auto-link", s.handleAutoLink).Methods(http.MethodPost)
	o.HandleFunc("/matches", s.handleMatches).Methods(http.MethodPost)
	o.HandleFunc("/link", s.handleLink).Methods(http.MethodPost)
	o.HandleFunc("/context", s.handleContext).Methods(http.MethodGet)

	x := r.PathPrefix("/api/sagex3").Subrouter()
	x.Use(s.requireERP)
	x.HandleFunc("/create-lead", s.handleERPCreateLead).Methods(http.MethodPost)
	x.HandleFunc("/create-contact", s.handleERPCreateContact).Methods(http.MethodPost)
	x.HandleFunc("/create-opportunity", s.handleERPCreateOpportunity).Methods(http.MethodPost)
	x.HandleFunc("/activity", s.handleERPActivity).Methods(http.MethodPost)
	x.HandleFunc("/search", s.handleERPSearch).Methods(http.MethodGet)

	r.Handle("/api/attachments/upload", s.requireERP(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)

	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/is-authenticated", s.handleIsAuthenticated).Methods(http.MethodGet)
	a.HandleFunc("/user-profile", s.handleUserProfile).Methods(http.MethodGet)
	a.HandleFunc("/auth-state", s.handleAuthState).Methods(http.MethodGet)

	return r
}

// requireERP answers 503 when no ERP is wired.
func (s *Server) requireERP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.erp == nil || s.relay == nil {
			writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Sage X3 is not configured", nil, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			slog.Warn("health check failed", "dependency", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeConfig holds listener settings.
type ServeConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Serve binds the port immediately, signals readiness on the first channel
// and starts accepting connections. When ctx is cancelled the server drains
// in-flight requests, then closes the second channel.
func Serve(ctx context.Context, cfg ServeConfig, handler http.Handler) (<-chan struct{}, <-chan struct{}, error) {
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind api port %d: %w", cfg.Port, err)
	}

	ready := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("api server shutting down")
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("api server shutdown incomplete", "error", err)
			server.Close()
		}
	}()

	go func() {
		slog.Info("api server listening", "port", cfg.Port)
		close(ready)
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "error", err)
		}
	}()

	return ready, stopped, nil
}
