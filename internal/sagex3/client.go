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

// Package sagex3 is a JSON client for the Sage X3 SData CRM endpoints. It
// forwards leads, contacts, opportunities, email activities and their
// attachments to the ERP and searches ERP records.
//
// Non-2xx responses become upstream failures carrying the raw response
// body; transport failures and timeouts become internal errors.
package sagex3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultSearchCacheTTL = time.Minute
	maxResponseBytes      = 4 << 20
)

// Config holds ERP connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client

	// Cache, when set, holds search results for SearchCacheTTL.
	Cache          cache.Cache
	SearchCacheTTL time.Duration
}

// Client talks to a single Sage X3 instance.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	cache      cache.Cache
	searchTTL  time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

// NewClient creates an ERP client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := cfg.SearchCacheTTL
	if ttl <= 0 {
		ttl = defaultSearchCacheTTL
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		cache:      cfg.Cache,
		searchTTL:  ttl,
		validate:   validation.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// response is a completed ERP exchange, successful or not.
type response struct {
	status int
	raw    []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status <= 299
}

// do sends a JSON request. body may be nil.
func (c *Client) do(ctx context.Context, method, path string, body any) (response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	slog.Info("sage x3 response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)
	return response{status: resp.StatusCode, raw: raw}, nil
}

// failure converts a failed exchange into an envelope. err is the
// transport error, if any.
func failure[T any](op string, resp response, err error) result.Result[T] {
	if err != nil {
		slog.Error("sage x3 call failed", "op", op, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return result.Internal[T](op + " timed out")
		}
		return result.Internal[T](op + " failed")
	}
	slog.Error("sage x3 rejected request",
		"op", op,
		"status", resp.status,
		"body", string(resp.raw),
	)
	return result.Upstream[T](fmt.Sprintf("Sage X3 returned HTTP %d", resp.status), string(resp.raw))
}

// decodeObject parses raw as a JSON object. Anything else yields nil.
func decodeObject(raw []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	return obj
}

// firstString returns the first non-empty field among keys, in order.
// Numeric fields are rendered in their JSON form.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
