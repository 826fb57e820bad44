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

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DenyFunc writes a 401 response.
type DenyFunc func(w http.ResponseWriter, r *http.Request, message string)

var publicPaths = map[string]bool{
	"/health": true,
}

// Middleware authenticates requests with validator. A nil validator
// admits every request as Anonymous.
func Middleware(validator *Validator, deny DenyFunc) func(http.Handler) http.Handler {
	if validator == nil {
		slog.Warn("authentication disabled, requests run as anonymous")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if validator == nil {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Anonymous())))
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				deny(w, r, "Missing Authorization header")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				deny(w, r, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			p, err := validator.Validate(strings.TrimSpace(token))
			if err != nil {
				slog.Debug("token rejected", "error", err, "request_id", RequestID(r.Context()))
				deny(w, r, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

type requestIDKey struct{}

// RequestIDMiddleware reuses the client's X-Request-ID or assigns one, and
// echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the request id, or "" outside the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
