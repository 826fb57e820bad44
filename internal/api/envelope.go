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

// Package api is the HTTP surface of the bridge: CRM, Outlook, ERP,
// attachment and session endpoints behind a gorilla/mux router. Every
// response uses the success or error envelope defined here.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bcem/crmbridge/internal/auth"
	"github.com/bcem/crmbridge/internal/result"
)

const msgOK = "Operation successful"

// Error codes not covered by result kinds.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeRateLimited  = "rate_limited"
	codeUnavailable  = "service_unavailable"
)

// Response is the success envelope.
type Response[T any] struct {
	Data      T         `json:"data"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorBody is the error envelope.
type ErrorBody struct {
	Message   string    `json:"message"`
	Errors    []string  `json:"errors"`
	ErrorCode string    `json:"errorCode"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeOK[T any](w http.ResponseWriter, status int, data T, message string) {
	writeJSON(w, status, Response[T]{
		Data:      data,
		Success:   true,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, errs []string, detail string) {
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, status, ErrorBody{
		Message:   message,
		Errors:    errs,
		ErrorCode: code,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
		RequestID: auth.RequestID(r.Context()),
	})
}

// writeResult renders an operation result with the status it carries.
func writeResult[T any](w http.ResponseWriter, r *http.Request, res result.Result[T]) {
	if res.Success {
		writeOK(w, res.StatusCode, res.Data, msgOK)
		return
	}
	status := res.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeError(w, r, status, string(res.Kind), res.Error, res.ValidationErrors, res.Detail)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, codeBadRequest, message, []string{message}, "")
}

// unauthorized is the auth middleware's DenyFunc.
func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusUnauthorized, codeUnauthorized, message, nil, "")
}

// decodeBody reads a JSON request body into v, reporting failures as 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case errors.Is(err, io.EOF):
		badRequest(w, r, "Request cannot be null")
		return false
	case err != nil:
		badRequest(w, r, "Invalid request body")
		return false
	}
	return true
}
