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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bcem/crmbridge/internal/auth"
	"github.com/bcem/crmbridge/internal/mailbox"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

// handleAutoLink reports the best record for a sender and free text.
func (s *Server) handleAutoLink(w http.ResponseWriter, r *http.Request) {
	var req models.AutoLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Sender) == "" && strings.TrimSpace(req.Content) == "" {
		badRequest(w, r, "Sender or Content must be provided")
		return
	}

	matches := s.matcher.Find(r.Context(), models.EmailContext{
		Sender: models.EmailAddress{Address: req.Sender},
		Body:   req.Content,
	})
	if len(matches) == 0 {
		writeOK(w, http.StatusOK, models.AutoLinkResponse{Message: "No matching record found"}, msgOK)
		return
	}

	best := matches[0]
	record := &models.CrmRecord{ID: best.ID, Type: models.EntityType(best.EntityType), Name: best.Name}
	if full := s.crm.GetRecord(r.Context(), best.ID); full.Success {
		record = full.Data
	}
	writeOK(w, http.StatusOK, models.AutoLinkResponse{
		MatchFound: true,
		Record:     record,
		Message:    "Found matching record",
	}, msgOK)
}

// handleMatches ranks records for an item snapshot posted by the add-in.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	email, err := mailbox.Decode(r.Body)
	if err != nil {
		if errors.Is(err, mailbox.ErrHost) {
			badRequest(w, r, err.Error())
			return
		}
		badRequest(w, r, "Invalid request body")
		return
	}
	writeOK(w, http.StatusOK, s.matcher.Find(r.Context(), email), msgOK)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req models.LinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if p := auth.FromContext(r.Context()); p != nil {
		req.UserID = p.UserID
	}

	res := s.linker.Link(r.Context(), req)
	if res.Success {
		writeOK(w, http.StatusOK, res, res.Message)
		return
	}

	status, code := http.StatusInternalServerError, string(result.KindInternal)
	if target := strings.TrimSpace(req.TargetRecordID); target == "" || !validation.IsID(target) {
		status, code = http.StatusBadRequest, string(result.KindValidation)
	}
	writeError(w, r, status, code, res.Message, []string{res.Message}, "")
}

// handleContext fetches an item snapshot from Graph.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if s.mailbox == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Mailbox access is not configured", nil, "")
		return
	}

	q := r.URL.Query()
	box, itemID := strings.TrimSpace(q.Get("mailbox")), strings.TrimSpace(q.Get("itemId"))
	var errs []string
	if box == "" {
		errs = append(errs, "Mailbox is required")
	}
	if itemID == "" {
		errs = append(errs, "Item ID is required")
	}
	if len(errs) > 0 {
		writeError(w, r, http.StatusBadRequest, string(result.KindValidation), "Validation failed", errs, "")
		return
	}

	email, err := s.mailbox.EmailContext(r.Context(), box, itemID)
	switch {
	case errors.Is(err, mailbox.ErrNotFound):
		writeError(w, r, http.StatusNotFound, string(result.KindNotFound), "Message not found", nil, "")
	case err != nil:
		slog.Error("mailbox fetch failed", "mailbox", box, "item_id", itemID, "error", err)
		writeError(w, r, http.StatusBadGateway, string(result.KindUpstream), "Failed to read message", nil, "")
	default:
		writeOK(w, http.StatusOK, email, msgOK)
	}
}
