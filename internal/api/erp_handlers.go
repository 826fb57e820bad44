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
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bcem/crmbridge/internal/auth"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/sagex3"
)

func (s *Server) handleERPCreateLead(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.erp.CreateLead(r.Context(), req))
}

func (s *Server) handleERPCreateContact(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.erp.CreateContact(r.Context(), req))
}

func (s *Server) handleERPCreateOpportunity(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOpportunityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.erp.CreateOpportunity(r.Context(), req))
}

func (s *Server) handleERPSearch(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.erp.Search(r.Context(), r.URL.Query().Get("query")))
}

// erpActivityRequest pushes a linked email to the ERP.
type erpActivityRequest struct {
	EmailContext models.EmailContext `json:"emailContext"`
	ContactCode  string              `json:"contactCode"`
}

func (s *Server) handleERPActivity(w http.ResponseWriter, r *http.Request) {
	var req erpActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner := ""
	if p := auth.FromContext(r.Context()); p != nil {
		owner = p.UserName
	}
	writeResult(w, r, s.erp.CreateActivity(r.Context(), sagex3.ActivityFromEmail(req.EmailContext, req.ContactCode, owner)))
}

// uploadResponse is the attachment endpoint's own response shape, which
// the add-in reads directly.
type uploadResponse struct {
	Success          bool     `json:"success"`
	SageAttachmentID string   `json:"sageAttachmentId,omitempty"`
	Message          string   `json:"message"`
	Errors           []string `json:"errors,omitempty"`
	Detail           string   `json:"detail,omitempty"`
}

// handleUpload accepts multipart form fields activityId and fileName with
// the content either base64-encoded in fileContentBase64 or as a file part.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadResponse{Message: "Upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	activityID := r.FormValue("activityId")
	fileName := r.FormValue("fileName")

	content, name, err := uploadContent(r)
	if err != nil {
		slog.Warn("attachment upload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Invalid file content", Errors: []string{err.Error()}})
		return
	}
	if fileName == "" {
		fileName = name
	}

	res := s.relay.Upload(r.Context(), activityID, fileName, content)
	switch {
	case res.Success:
		writeJSON(w, http.StatusOK, uploadResponse{
			Success:          true,
			SageAttachmentID: res.Data.ExternalAttachmentID,
			Message:          "Attachment uploaded successfully",
		})
	case res.Kind == result.KindUpstream:
		writeJSON(w, http.StatusBadGateway, uploadResponse{
			Message: "Failed to upload to Sage",
			Detail:  res.Detail,
		})
	default:
		writeJSON(w, res.StatusCode, uploadResponse{Message: res.Error, Errors: res.ValidationErrors})
	}
}

var errBadBase64 = errors.New("file content is not valid base64")

// uploadContent returns the decoded content and the file part's name, if
// a file part was sent.
func uploadContent(r *http.Request) ([]byte, string, error) {
	if encoded := strings.TrimSpace(r.FormValue("fileContentBase64")); encoded != "" {
		// Data URLs from the add-in carry a "data:<type>;base64," prefix.
		if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
			encoded = encoded[i+len(";base64,"):]
		}
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", errBadBase64
		}
		return content, "", nil
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read file part: %w", err)
	}
	return content, header.Filename, nil
}
