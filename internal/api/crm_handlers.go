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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bcem/crmbridge/internal/models"
)

func (s *Server) handleFindByEmail(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.FindByEmail(r.Context(), r.URL.Query().Get("email")))
}

func (s *Server) handleFindByContent(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.FindByContent(r.Context(), r.URL.Query().Get("content")))
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.CreateContact(r.Context(), req))
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.CreateLead(r.Context(), req))
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req models.CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.LogActivity(r.Context(), req))
}

func (s *Server) handleActivityTimeline(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.ActivityTimeline(r.Context(), mux.Vars(r)["entityId"]))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.Search(r.Context(), req))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.GetRecord(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.GetContact(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.UpdateContact(r.Context(), mux.Vars(r)["id"], req))
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.crm.GetLead(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, r, s.crm.UpdateLead(r.Context(), mux.Vars(r)["id"], req))
}

// handleConvertLead accepts an empty body, which converts into a new contact.
func (s *Server) handleConvertLead(w http.ResponseWriter, r *http.Request) {
	var req models.ConvertLeadRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	writeResult(w, r, s.crm.ConvertLead(r.Context(), mux.Vars(r)["id"], req))
}
