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

	"github.com/bcem/crmbridge/internal/auth"
)

func (s *Server) handleIsAuthenticated(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	writeOK(w, http.StatusOK, p != nil && p.Authenticated, msgOK)
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p == nil {
		unauthorized(w, r, "Not signed in")
		return
	}
	writeOK(w, http.StatusOK, p.Profile(), msgOK)
}

func (s *Server) handleAuthState(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p == nil {
		writeOK(w, http.StatusOK, auth.State{Roles: []string{}}, msgOK)
		return
	}
	writeOK(w, http.StatusOK, p.State(), msgOK)
}
