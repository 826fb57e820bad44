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

// Package auth turns bearer tokens issued by the identity provider into a
// request Principal. Sign-in itself happens at the provider.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/bcem/crmbridge/internal/models"
)

// Application roles.
const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

// Principal is the caller of a request.
type Principal struct {
	UserID        string
	UserName      string
	Email         string
	FirstName     string
	LastName      string
	Roles         []string
	ExpiresAt     time.Time
	Authenticated bool
}

// Anonymous is the principal used when authentication is disabled.
func Anonymous() *Principal {
	return &Principal{
		UserID:   "anonymous",
		UserName: "anonymous",
		Roles:    []string{RoleEmployee},
	}
}

// HasRole matches role names case-insensitively.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool    { return p.HasRole(RoleAdmin) }
func (p *Principal) IsManager() bool  { return p.HasRole(RoleManager) }
func (p *Principal) IsEmployee() bool { return p.HasRole(RoleEmployee) }

// Profile renders the principal as the add-in's user profile.
func (p *Principal) Profile() models.UserProfile {
	return models.UserProfile{
		UserID:    p.UserID,
		UserName:  p.UserName,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Roles:     append([]string{}, p.Roles...),
		LastLogin: time.Now().UTC(),
	}
}

// State is the session summary returned by /api/auth/auth-state.
type State struct {
	IsAuthenticated bool       `json:"isAuthenticated"`
	UserID          string     `json:"userId,omitempty"`
	UserName        string     `json:"userName,omitempty"`
	Email           string     `json:"email,omitempty"`
	Roles           []string   `json:"roles"`
	TokenExpiry     *time.Time `json:"tokenExpiry,omitempty"`
}

// State summarizes the session.
func (p *Principal) State() State {
	s := State{
		IsAuthenticated: p.Authenticated,
		UserID:          p.UserID,
		UserName:        p.UserName,
		Email:           p.Email,
		Roles:           append([]string{}, p.Roles...),
	}
	if !p.ExpiresAt.IsZero() {
		exp := p.ExpiresAt
		s.TokenExpiry = &exp
	}
	return s
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request principal, or nil outside the middleware.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
