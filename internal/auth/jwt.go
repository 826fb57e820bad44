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
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims read from the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Name              string   `json:"name"`
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	Roles             []string `json:"roles"`
	Groups            []string `json:"groups"`
}

// ValidatorConfig holds token validation settings.
type ValidatorConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// Validator checks HS256 bearer tokens.
type Validator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewValidator returns nil when no secret is configured; the middleware
// then runs in development mode.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Secret == "" {
		return nil
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Validator{secret: []byte(cfg.Secret), opts: opts}
}

// Validate parses a token into a Principal.
func (v *Validator) Validate(tokenStr string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return claims.principal(), nil
}

func (c *Claims) principal() *Principal {
	roles := c.Roles
	if len(roles) == 0 {
		roles = c.Groups
	}
	if len(roles) == 0 {
		roles = []string{RoleEmployee}
	}

	userName := c.PreferredUsername
	if userName == "" {
		userName = c.Name
	}
	email := c.Email
	if email == "" {
		email = c.PreferredUsername
	}

	p := &Principal{
		UserID:        c.Subject,
		UserName:      userName,
		Email:         email,
		FirstName:     c.GivenName,
		LastName:      c.FamilyName,
		Roles:         append([]string{}, roles...),
		Authenticated: true,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
