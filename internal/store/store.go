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

// Package store persists CRM contacts, leads and activities. The Backend
// interface is implemented by an in-memory store (tests and demos), SQLite
// via sqlx (single-node deployments) and Postgres via pgx.
//
// Lookups return (nil, nil) when nothing matches; absence is not an error.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bcem/crmbridge/internal/models"
)

// Backend is the capability set the CRM gateway needs from a store.
type Backend interface {
	FindContactByEmail(ctx context.Context, email string) (*models.Contact, error)
	FindLeadByEmail(ctx context.Context, email string) (*models.Lead, error)
	// FindContactByText returns the oldest contact whose name, email or
	// company contains text, or is contained in it.
	FindContactByText(ctx context.Context, text string) (*models.Contact, error)
	FindLeadByText(ctx context.Context, text string) (*models.Lead, error)

	InsertContact(ctx context.Context, c *models.Contact) error
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	UpdateContact(ctx context.Context, c *models.Contact) error

	InsertLead(ctx context.Context, l *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpdateLead(ctx context.Context, l *models.Lead) error

	InsertActivity(ctx context.Context, a *models.Activity) error
	// ListActivities returns activities related to entityID, newest first.
	ListActivities(ctx context.Context, entityID string) ([]models.Activity, error)

	// Search returns contacts then leads whose name, email or company
	// contains query. An empty query matches everything.
	Search(ctx context.Context, query string, types []models.EntityType) ([]models.CrmRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates the backend named by driver.
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// minReverseMatch is the shortest field value that may match by being
// contained in the searched text. Shorter values match almost anything.
const minReverseMatch = 3

// textMatches reports whether lowered text contains, or is contained in,
// any non-empty field.
func textMatches(text string, fields ...string) bool {
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if strings.Contains(f, text) {
			return true
		}
		if len(f) >= minReverseMatch && strings.Contains(text, f) {
			return true
		}
	}
	return false
}

func wantsType(types []models.EntityType, t models.EntityType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func encodeAddress(a *models.Address) (*string, error) {
	if a == nil || a.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}
	s := string(data)
	return &s, nil
}

func decodeAddress(data []byte) (*models.Address, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var a models.Address
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	return &a, nil
}

func encodeRefs(refs []models.EntityReference) (string, error) {
	if refs == nil {
		refs = []models.EntityReference{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("encode related entities: %w", err)
	}
	return string(data), nil
}

func decodeRefs(data []byte) ([]models.EntityReference, error) {
	refs := []models.EntityReference{}
	if len(data) == 0 {
		return refs, nil
	}
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("decode related entities: %w", err)
	}
	return refs, nil
}
