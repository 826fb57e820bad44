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

package sagex3

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/crmbridge/internal/cache"
	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

// Candidate field names, tried in order.
var (
	idFields   = []string{"id", "Id", "$key", "code"}
	typeFields = []string{"type", "Type", "$kind", "entityType"}
	nameFields = []string{"name", "Name", "$descriptor", "description"}
)

type leadPayload struct {
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Company           string     `json:"company"`
	Title             string     `json:"title"`
	EstimatedValue    float64    `json:"estimatedValue"`
	Currency          string     `json:"currency"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate"`
	Source            string     `json:"source"`
	Description       string     `json:"description"`
}

type contactPayload struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Company   string          `json:"company"`
	Title     string          `json:"title"`
	Address   *models.Address `json:"address"`
}

type opportunityPayload struct {
	Name      string     `json:"name"`
	Value     float64    `json:"value"`
	Currency  string     `json:"currency"`
	CloseDate *time.Time `json:"closeDate"`
	Stage     string     `json:"stage"`
	ContactID string     `json:"contactId"`
}

// CreateLead forwards a lead to the ERP.
func (c *Client) CreateLead(ctx context.Context, req models.CreateLeadRequest) result.Result[*models.Lead] {
	if msgs := validation.Struct(c.validate, req); msgs != nil {
		return result.Invalid[*models.Lead]("Validation failed", msgs...)
	}

	source := req.Source
	if source == "" {
		source = models.SourceOther
	}
	resp, err := c.do(ctx, http.MethodPost, "/sdata/crm/lead", leadPayload{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		Company:           req.Company,
		Title:             req.Title,
		EstimatedValue:    req.EstimatedValue,
		Currency:          req.Currency,
		ExpectedCloseDate: req.ExpectedCloseDate,
		Source:            string(source),
		Description:       req.Description,
	})
	if err != nil || !resp.ok() {
		return failure[*models.Lead]("create lead", resp, err)
	}

	return result.Created(&models.Lead{
		ID:                uuid.NewString(),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		Company:           req.Company,
		Title:             req.Title,
		EstimatedValue:    req.EstimatedValue,
		Currency:          req.Currency,
		ExpectedCloseDate: req.ExpectedCloseDate,
		Source:            source,
		Description:       req.Description,
		LeadStatus:        models.LeadNew,
		ExternalID:        firstString(decodeObject(resp.raw), idFields...),
		Status:            models.EntityActive,
		CreatedAt:         c.now(),
	})
}

// CreateContact forwards a contact to the ERP.
func (c *Client) CreateContact(ctx context.Context, req models.CreateContactRequest) result.Result[*models.Contact] {
	if msgs := validation.Struct(c.validate, req); msgs != nil {
		return result.Invalid[*models.Contact]("Validation failed", msgs...)
	}

	resp, err := c.do(ctx, http.MethodPost, "/sdata/crm/contact", contactPayload{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Title:     req.Title,
		Address:   req.PrimaryAddress,
	})
	if err != nil || !resp.ok() {
		return failure[*models.Contact]("create contact", resp, err)
	}

	return result.Created(&models.Contact{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Company:        req.Company,
		Title:          req.Title,
		PrimaryAddress: req.PrimaryAddress,
		ExternalID:     firstString(decodeObject(resp.raw), idFields...),
		Status:         models.EntityActive,
		CreatedAt:      c.now(),
	})
}

// CreateOpportunity forwards an opportunity to the ERP. Opportunities are
// not stored locally.
func (c *Client) CreateOpportunity(ctx context.Context, req models.CreateOpportunityRequest) result.Result[*models.Opportunity] {
	if msgs := validation.Struct(c.validate, req); msgs != nil {
		return result.Invalid[*models.Opportunity]("Validation failed", msgs...)
	}

	stage := req.Stage
	if stage == "" {
		stage = models.StageProspecting
	}
	resp, err := c.do(ctx, http.MethodPost, "/sdata/crm/opportunity", opportunityPayload{
		Name:      req.Name,
		Value:     req.Value,
		Currency:  req.Currency,
		CloseDate: req.CloseDate,
		Stage:     string(stage),
		ContactID: req.ContactID,
	})
	if err != nil || !resp.ok() {
		return failure[*models.Opportunity]("create opportunity", resp, err)
	}

	return result.Created(&models.Opportunity{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Value:      req.Value,
		Currency:   req.Currency,
		CloseDate:  req.CloseDate,
		Stage:      stage,
		ContactID:  req.ContactID,
		ExternalID: firstString(decodeObject(resp.raw), idFields...),
	})
}

// Search queries ERP records. Results are cached per query when a cache
// is configured.
func (c *Client) Search(ctx context.Context, query string) result.Result[[]models.EntityReference] {
	query = strings.TrimSpace(query)
	if query == "" {
		return result.Invalid[[]models.EntityReference]("Query is required")
	}

	key := "sagex3:search:" + strings.ToLower(query)
	if c.cache != nil {
		var cached []models.EntityReference
		hit, err := cache.GetJSON(ctx, c.cache, key, &cached)
		if err != nil {
			slog.Warn("search cache read failed", "error", err)
		}
		if hit {
			return result.OK(cached)
		}
	}

	resp, err := c.do(ctx, http.MethodGet, "/sdata/crm/search?q="+url.QueryEscape(query), nil)
	if err != nil || !resp.ok() {
		return failure[[]models.EntityReference]("search", resp, err)
	}

	refs := parseSearch(resp.raw)
	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, refs, c.searchTTL); err != nil {
			slog.Warn("search cache write failed", "error", err)
		}
	}
	return result.OK(refs)
}

// parseSearch accepts either a top-level array or an SData feed with a
// "$resources" array. Items without an id are dropped.
func parseSearch(raw []byte) []models.EntityReference {
	var items []map[string]any

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		var feed struct {
			Resources []map[string]any `json:"$resources"`
		}
		dec = json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&feed); err == nil {
			items = feed.Resources
		}
	}

	refs := make([]models.EntityReference, 0, len(items))
	for _, item := range items {
		id := firstString(item, idFields...)
		if id == "" {
			continue
		}
		refs = append(refs, models.EntityReference{
			ID:   id,
			Type: models.ParseEntityType(firstString(item, typeFields...)),
			Name: firstString(item, nameFields...),
		})
	}
	return refs
}
