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

// Package crm is the record store gateway: every CRM lookup, create and
// update goes through Service, which validates input, bounds each store
// call with a deadline and reports outcomes as result envelopes. Store
// errors never escape; they are logged and surfaced as internal errors.
package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/store"
	"github.com/bcem/crmbridge/internal/validation"
)

const (
	// DefaultTimeout bounds a single gateway operation's store calls.
	DefaultTimeout = 5 * time.Second

	defaultPageSize = 20
	maxPageSize     = 100
)

// Service implements the CRM gateway operations.
type Service struct {
	store    store.Backend
	validate *validator.Validate
	timeout  time.Duration
	now      func() time.Time
}

// Config holds dependencies for the gateway.
type Config struct {
	Store   store.Backend
	Timeout time.Duration
}

// NewService creates a CRM gateway over the given store.
func NewService(cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		store:    cfg.Store,
		validate: validation.New(),
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FindByEmail looks up a contact, then a lead, by exact email address.
// No match is a success with a nil record.
func (s *Service) FindByEmail(ctx context.Context, email string) result.Result[*models.CrmRecord] {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return result.Invalid[*models.CrmRecord]("Email is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contact, err := s.store.FindContactByEmail(ctx, email)
	if err != nil {
		return internal[*models.CrmRecord]("find record by email", err)
	}
	if contact != nil {
		return result.OK(contact.Record())
	}

	lead, err := s.store.FindLeadByEmail(ctx, email)
	if err != nil {
		return internal[*models.CrmRecord]("find record by email", err)
	}
	if lead != nil {
		return result.OK(lead.Record())
	}
	return result.OK[*models.CrmRecord](nil)
}

// FindByContent looks up a contact, then a lead, whose name, email or
// company appears in content (or contains it).
func (s *Service) FindByContent(ctx context.Context, content string) result.Result[*models.CrmRecord] {
	content = strings.TrimSpace(content)
	if content == "" {
		return result.Invalid[*models.CrmRecord]("Content is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contact, err := s.store.FindContactByText(ctx, content)
	if err != nil {
		return internal[*models.CrmRecord]("find record by content", err)
	}
	if contact != nil {
		return result.OK(contact.Record())
	}

	lead, err := s.store.FindLeadByText(ctx, content)
	if err != nil {
		return internal[*models.CrmRecord]("find record by content", err)
	}
	if lead != nil {
		return result.OK(lead.Record())
	}
	return result.OK[*models.CrmRecord](nil)
}

// CreateContact validates and persists a new contact.
func (s *Service) CreateContact(ctx context.Context, req models.CreateContactRequest) result.Result[*models.CrmRecord] {
	if msgs := validation.Struct(s.validate, req); msgs != nil {
		return result.Invalid[*models.CrmRecord]("Validation failed", msgs...)
	}

	c := &models.Contact{
		ID:             uuid.NewString(),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Company:        strings.TrimSpace(req.Company),
		Title:          strings.TrimSpace(req.Title),
		PrimaryAddress: nonZeroAddress(req.PrimaryAddress),
		Status:         models.EntityActive,
		CreatedAt:      s.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.InsertContact(ctx, c); err != nil {
		return internal[*models.CrmRecord]("create contact", err)
	}
	slog.Info("contact created", "contact_id", c.ID)
	return result.Created(c.Record())
}

// CreateLead validates and persists a new lead.
func (s *Service) CreateLead(ctx context.Context, req models.CreateLeadRequest) result.Result[*models.CrmRecord] {
	if msgs := validation.Struct(s.validate, req); msgs != nil {
		return result.Invalid[*models.CrmRecord]("Validation failed", msgs...)
	}

	source := req.Source
	if source == "" {
		source = models.SourceOther
	}
	l := &models.Lead{
		ID:                uuid.NewString(),
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Email:             strings.TrimSpace(req.Email),
		Phone:             strings.TrimSpace(req.Phone),
		Company:           strings.TrimSpace(req.Company),
		Title:             strings.TrimSpace(req.Title),
		EstimatedValue:    req.EstimatedValue,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		ExpectedCloseDate: req.ExpectedCloseDate,
		Source:            source,
		Description:       req.Description,
		LeadStatus:        models.LeadNew,
		Status:            models.EntityActive,
		CreatedAt:         s.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.InsertLead(ctx, l); err != nil {
		return internal[*models.CrmRecord]("create lead", err)
	}
	slog.Info("lead created", "lead_id", l.ID)
	return result.Created(l.Record())
}

// LogActivity validates and persists a timeline activity.
func (s *Service) LogActivity(ctx context.Context, req models.CreateActivityRequest) result.Result[*models.Activity] {
	if msgs := validation.Struct(s.validate, req); msgs != nil {
		return result.Invalid[*models.Activity]("Validation failed", msgs...)
	}

	now := s.now()
	a := &models.Activity{
		ID:              uuid.NewString(),
		Type:            req.Type,
		Subject:         req.Subject,
		Description:     req.Description,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		Priority:        req.Priority,
		Status:          models.StatusNotStarted,
		RelatedEntities: append([]models.EntityReference{}, req.RelatedEntities...),
		Location:        req.Location,
		ContactID:       validation.NormalizeID(req.ContactID),
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	if a.Type == "" {
		a.Type = models.ActivityTask
	}
	if a.Priority == "" {
		a.Priority = models.PriorityNormal
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.InsertActivity(ctx, a); err != nil {
		return internal[*models.Activity]("log activity", err)
	}
	slog.Info("activity logged",
		"activity_id", a.ID,
		"type", a.Type,
		"related", len(a.RelatedEntities),
	)
	return result.Created(a)
}

// ActivityTimeline lists activities related to an entity, newest first.
func (s *Service) ActivityTimeline(ctx context.Context, entityID string) result.Result[[]models.Activity] {
	entityID = validation.NormalizeID(entityID)
	if r, ok := checkID[[]models.Activity]("Entity ID", entityID); !ok {
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	activities, err := s.store.ListActivities(ctx, entityID)
	if err != nil {
		return internal[[]models.Activity]("get activity timeline", err)
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return result.OK(activities)
}

// Search pages through contacts and leads matching the query.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) result.Result[*models.SearchResponse] {
	page := req.PageNumber
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	all, err := s.store.Search(ctx, req.Query, req.EntityTypes)
	if err != nil {
		return internal[*models.SearchResponse]("search records", err)
	}

	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}

	return result.OK(&models.SearchResponse{
		Results:    append([]models.CrmRecord{}, all[start:end]...),
		TotalCount: len(all),
		PageNumber: page,
		PageSize:   size,
		HasMore:    end < len(all),
	})
}

// GetRecord returns the contact or lead with the given id as a CrmRecord.
func (s *Service) GetRecord(ctx context.Context, id string) result.Result[*models.CrmRecord] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.CrmRecord]("Record ID", id); !ok {
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		return internal[*models.CrmRecord]("get record", err)
	}
	if contact != nil {
		return result.OK(contact.Record())
	}

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return internal[*models.CrmRecord]("get record", err)
	}
	if lead != nil {
		return result.OK(lead.Record())
	}
	return result.NotFound[*models.CrmRecord]("Record not found")
}

// GetContact returns a contact by id.
func (s *Service) GetContact(ctx context.Context, id string) result.Result[*models.Contact] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.Contact]("Contact ID", id); !ok {
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return internal[*models.Contact]("get contact", err)
	}
	if c == nil {
		return result.NotFound[*models.Contact]("Contact not found")
	}
	return result.OK(c)
}

// GetLead returns a lead by id.
func (s *Service) GetLead(ctx context.Context, id string) result.Result[*models.Lead] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.Lead]("Lead ID", id); !ok {
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	l, err := s.store.GetLead(ctx, id)
	if err != nil {
		return internal[*models.Lead]("get lead", err)
	}
	if l == nil {
		return result.NotFound[*models.Lead]("Lead not found")
	}
	return result.OK(l)
}

// checkID validates a record identifier argument.
func checkID[T any](label, id string) (result.Result[T], bool) {
	if id == "" {
		return result.Invalid[T](label + " is required"), false
	}
	if !validation.IsID(id) {
		return result.Invalid[T]("Invalid ID format"), false
	}
	return result.Result[T]{}, true
}

// internal logs a store failure and converts it into an internal error.
// The store's error text is not exposed to callers.
func internal[T any](op string, err error) result.Result[T] {
	slog.Error("crm store operation failed", "op", op, "error", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return result.Internal[T](fmt.Sprintf("%s timed out", op))
	}
	return result.Internal[T](fmt.Sprintf("%s failed", op))
}

func nonZeroAddress(a *models.Address) *models.Address {
	if a == nil || a.IsZero() {
		return nil
	}
	cp := *a
	return &cp
}
