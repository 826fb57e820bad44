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

package crm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bcem/crmbridge/internal/models"
	"github.com/bcem/crmbridge/internal/result"
	"github.com/bcem/crmbridge/internal/validation"
)

// UpdateContact merge-patches a contact: blank fields in req are ignored.
func (s *Service) UpdateContact(ctx context.Context, id string, req models.UpdateContactRequest) result.Result[*models.Contact] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.Contact]("Contact ID", id); !ok {
		return r
	}
	if msgs := validation.Struct(s.validate, req); msgs != nil {
		return result.Invalid[*models.Contact]("Validation failed", msgs...)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return internal[*models.Contact]("update contact", err)
	}
	if c == nil {
		return result.NotFound[*models.Contact]("Contact not found")
	}

	patch(&c.FirstName, req.FirstName)
	patch(&c.LastName, req.LastName)
	patch(&c.Email, req.Email)
	patch(&c.Phone, req.Phone)
	patch(&c.Company, req.Company)
	patch(&c.Title, req.Title)
	if addr := nonZeroAddress(req.PrimaryAddress); addr != nil {
		c.PrimaryAddress = addr
	}
	now := s.now()
	c.ModifiedAt = &now

	if err := s.store.UpdateContact(ctx, c); err != nil {
		return internal[*models.Contact]("update contact", err)
	}
	return result.OK(c)
}

// UpdateLead merge-patches a lead: blank fields in req are ignored.
func (s *Service) UpdateLead(ctx context.Context, id string, req models.UpdateLeadRequest) result.Result[*models.Lead] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.Lead]("Lead ID", id); !ok {
		return r
	}
	if msgs := validation.Struct(s.validate, req); msgs != nil {
		return result.Invalid[*models.Lead]("Validation failed", msgs...)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	l, err := s.store.GetLead(ctx, id)
	if err != nil {
		return internal[*models.Lead]("update lead", err)
	}
	if l == nil {
		return result.NotFound[*models.Lead]("Lead not found")
	}

	patch(&l.FirstName, req.FirstName)
	patch(&l.LastName, req.LastName)
	patch(&l.Email, req.Email)
	patch(&l.Phone, req.Phone)
	patch(&l.Company, req.Company)
	patch(&l.Title, req.Title)
	patch(&l.Description, req.Description)
	if req.LeadStatus != "" {
		l.LeadStatus = req.LeadStatus
	}
	now := s.now()
	l.ModifiedAt = &now

	if err := s.store.UpdateLead(ctx, l); err != nil {
		return internal[*models.Lead]("update lead", err)
	}
	return result.OK(l)
}

// ConvertLead turns a lead into a contact. With req.ContactID the lead is
// attached to that existing contact; otherwise a contact is created from
// the lead's fields. The lead is marked Converted either way.
func (s *Service) ConvertLead(ctx context.Context, id string, req models.ConvertLeadRequest) result.Result[*models.CrmRecord] {
	id = validation.NormalizeID(id)
	if r, ok := checkID[*models.CrmRecord]("Lead ID", id); !ok {
		return r
	}
	contactID := validation.NormalizeID(req.ContactID)
	if contactID != "" && !validation.IsID(contactID) {
		return result.Invalid[*models.CrmRecord]("Invalid ID format")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return internal[*models.CrmRecord]("convert lead", err)
	}
	if lead == nil {
		return result.NotFound[*models.CrmRecord]("Lead not found")
	}
	if lead.LeadStatus == models.LeadConverted {
		return result.Invalid[*models.CrmRecord]("Lead has already been converted")
	}

	var contact *models.Contact
	if contactID != "" {
		contact, err = s.store.GetContact(ctx, contactID)
		if err != nil {
			return internal[*models.CrmRecord]("convert lead", err)
		}
		if contact == nil {
			return result.NotFound[*models.CrmRecord]("Contact not found")
		}
	} else {
		contact = &models.Contact{
			ID:         uuid.NewString(),
			FirstName:  lead.FirstName,
			LastName:   lead.LastName,
			Email:      lead.Email,
			Phone:      lead.Phone,
			Company:    lead.Company,
			Title:      lead.Title,
			ExternalID: lead.ExternalID,
			Status:     models.EntityActive,
			CreatedAt:  s.now(),
		}
		if err := s.store.InsertContact(ctx, contact); err != nil {
			return internal[*models.CrmRecord]("convert lead", err)
		}
	}

	now := s.now()
	lead.LeadStatus = models.LeadConverted
	lead.ConvertedContactID = contact.ID
	lead.ModifiedAt = &now
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return internal[*models.CrmRecord]("convert lead", err)
	}

	slog.Info("lead converted", "lead_id", lead.ID, "contact_id", contact.ID)
	return result.OK(contact.Record())
}

// patch overwrites *dst when value is non-blank.
func patch(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
