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

package models

import "time"

// Field constraints are expressed as validator tags; the "phone" tag is a
// custom rule registered by the crm and sagex3 packages.

// CreateContactRequest is the body of POST /api/crm/create-contact.
type CreateContactRequest struct {
	FirstName      string   `json:"firstName" validate:"required,notblank,max=100"`
	LastName       string   `json:"lastName" validate:"required,notblank,max=100"`
	Email          string   `json:"email" validate:"omitempty,email,max=254"`
	Phone          string   `json:"phone" validate:"omitempty,phone,max=50"`
	Company        string   `json:"company" validate:"max=200"`
	Title          string   `json:"title" validate:"max=100"`
	PrimaryAddress *Address `json:"primaryAddress,omitempty"`
}

// CreateLeadRequest is the body of POST /api/crm/create-lead.
type CreateLeadRequest struct {
	FirstName         string     `json:"firstName" validate:"required,notblank,max=100"`
	LastName          string     `json:"lastName" validate:"required,notblank,max=100"`
	Email             string     `json:"email" validate:"omitempty,email,max=254"`
	Phone             string     `json:"phone" validate:"omitempty,phone,max=50"`
	Company           string     `json:"company" validate:"max=200"`
	Title             string     `json:"title" validate:"max=100"`
	EstimatedValue    float64    `json:"estimatedValue" validate:"gte=0"`
	Currency          string     `json:"currency" validate:"omitempty,len=3"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	Source            LeadSource `json:"source" validate:"omitempty,oneof=Email Website Phone Referral SocialMedia Event Other"`
	Description       string     `json:"description" validate:"max=2000"`
}

// CreateOpportunityRequest is forwarded to the ERP.
type CreateOpportunityRequest struct {
	Name      string           `json:"name" validate:"required,max=200"`
	Value     float64          `json:"value" validate:"gte=0"`
	Currency  string           `json:"currency" validate:"omitempty,len=3"`
	CloseDate *time.Time       `json:"closeDate,omitempty"`
	Stage     OpportunityStage `json:"stage" validate:"omitempty,oneof=Prospecting Qualification Proposal Negotiation ClosedWon ClosedLost"`
	ContactID string           `json:"contactId" validate:"omitempty,max=100"`
}

// CreateActivityRequest is the body of POST /api/crm/log-activity.
type CreateActivityRequest struct {
	Type            ActivityType      `json:"type" validate:"omitempty,oneof=Task Email PhoneCall Appointment Call Meeting Note"`
	Subject         string            `json:"subject" validate:"required,max=200"`
	Description     string            `json:"description"`
	StartAt         *time.Time        `json:"startDate,omitempty"`
	EndAt           *time.Time        `json:"endDate,omitempty"`
	Priority        Priority          `json:"priority" validate:"omitempty,oneof=Low Normal High"`
	RelatedEntities []EntityReference `json:"relatedEntities" validate:"dive"`
	Location        string            `json:"location" validate:"max=200"`
	ContactID       string            `json:"contactId,omitempty" validate:"omitempty,uuid"`
}

// UpdateContactRequest is a merge-patch: blank fields are left untouched.
type UpdateContactRequest struct {
	FirstName      string   `json:"firstName" validate:"max=100"`
	LastName       string   `json:"lastName" validate:"max=100"`
	Email          string   `json:"email" validate:"omitempty,email,max=254"`
	Phone          string   `json:"phone" validate:"omitempty,phone,max=50"`
	Company        string   `json:"company" validate:"max=200"`
	Title          string   `json:"title" validate:"max=100"`
	PrimaryAddress *Address `json:"primaryAddress,omitempty"`
}

// UpdateLeadRequest is a merge-patch: blank fields are left untouched.
type UpdateLeadRequest struct {
	FirstName   string     `json:"firstName" validate:"max=100"`
	LastName    string     `json:"lastName" validate:"max=100"`
	Email       string     `json:"email" validate:"omitempty,email,max=254"`
	Phone       string     `json:"phone" validate:"omitempty,phone,max=50"`
	Company     string     `json:"company" validate:"max=200"`
	Title       string     `json:"title" validate:"max=100"`
	Description string     `json:"description" validate:"max=2000"`
	LeadStatus  LeadStatus `json:"leadStatus" validate:"omitempty,oneof=New Qualified Disqualified"`
}

// ConvertLeadRequest optionally names an existing contact to convert into.
type ConvertLeadRequest struct {
	ContactID string `json:"contactId"`
}

// SearchRequest is the body of POST /api/crm/search.
type SearchRequest struct {
	Query       string       `json:"query"`
	EntityTypes []EntityType `json:"entityTypes"`
	PageNumber  int          `json:"pageNumber"`
	PageSize    int          `json:"pageSize"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Results    []CrmRecord `json:"results"`
	TotalCount int         `json:"totalCount"`
	PageNumber int         `json:"pageNumber"`
	PageSize   int         `json:"pageSize"`
	HasMore    bool        `json:"hasMore"`
}

// AutoLinkRequest is the body of POST /api/outlook/auto-link.
type AutoLinkRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// AutoLinkResponse reports the best match for an auto-link request.
type AutoLinkResponse struct {
	MatchFound bool       `json:"matchFound"`
	Record     *CrmRecord `json:"record,omitempty"`
	Message    string     `json:"message"`
}
