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

import (
	"fmt"
	"strings"
	"time"
)

// Address is a postal address stored alongside a contact.
type Address struct {
	Street     string `json:"street,omitempty" validate:"max=200"`
	City       string `json:"city,omitempty" validate:"max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postalCode,omitempty" validate:"max=20"`
	Country    string `json:"country,omitempty" validate:"max=100"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Contact is a persisted CRM contact.
type Contact struct {
	ID             string       `json:"id" db:"id"`
	FirstName      string       `json:"firstName" db:"first_name"`
	LastName       string       `json:"lastName" db:"last_name"`
	Email          string       `json:"email" db:"email"`
	Phone          string       `json:"phone" db:"phone"`
	Company        string       `json:"company" db:"company"`
	Title          string       `json:"title" db:"title"`
	PrimaryAddress *Address     `json:"primaryAddress,omitempty" db:"-"`
	ExternalID     string       `json:"externalId,omitempty" db:"external_id"`
	Status         EntityStatus `json:"status" db:"status"`
	CreatedAt      time.Time    `json:"createdDate" db:"created_at"`
	ModifiedAt     *time.Time   `json:"modifiedDate,omitempty" db:"modified_at"`
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Record projects the contact into a CrmRecord.
func (c *Contact) Record() *CrmRecord {
	return &CrmRecord{
		ID:      c.ID,
		Type:    EntityContact,
		Name:    c.FullName(),
		Summary: fmt.Sprintf("Contact: %s, %s", c.FullName(), c.Email),
	}
}

// Lead is a persisted CRM lead.
type Lead struct {
	ID                 string       `json:"id" db:"id"`
	FirstName          string       `json:"firstName" db:"first_name"`
	LastName           string       `json:"lastName" db:"last_name"`
	Email              string       `json:"email" db:"email"`
	Phone              string       `json:"phone" db:"phone"`
	Company            string       `json:"company" db:"company"`
	Title              string       `json:"title" db:"title"`
	EstimatedValue     float64      `json:"estimatedValue" db:"estimated_value"`
	Currency           string       `json:"currency" db:"currency"`
	ExpectedCloseDate  *time.Time   `json:"expectedCloseDate,omitempty" db:"expected_close_date"`
	Source             LeadSource   `json:"source" db:"source"`
	Description        string       `json:"description" db:"description"`
	LeadStatus         LeadStatus   `json:"leadStatus" db:"lead_status"`
	ConvertedContactID string       `json:"convertedContactId,omitempty" db:"converted_contact_id"`
	ExternalID         string       `json:"externalId,omitempty" db:"external_id"`
	Status             EntityStatus `json:"status" db:"status"`
	CreatedAt          time.Time    `json:"createdDate" db:"created_at"`
	ModifiedAt         *time.Time   `json:"modifiedDate,omitempty" db:"modified_at"`
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Record projects the lead into a CrmRecord.
func (l *Lead) Record() *CrmRecord {
	return &CrmRecord{
		ID:      l.ID,
		Type:    EntityLead,
		Name:    l.FullName(),
		Summary: fmt.Sprintf("Lead: %s, %s", l.FullName(), l.Company),
	}
}

// Opportunity is a sales opportunity. Opportunities live in the ERP; the
// bridge only forwards them.
type Opportunity struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Value      float64          `json:"value"`
	Currency   string           `json:"currency"`
	CloseDate  *time.Time       `json:"closeDate,omitempty"`
	Stage      OpportunityStage `json:"stage"`
	ContactID  string           `json:"contactId,omitempty"`
	ExternalID string           `json:"externalId,omitempty"`
}

// CrmRecord is a store-agnostic projection used for matching and display.
type CrmRecord struct {
	ID      string     `json:"id"`
	Type    EntityType `json:"type"`
	Name    string     `json:"name"`
	Summary string     `json:"summary"`
}

// EntityReference points an activity at a CRM record.
type EntityReference struct {
	ID   string     `json:"id" validate:"required,uuid"`
	Type EntityType `json:"type"`
	Name string     `json:"name,omitempty"`
}

// Activity is a persisted timeline entry.
type Activity struct {
	ID              string            `json:"id"`
	Type            ActivityType      `json:"type"`
	Subject         string            `json:"subject"`
	Description     string            `json:"description,omitempty"`
	StartAt         *time.Time        `json:"startDate,omitempty"`
	EndAt           *time.Time        `json:"endDate,omitempty"`
	Priority        Priority          `json:"priority"`
	Status          ActivityStatus    `json:"status"`
	RelatedEntities []EntityReference `json:"relatedEntities"`
	Location        string            `json:"location,omitempty"`
	ContactID       string            `json:"contactId,omitempty"`
	CreatedAt       time.Time         `json:"createdDate"`
	ModifiedAt      time.Time         `json:"modifiedDate"`
}

// UserProfile is the signed-in user as seen by the add-in.
type UserProfile struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Roles     []string  `json:"roles"`
	LastLogin time.Time `json:"lastLogin"`
}
