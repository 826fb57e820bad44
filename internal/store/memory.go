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

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bcem/crmbridge/internal/models"
)

// Memory is a Backend held entirely in process memory. Records are copied
// on the way in and out so callers never share state with the store.
type Memory struct {
	mu         sync.RWMutex
	contacts   map[string]models.Contact
	leads      map[string]models.Lead
	activities []models.Activity

	// insertion order, used as the "oldest first" tie-break
	contactOrder []string
	leadOrder    []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[string]models.Contact),
		leads:    make(map[string]models.Lead),
	}
}

func (m *Memory) FindContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return m.findContact(ctx, func(c *models.Contact) bool {
		return c.Email != "" && strings.EqualFold(c.Email, email)
	})
}

func (m *Memory) FindLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	return m.findLead(ctx, func(l *models.Lead) bool {
		return l.Email != "" && strings.EqualFold(l.Email, email)
	})
}

func (m *Memory) FindContactByText(ctx context.Context, text string) (*models.Contact, error) {
	text = strings.ToLower(text)
	return m.findContact(ctx, func(c *models.Contact) bool {
		return textMatches(text, c.FullName(), c.Email, c.Company)
	})
}

func (m *Memory) FindLeadByText(ctx context.Context, text string) (*models.Lead, error) {
	text = strings.ToLower(text)
	return m.findLead(ctx, func(l *models.Lead) bool {
		return textMatches(text, l.FullName(), l.Email, l.Company)
	})
}

func (m *Memory) findContact(ctx context.Context, match func(*models.Contact) bool) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.contactOrder {
		c := m.contacts[id]
		if match(&c) {
			return copyContact(c), nil
		}
	}
	return nil, nil
}

func (m *Memory) findLead(ctx context.Context, match func(*models.Lead) bool) (*models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.leadOrder {
		l := m.leads[id]
		if match(&l) {
			return copyLead(l), nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertContact(ctx context.Context, c *models.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.contacts[c.ID]; exists {
		return fmt.Errorf("insert contact: duplicate id %s", c.ID)
	}
	m.contacts[c.ID] = *copyContact(*c)
	m.contactOrder = append(m.contactOrder, c.ID)
	return nil
}

func (m *Memory) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, nil
	}
	return copyContact(c), nil
}

func (m *Memory) UpdateContact(ctx context.Context, c *models.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[c.ID]; !ok {
		return fmt.Errorf("update contact %s: not found", c.ID)
	}
	m.contacts[c.ID] = *copyContact(*c)
	return nil
}

func (m *Memory) InsertLead(ctx context.Context, l *models.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.leads[l.ID]; exists {
		return fmt.Errorf("insert lead: duplicate id %s", l.ID)
	}
	m.leads[l.ID] = *copyLead(*l)
	m.leadOrder = append(m.leadOrder, l.ID)
	return nil
}

func (m *Memory) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, nil
	}
	return copyLead(l), nil
}

func (m *Memory) UpdateLead(ctx context.Context, l *models.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[l.ID]; !ok {
		return fmt.Errorf("update lead %s: not found", l.ID)
	}
	m.leads[l.ID] = *copyLead(*l)
	return nil
}

func (m *Memory) InsertActivity(ctx context.Context, a *models.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.RelatedEntities = append([]models.EntityReference{}, a.RelatedEntities...)
	m.activities = append(m.activities, cp)
	return nil
}

func (m *Memory) ListActivities(ctx context.Context, entityID string) ([]models.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Activity{}
	for _, a := range m.activities {
		if !activityRelates(a, entityID) {
			continue
		}
		cp := a
		cp.RelatedEntities = append([]models.EntityReference{}, a.RelatedEntities...)
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func activityRelates(a models.Activity, entityID string) bool {
	if strings.EqualFold(a.ContactID, entityID) {
		return true
	}
	for _, ref := range a.RelatedEntities {
		if strings.EqualFold(ref.ID, entityID) {
			return true
		}
	}
	return false
}

func (m *Memory) Search(ctx context.Context, query string, types []models.EntityType) ([]models.CrmRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.CrmRecord{}
	if wantsType(types, models.EntityContact) {
		for _, id := range m.contactOrder {
			c := m.contacts[id]
			if query == "" || containsAny(query, c.FullName(), c.Email, c.Company) {
				out = append(out, *c.Record())
			}
		}
	}
	if wantsType(types, models.EntityLead) {
		for _, id := range m.leadOrder {
			l := m.leads[id]
			if query == "" || containsAny(query, l.FullName(), l.Email, l.Company) {
				out = append(out, *l.Record())
			}
		}
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func containsAny(query string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func copyContact(c models.Contact) *models.Contact {
	if c.PrimaryAddress != nil {
		a := *c.PrimaryAddress
		c.PrimaryAddress = &a
	}
	if c.ModifiedAt != nil {
		t := *c.ModifiedAt
		c.ModifiedAt = &t
	}
	return &c
}

func copyLead(l models.Lead) *models.Lead {
	if l.ModifiedAt != nil {
		t := *l.ModifiedAt
		l.ModifiedAt = &t
	}
	if l.ExpectedCloseDate != nil {
		t := *l.ExpectedCloseDate
		l.ExpectedCloseDate = &t
	}
	return &l
}
