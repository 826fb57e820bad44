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
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/crmbridge/internal/models"
)

// backends returns every Backend that can run without external services.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func newContact(first, last, email, company string, created time.Time) *models.Contact {
	return &models.Contact{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  last,
		Email:     email,
		Company:   company,
		Status:    models.EntityActive,
		CreatedAt: created,
	}
}

func TestBackends_ContactRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newContact("Alice", "A.", "alice@example.com", "Acme", created)
			c.PrimaryAddress = &models.Address{City: "Lyon", Country: "FR"}
			require.NoError(t, b.InsertContact(ctx, c))

			got, err := b.GetContact(ctx, c.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Alice", got.FirstName)
			assert.Equal(t, "alice@example.com", got.Email)
			assert.True(t, got.CreatedAt.Equal(created))
			require.NotNil(t, got.PrimaryAddress)
			assert.Equal(t, "Lyon", got.PrimaryAddress.City)

			missing, err := b.GetContact(ctx, uuid.NewString())
			require.NoError(t, err)
			assert.Nil(t, missing)

			modified := created.Add(time.Hour)
			got.Title = "CFO"
			got.ModifiedAt = &modified
			require.NoError(t, b.UpdateContact(ctx, got))

			again, err := b.GetContact(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, "CFO", again.Title)
			require.NotNil(t, again.ModifiedAt)
			assert.True(t, again.ModifiedAt.Equal(modified))
		})
	}
}

func TestBackends_FindByEmail(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newContact("Alice", "A.", "Alice@Example.com", "", time.Now().UTC())
			require.NoError(t, b.InsertContact(ctx, c))

			got, err := b.FindContactByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, c.ID, got.ID)

			none, err := b.FindContactByEmail(ctx, "bob@example.com")
			require.NoError(t, err)
			assert.Nil(t, none)

			lead := &models.Lead{
				ID: uuid.NewString(), FirstName: "Bob", LastName: "B.", Email: "bob@example.com",
				LeadStatus: models.LeadNew, Status: models.EntityActive, CreatedAt: time.Now().UTC(),
			}
			require.NoError(t, b.InsertLead(ctx, lead))

			gotLead, err := b.FindLeadByEmail(ctx, "BOB@example.com")
			require.NoError(t, err)
			require.NotNil(t, gotLead)
			assert.Equal(t, lead.ID, gotLead.ID)
		})
	}
}

func TestBackends_FindByText(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := newContact("Alice", "Archer", "alice@example.com", "Acme Corp", base)
			bob := newContact("Bob", "Brown", "bob@example.com", "Globex", base.Add(time.Minute))
			require.NoError(t, b.InsertContact(ctx, alice))
			require.NoError(t, b.InsertContact(ctx, bob))

			tests := []struct {
				text string
				want string
			}{
				{"acme", alice.ID},                        // field contains text
				{"invoice from globex for march", bob.ID}, // text contains company
				{"hi, this is Bob Brown again", bob.ID},   // text contains full name
				{"nothing relevant here", ""},
				{"ALICE@EXAMPLE.COM wrote", alice.ID},
			}
			for _, tt := range tests {
				got, err := b.FindContactByText(ctx, tt.text)
				require.NoError(t, err)
				if tt.want == "" {
					assert.Nil(t, got, tt.text)
					continue
				}
				require.NotNil(t, got, tt.text)
				assert.Equal(t, tt.want, got.ID, tt.text)
			}
		})
	}
}

func TestBackends_FoldsNonASCII(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newContact("Élodie", "Ångström", "Élodie@Exemple.fr", "ÖKO Énergie", time.Now().UTC())
			require.NoError(t, b.InsertContact(ctx, c))

			byText, err := b.FindContactByText(ctx, "élodie")
			require.NoError(t, err)
			require.NotNil(t, byText)
			assert.Equal(t, c.ID, byText.ID)

			byName, err := b.FindContactByText(ctx, "bonjour, élodie ångström ici")
			require.NoError(t, err)
			require.NotNil(t, byName)
			assert.Equal(t, c.ID, byName.ID)

			byEmail, err := b.FindContactByEmail(ctx, "élodie@exemple.fr")
			require.NoError(t, err)
			require.NotNil(t, byEmail)
			assert.Equal(t, c.ID, byEmail.ID)

			found, err := b.Search(ctx, "öko", nil)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, c.ID, found[0].ID)
		})
	}
}

func TestBackends_Activities(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			target := uuid.NewString()
			base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

			for i, subject := range []string{"first", "second"} {
				created := base.Add(time.Duration(i) * time.Hour)
				require.NoError(t, b.InsertActivity(ctx, &models.Activity{
					ID:              uuid.NewString(),
					Type:            models.ActivityEmail,
					Subject:         subject,
					StartAt:         &created,
					EndAt:           &created,
					Priority:        models.PriorityNormal,
					Status:          models.StatusNotStarted,
					RelatedEntities: []models.EntityReference{{ID: target, Type: models.EntityContact}},
					CreatedAt:       created,
					ModifiedAt:      created,
				}))
			}
			require.NoError(t, b.InsertActivity(ctx, &models.Activity{
				ID: uuid.NewString(), Type: models.ActivityTask, Subject: "unrelated",
				CreatedAt: base, ModifiedAt: base,
			}))

			got, err := b.ListActivities(ctx, target)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "second", got[0].Subject, "newest first")
			assert.Equal(t, "first", got[1].Subject)
			require.Len(t, got[0].RelatedEntities, 1)
			assert.Equal(t, target, got[0].RelatedEntities[0].ID)
			require.NotNil(t, got[0].StartAt)

			empty, err := b.ListActivities(ctx, uuid.NewString())
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)
		})
	}
}

func TestBackends_Search(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC()
			require.NoError(t, b.InsertContact(ctx, newContact("Alice", "Archer", "alice@acme.com", "Acme", base)))
			require.NoError(t, b.InsertLead(ctx, &models.Lead{
				ID: uuid.NewString(), FirstName: "Carol", LastName: "Acme-Lead", Company: "Initech",
				LeadStatus: models.LeadNew, Status: models.EntityActive, CreatedAt: base,
			}))

			all, err := b.Search(ctx, "", nil)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			acme, err := b.Search(ctx, "ACME", nil)
			require.NoError(t, err)
			require.Len(t, acme, 2)
			assert.Equal(t, models.EntityContact, acme[0].Type, "contacts first")

			leads, err := b.Search(ctx, "acme", []models.EntityType{models.EntityLead})
			require.NoError(t, err)
			require.Len(t, leads, 1)
			assert.Equal(t, models.EntityLead, leads[0].Type)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongodb", "")
	assert.Error(t, err)
}
