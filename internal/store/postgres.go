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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/crmbridge/internal/models"
)

// Postgres is a Backend on a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres creates a store backed by the given pool.
// It ensures the CRM tables exist on creation.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure crm schema: %w", err)
	}
	slog.Info("postgres crm store initialised")
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS contacts (
			id              UUID PRIMARY KEY,
			first_name      TEXT NOT NULL,
			last_name       TEXT NOT NULL,
			email           TEXT NOT NULL DEFAULT '',
			phone           TEXT NOT NULL DEFAULT '',
			company         TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			primary_address JSONB,
			external_id     TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'Active',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at     TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS leads (
			id                   UUID PRIMARY KEY,
			first_name           TEXT NOT NULL,
			last_name            TEXT NOT NULL,
			email                TEXT NOT NULL DEFAULT '',
			phone                TEXT NOT NULL DEFAULT '',
			company              TEXT NOT NULL DEFAULT '',
			title                TEXT NOT NULL DEFAULT '',
			estimated_value      DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency             TEXT NOT NULL DEFAULT '',
			expected_close_date  TIMESTAMPTZ,
			source               TEXT NOT NULL DEFAULT '',
			description          TEXT NOT NULL DEFAULT '',
			lead_status          TEXT NOT NULL DEFAULT 'New',
			converted_contact_id TEXT NOT NULL DEFAULT '',
			external_id          TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL DEFAULT 'Active',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at          TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS activities (
			id               UUID PRIMARY KEY,
			type             TEXT NOT NULL,
			subject          TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			start_at         TIMESTAMPTZ,
			end_at           TIMESTAMPTZ,
			priority         TEXT NOT NULL DEFAULT 'Normal',
			status           TEXT NOT NULL DEFAULT 'NotStarted',
			location         TEXT NOT NULL DEFAULT '',
			contact_id       TEXT NOT NULL DEFAULT '',
			related_entities JSONB NOT NULL DEFAULT '[]',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS activity_entities (
			activity_id UUID NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
			entity_id   TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (activity_id, entity_id)
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email));
		CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(lower(email));
		CREATE INDEX IF NOT EXISTS idx_activity_entities_entity ON activity_entities(entity_id);
		CREATE INDEX IF NOT EXISTS idx_activities_contact ON activities(contact_id);
	`)
	return err
}

const (
	pgContactSelect = `
		SELECT id::text, first_name, last_name, email, phone, company, title,
		       primary_address, external_id, status, created_at, modified_at
		FROM contacts`
	pgLeadSelect = `
		SELECT id::text, first_name, last_name, email, phone, company, title,
		       estimated_value, currency, expected_close_date, source, description,
		       lead_status, converted_contact_id, external_id, status, created_at, modified_at
		FROM leads`

	// $1 is the lower-cased text.
	pgTextMatch = `(
		strpos(lower(trim(first_name || ' ' || last_name)), $1) > 0
		OR strpos(lower(email), $1) > 0
		OR strpos(lower(company), $1) > 0
		OR (length(trim(first_name || ' ' || last_name)) >= 3 AND strpos($1, lower(trim(first_name || ' ' || last_name))) > 0)
		OR (length(email) >= 3 AND strpos($1, lower(email)) > 0)
		OR (length(company) >= 3 AND strpos($1, lower(company)) > 0)
	)`
	pgSearchMatch = `(
		strpos(lower(trim(first_name || ' ' || last_name)), $1) > 0
		OR strpos(lower(email), $1) > 0
		OR strpos(lower(company), $1) > 0
	)`
)

func (s *Postgres) FindContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	row := s.pool.QueryRow(ctx, pgContactSelect+`
		WHERE email <> '' AND lower(email) = lower($1)
		ORDER BY created_at LIMIT 1`, email)
	return scanContact(row)
}

func (s *Postgres) FindLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	row := s.pool.QueryRow(ctx, pgLeadSelect+`
		WHERE email <> '' AND lower(email) = lower($1)
		ORDER BY created_at LIMIT 1`, email)
	return scanLead(row)
}

func (s *Postgres) FindContactByText(ctx context.Context, text string) (*models.Contact, error) {
	row := s.pool.QueryRow(ctx, pgContactSelect+`
		WHERE `+pgTextMatch+` ORDER BY created_at LIMIT 1`, strings.ToLower(text))
	return scanContact(row)
}

func (s *Postgres) FindLeadByText(ctx context.Context, text string) (*models.Lead, error) {
	row := s.pool.QueryRow(ctx, pgLeadSelect+`
		WHERE `+pgTextMatch+` ORDER BY created_at LIMIT 1`, strings.ToLower(text))
	return scanLead(row)
}

func (s *Postgres) InsertContact(ctx context.Context, c *models.Contact) error {
	addr, err := encodeAddress(c.PrimaryAddress)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO contacts
			(id, first_name, last_name, email, phone, company, title,
			 primary_address, external_id, status, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Title,
		addr, c.ExternalID, string(c.Status), c.CreatedAt, c.ModifiedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *Postgres) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := s.pool.QueryRow(ctx, pgContactSelect+` WHERE id = $1`, id)
	return scanContact(row)
}

func (s *Postgres) UpdateContact(ctx context.Context, c *models.Contact) error {
	addr, err := encodeAddress(c.PrimaryAddress)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE contacts
		SET first_name = $1, last_name = $2, email = $3, phone = $4, company = $5,
		    title = $6, primary_address = $7, external_id = $8, status = $9, modified_at = $10
		WHERE id = $11
	`, c.FirstName, c.LastName, c.Email, c.Phone, c.Company,
		c.Title, addr, c.ExternalID, string(c.Status), c.ModifiedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

func (s *Postgres) InsertLead(ctx context.Context, l *models.Lead) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads
			(id, first_name, last_name, email, phone, company, title,
			 estimated_value, currency, expected_close_date, source, description,
			 lead_status, converted_contact_id, external_id, status, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, l.ID, l.FirstName, l.LastName, l.Email, l.Phone, l.Company, l.Title,
		l.EstimatedValue, l.Currency, l.ExpectedCloseDate, string(l.Source), l.Description,
		string(l.LeadStatus), l.ConvertedContactID, l.ExternalID, string(l.Status), l.CreatedAt, l.ModifiedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *Postgres) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	row := s.pool.QueryRow(ctx, pgLeadSelect+` WHERE id = $1`, id)
	return scanLead(row)
}

func (s *Postgres) UpdateLead(ctx context.Context, l *models.Lead) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE leads
		SET first_name = $1, last_name = $2, email = $3, phone = $4, company = $5,
		    title = $6, estimated_value = $7, currency = $8, expected_close_date = $9,
		    source = $10, description = $11, lead_status = $12, converted_contact_id = $13,
		    external_id = $14, status = $15, modified_at = $16
		WHERE id = $17
	`, l.FirstName, l.LastName, l.Email, l.Phone, l.Company,
		l.Title, l.EstimatedValue, l.Currency, l.ExpectedCloseDate,
		string(l.Source), l.Description, string(l.LeadStatus), l.ConvertedContactID,
		l.ExternalID, string(l.Status), l.ModifiedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (s *Postgres) InsertActivity(ctx context.Context, a *models.Activity) error {
	refs, err := encodeRefs(a.RelatedEntities)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin activity insert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO activities
			(id, type, subject, description, start_at, end_at, priority, status,
			 location, contact_id, related_entities, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, string(a.Type), a.Subject, a.Description, a.StartAt, a.EndAt,
		string(a.Priority), string(a.Status), a.Location, a.ContactID, refs,
		a.CreatedAt, a.ModifiedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	for _, ref := range a.RelatedEntities {
		if _, err := tx.Exec(ctx, `
			INSERT INTO activity_entities (activity_id, entity_id, entity_type)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, a.ID, strings.ToLower(ref.ID), string(ref.Type)); err != nil {
			return fmt.Errorf("insert activity entity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit activity insert: %w", err)
	}
	return nil
}

func (s *Postgres) ListActivities(ctx context.Context, entityID string) ([]models.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, type, subject, description, start_at, end_at, priority, status,
		       location, contact_id, related_entities, created_at, modified_at
		FROM activities
		WHERE lower(contact_id) = lower($1)
		   OR id IN (SELECT activity_id FROM activity_entities WHERE entity_id = lower($1))
		ORDER BY created_at DESC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var (
			a                     models.Activity
			typ, priority, status string
			refs                  []byte
		)
		if err := rows.Scan(
			&a.ID, &typ, &a.Subject, &a.Description, &a.StartAt, &a.EndAt, &priority, &status,
			&a.Location, &a.ContactID, &refs, &a.CreatedAt, &a.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = models.ActivityType(typ)
		a.Priority = models.Priority(priority)
		a.Status = models.ActivityStatus(status)
		if a.RelatedEntities, err = decodeRefs(refs); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) Search(ctx context.Context, query string, types []models.EntityType) ([]models.CrmRecord, error) {
	var (
		where string
		args  []any
	)
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE ` + pgSearchMatch
		args = []any{strings.ToLower(q)}
	}
	out := []models.CrmRecord{}

	if wantsType(types, models.EntityContact) {
		rows, err := s.pool.Query(ctx, pgContactSelect+where+` ORDER BY created_at`, args...)
		if err != nil {
			return nil, fmt.Errorf("search contacts: %w", err)
		}
		for rows.Next() {
			c, err := scanContact(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, *c.Record())
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("search contacts: %w", err)
		}
	}

	if wantsType(types, models.EntityLead) {
		rows, err := s.pool.Query(ctx, pgLeadSelect+where+` ORDER BY created_at`, args...)
		if err != nil {
			return nil, fmt.Errorf("search leads: %w", err)
		}
		for rows.Next() {
			l, err := scanLead(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, *l.Record())
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("search leads: %w", err)
		}
	}

	return out, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// scanContact scans a single contact row; no row yields (nil, nil).
func scanContact(row pgx.Row) (*models.Contact, error) {
	var (
		c      models.Contact
		addr   []byte
		status string
	)
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company, &c.Title,
		&addr, &c.ExternalID, &status, &c.CreatedAt, &c.ModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	c.Status = models.EntityStatus(status)
	if c.PrimaryAddress, err = decodeAddress(addr); err != nil {
		return nil, err
	}
	return &c, nil
}

// scanLead scans a single lead row; no row yields (nil, nil).
func scanLead(row pgx.Row) (*models.Lead, error) {
	var (
		l                          models.Lead
		source, leadStatus, status string
	)
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Company, &l.Title,
		&l.EstimatedValue, &l.Currency, &l.ExpectedCloseDate, &source, &l.Description,
		&leadStatus, &l.ConvertedContactID, &l.ExternalID, &status, &l.CreatedAt, &l.ModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	l.Source = models.LeadSource(source)
	l.LeadStatus = models.LeadStatus(leadStatus)
	l.Status = models.EntityStatus(status)
	return &l, nil
}
