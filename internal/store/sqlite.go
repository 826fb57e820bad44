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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/bcem/crmbridge/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS contacts (
    id              TEXT PRIMARY KEY,
    first_name      TEXT NOT NULL,
    last_name       TEXT NOT NULL,
    email           TEXT NOT NULL DEFAULT '',
    phone           TEXT NOT NULL DEFAULT '',
    company         TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    primary_address TEXT,
    external_id     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'Active',
    created_at      DATETIME NOT NULL,
    modified_at     DATETIME
);

CREATE TABLE IF NOT EXISTS leads (
    id                   TEXT PRIMARY KEY,
    first_name           TEXT NOT NULL,
    last_name            TEXT NOT NULL,
    email                TEXT NOT NULL DEFAULT '',
    phone                TEXT NOT NULL DEFAULT '',
    company              TEXT NOT NULL DEFAULT '',
    title                TEXT NOT NULL DEFAULT '',
    estimated_value      REAL NOT NULL DEFAULT 0,
    currency             TEXT NOT NULL DEFAULT '',
    expected_close_date  DATETIME,
    source               TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    lead_status          TEXT NOT NULL DEFAULT 'New',
    converted_contact_id TEXT NOT NULL DEFAULT '',
    external_id          TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'Active',
    created_at           DATETIME NOT NULL,
    modified_at          DATETIME
);

CREATE TABLE IF NOT EXISTS activities (
    id               TEXT PRIMARY KEY,
    type             TEXT NOT NULL,
    subject          TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    start_at         DATETIME,
    end_at           DATETIME,
    priority         TEXT NOT NULL DEFAULT 'Normal',
    status           TEXT NOT NULL DEFAULT 'NotStarted',
    location         TEXT NOT NULL DEFAULT '',
    contact_id       TEXT NOT NULL DEFAULT '',
    related_entities TEXT NOT NULL DEFAULT '[]',
    created_at       DATETIME NOT NULL,
    modified_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_entities (
    activity_id TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
    entity_id   TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (activity_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email));
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(lower(email));
CREATE INDEX IF NOT EXISTS idx_activity_entities_entity ON activity_entities(entity_id);
CREATE INDEX IF NOT EXISTS idx_activities_contact ON activities(contact_id);
`

const (
	contactColumns = `id, first_name, last_name, email, phone, company, title,
		primary_address, external_id, status, created_at, modified_at`
	leadColumns = `id, first_name, last_name, email, phone, company, title,
		estimated_value, currency, expected_close_date, source, description,
		lead_status, converted_contact_id, external_id, status, created_at, modified_at`
	activityColumns = `a.id, a.type, a.subject, a.description, a.start_at, a.end_at,
		a.priority, a.status, a.location, a.contact_id, a.related_entities,
		a.created_at, a.modified_at`

	// Bidirectional containment; every ? is bound to the folded text.
	sqliteTextMatch = `(
		instr(fold(trim(first_name || ' ' || last_name)), ?) > 0
		OR instr(fold(email), ?) > 0
		OR instr(fold(company), ?) > 0
		OR (length(trim(first_name || ' ' || last_name)) >= 3 AND instr(?, fold(trim(first_name || ' ' || last_name))) > 0)
		OR (length(email) >= 3 AND instr(?, fold(email)) > 0)
		OR (length(company) >= 3 AND instr(?, fold(company)) > 0)
	)`
	sqliteSearchMatch = `(
		instr(fold(trim(first_name || ' ' || last_name)), ?) > 0
		OR instr(fold(email), ?) > 0
		OR instr(fold(company), ?) > 0
	)`
)

// sqliteDriver is go-sqlite3 with a fold() function that lower-cases text
// the same way strings.ToLower does. SQLite's own lower() is ASCII-only.
const sqliteDriver = "sqlite3_crm"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

// SQLite is a Backend on an embedded SQLite database.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sqlx.ConnectContext(ctx, sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database and ensures the schema exists.
func NewSQLite(ctx context.Context, db *sqlx.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return s, nil
}

// contactRow adds the JSON-encoded address column to a Contact.
type contactRow struct {
	models.Contact
	Address sql.NullString `db:"primary_address"`
}

func (r *contactRow) toContact() (*models.Contact, error) {
	c := r.Contact
	if r.Address.Valid {
		addr, err := decodeAddress([]byte(r.Address.String))
		if err != nil {
			return nil, err
		}
		c.PrimaryAddress = addr
	}
	return &c, nil
}

type activityRow struct {
	ID              string       `db:"id"`
	Type            string       `db:"type"`
	Subject         string       `db:"subject"`
	Description     string       `db:"description"`
	StartAt         sql.NullTime `db:"start_at"`
	EndAt           sql.NullTime `db:"end_at"`
	Priority        string       `db:"priority"`
	Status          string       `db:"status"`
	Location        string       `db:"location"`
	ContactID       string       `db:"contact_id"`
	RelatedEntities string       `db:"related_entities"`
	CreatedAt       sql.NullTime `db:"created_at"`
	ModifiedAt      sql.NullTime `db:"modified_at"`
}

func (r *activityRow) toActivity() (models.Activity, error) {
	refs, err := decodeRefs([]byte(r.RelatedEntities))
	if err != nil {
		return models.Activity{}, err
	}
	a := models.Activity{
		ID:              r.ID,
		Type:            models.ActivityType(r.Type),
		Subject:         r.Subject,
		Description:     r.Description,
		Priority:        models.Priority(r.Priority),
		Status:          models.ActivityStatus(r.Status),
		RelatedEntities: refs,
		Location:        r.Location,
		ContactID:       r.ContactID,
		CreatedAt:       r.CreatedAt.Time,
		ModifiedAt:      r.ModifiedAt.Time,
	}
	if r.StartAt.Valid {
		t := r.StartAt.Time
		a.StartAt = &t
	}
	if r.EndAt.Valid {
		t := r.EndAt.Time
		a.EndAt = &t
	}
	return a, nil
}

func (s *SQLite) FindContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return s.getContact(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE email <> '' AND fold(email) = fold(?)
		ORDER BY created_at LIMIT 1`, email)
}

func (s *SQLite) FindLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	return s.getLead(ctx, `SELECT `+leadColumns+` FROM leads
		WHERE email <> '' AND fold(email) = fold(?)
		ORDER BY created_at LIMIT 1`, email)
}

func (s *SQLite) FindContactByText(ctx context.Context, text string) (*models.Contact, error) {
	return s.getContact(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE `+sqliteTextMatch+` ORDER BY created_at LIMIT 1`, textArgs(text, 6)...)
}

func (s *SQLite) FindLeadByText(ctx context.Context, text string) (*models.Lead, error) {
	return s.getLead(ctx, `SELECT `+leadColumns+` FROM leads
		WHERE `+sqliteTextMatch+` ORDER BY created_at LIMIT 1`, textArgs(text, 6)...)
}

func (s *SQLite) InsertContact(ctx context.Context, c *models.Contact) error {
	addr, err := encodeAddress(c.PrimaryAddress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Title,
		addr, c.ExternalID, c.Status, c.CreatedAt, c.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *SQLite) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	return s.getContact(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
}

func (s *SQLite) UpdateContact(ctx context.Context, c *models.Contact) error {
	addr, err := encodeAddress(c.PrimaryAddress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE contacts SET
			first_name = ?, last_name = ?, email = ?, phone = ?, company = ?,
			title = ?, primary_address = ?, external_id = ?, status = ?, modified_at = ?
		WHERE id = ?`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company,
		c.Title, addr, c.ExternalID, c.Status, c.ModifiedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

func (s *SQLite) InsertLead(ctx context.Context, l *models.Lead) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (:id, :first_name, :last_name, :email, :phone, :company, :title,
			:estimated_value, :currency, :expected_close_date, :source, :description,
			:lead_status, :converted_contact_id, :external_id, :status, :created_at, :modified_at)`, l)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *SQLite) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	return s.getLead(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
}

func (s *SQLite) UpdateLead(ctx context.Context, l *models.Lead) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE leads SET
			first_name = :first_name, last_name = :last_name, email = :email,
			phone = :phone, company = :company, title = :title,
			estimated_value = :estimated_value, currency = :currency,
			expected_close_date = :expected_close_date, source = :source,
			description = :description, lead_status = :lead_status,
			converted_contact_id = :converted_contact_id, external_id = :external_id,
			status = :status, modified_at = :modified_at
		WHERE id = :id`, l)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (s *SQLite) InsertActivity(ctx context.Context, a *models.Activity) error {
	refs, err := encodeRefs(a.RelatedEntities)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activities (id, type, subject, description, start_at, end_at,
			priority, status, location, contact_id, related_entities, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Subject, a.Description, a.StartAt, a.EndAt,
		a.Priority, a.Status, a.Location, a.ContactID, refs, a.CreatedAt, a.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	for _, ref := range a.RelatedEntities {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO activity_entities (activity_id, entity_id, entity_type)
			VALUES (?, ?, ?)`, a.ID, strings.ToLower(ref.ID), ref.Type); err != nil {
			return fmt.Errorf("insert activity entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity insert: %w", err)
	}
	return nil
}

func (s *SQLite) ListActivities(ctx context.Context, entityID string) ([]models.Activity, error) {
	var rows []activityRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+activityColumns+` FROM activities a
		WHERE lower(a.contact_id) = lower(?)
		   OR a.id IN (SELECT activity_id FROM activity_entities WHERE entity_id = lower(?))
		ORDER BY a.created_at DESC`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	out := make([]models.Activity, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toActivity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *SQLite) Search(ctx context.Context, query string, types []models.EntityType) ([]models.CrmRecord, error) {
	var (
		where string
		args  []any
	)
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE ` + sqliteSearchMatch
		args = textArgs(q, 3)
	}
	out := []models.CrmRecord{}

	if wantsType(types, models.EntityContact) {
		var rows []contactRow
		if err := s.db.SelectContext(ctx, &rows, `SELECT `+contactColumns+` FROM contacts`+where+` ORDER BY created_at`, args...); err != nil {
			return nil, fmt.Errorf("search contacts: %w", err)
		}
		for i := range rows {
			out = append(out, *rows[i].Contact.Record())
		}
	}

	if wantsType(types, models.EntityLead) {
		var leads []models.Lead
		if err := s.db.SelectContext(ctx, &leads, `SELECT `+leadColumns+` FROM leads`+where+` ORDER BY created_at`, args...); err != nil {
			return nil, fmt.Errorf("search leads: %w", err)
		}
		for i := range leads {
			out = append(out, *leads[i].Record())
		}
	}

	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) getContact(ctx context.Context, query string, args ...any) (*models.Contact, error) {
	var row contactRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return row.toContact()
}

func (s *SQLite) getLead(ctx context.Context, query string, args ...any) (*models.Lead, error) {
	var l models.Lead
	err := s.db.GetContext(ctx, &l, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return &l, nil
}

func textArgs(text string, n int) []any {
	text = strings.ToLower(text)
	args := make([]any, n)
	for i := range args {
		args[i] = text
	}
	return args
}
