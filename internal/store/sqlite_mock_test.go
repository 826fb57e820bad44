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
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/crmbridge/internal/models"
)

func newMockSQLite(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS contacts").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLite(context.Background(), sqlx.NewDb(db, "sqlite3"))
	require.NoError(t, err)
	return s, mock
}

func TestSQLite_QueryErrorIsWrapped(t *testing.T) {
	s, mock := newMockSQLite(t)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts")).WillReturnError(boom)

	got, err := s.FindContactByEmail(context.Background(), "alice@example.com")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_ActivityInsertRollsBack(t *testing.T) {
	s, mock := newMockSQLite(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activities").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT OR IGNORE INTO activity_entities").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err := s.InsertActivity(context.Background(), &models.Activity{
		ID:              "a1",
		Subject:         "Invoice Q3",
		RelatedEntities: []models.EntityReference{{ID: "c1", Type: models.EntityContact}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert activity entity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_SchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only database"))

	_, err = NewSQLite(context.Background(), sqlx.NewDb(db, "sqlite3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure sqlite schema")
}
