package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestDump(t *testing.T) {
	db, mock := newMockDB(t)
	for _, table := range Tables {
		rows := sqlmock.NewRows([]string{"row_to_json"})
		if table == "users" {
			rows.AddRow([]byte(`{"id":"u1","email":"a@example.com"}`)).
				AddRow([]byte(`{"id":"u2","email":"b@example.com"}`))
		}
		mock.ExpectQuery(regexp.QuoteMeta("FROM " + table + " t")).WillReturnRows(rows)
	}

	var buf bytes.Buffer
	counts, err := Dump(context.Background(), db, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["users"])
	assert.Equal(t, 0, counts["orders"])

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first Line
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "users", first.Table)
	assert.JSONEq(t, `{"id":"u1","email":"a@example.com"}`, string(first.Row))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDumpStopsOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM users t").WillReturnError(errors.New("permission denied"))

	_, err := Dump(context.Background(), db, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump users")
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "byteshop_20250102_150405.jsonl", FileName(ts))
}
