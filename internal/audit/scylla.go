// Package audit persists audit entries to ScyllaDB, partitioned by UTC day.
package audit

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"byteshop/internal/models"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

//go:embed schema.cql
var schema string

const (
	writeTimeout   = 5 * time.Second
	maxLookbackDay = 30
	DefaultLimit   = 50
	MaxLimit       = 500
)

const insertQuery = `INSERT INTO audit_logs (
	day, timestamp, id, user_id, user_email, action, resource, resource_id,
	old_value, new_value, ip_address, user_agent, success, error_msg
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectQuery = `SELECT timestamp, id, user_id, user_email, action, resource, resource_id,
	old_value, new_value, ip_address, user_agent, success, error_msg
	FROM audit_logs WHERE day = ? LIMIT ?`

type Filter struct {
	Action string
	UserID string
	Limit  int
}

// ScyllaLogger writes entries asynchronously; Close waits for pending writes.
type ScyllaLogger struct {
	session *gocql.Session
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

func NewScyllaLogger(session *gocql.Session, log logrus.FieldLogger) *ScyllaLogger {
	return &ScyllaLogger{session: session, log: log}
}

// EnsureSchema creates the audit table in the session keyspace.
func EnsureSchema(session *gocql.Session) error {
	for _, stmt := range statements(schema) {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
	}
	return nil
}

func statements(src string) []string {
	var out []string
	for _, s := range strings.Split(src, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Log records entry in the background. Failures are logged, never returned.
func (l *ScyllaLogger) Log(ctx context.Context, entry models.AuditLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	id := gocql.UUIDFromTime(entry.Timestamp)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()

		err := l.session.Query(insertQuery,
			dayOf(entry.Timestamp), entry.Timestamp, id, entry.UserID, entry.UserEmail,
			entry.Action, entry.Resource, entry.ResourceID, entry.OldValue, entry.NewValue,
			entry.IPAddress, entry.UserAgent, entry.Success, entry.ErrorMsg,
		).WithContext(wctx).Exec()
		if err != nil {
			l.log.WithError(err).WithField("action", entry.Action).Error("❌ audit log write failed")
		}
	}()
}

// List returns the most recent entries matching f, newest first, looking
// back at most 30 days.
func (l *ScyllaLogger) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	out := make([]models.AuditLog, 0, limit)
	day := dayOf(time.Now())
	for i := 0; i < maxLookbackDay && len(out) < limit; i++ {
		iter := l.session.Query(selectQuery, day, MaxLimit).WithContext(ctx).Iter()
		var (
			entry models.AuditLog
			id    gocql.UUID
		)
		for iter.Scan(&entry.Timestamp, &id, &entry.UserID, &entry.UserEmail, &entry.Action,
			&entry.Resource, &entry.ResourceID, &entry.OldValue, &entry.NewValue,
			&entry.IPAddress, &entry.UserAgent, &entry.Success, &entry.ErrorMsg) {
			entry.ID = id.String()
			if matches(entry, f) {
				out = append(out, entry)
				if len(out) == limit {
					break
				}
			}
			entry = models.AuditLog{}
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("list audit logs: %w", err)
		}
		day = day.AddDate(0, 0, -1)
	}
	return out, nil
}

func matches(e models.AuditLog, f Filter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	return true
}

// Close waits for in-flight writes.
func (l *ScyllaLogger) Close() {
	l.wg.Wait()
}
