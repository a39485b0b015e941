package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/pkg/metrics"
)

const defaultQueryTimeout = 15 * time.Second

// Queries against the given schema. Ids are cast to text so integer and
// textual keys compare the same way after the join.
const (
	scoreEventsQuery = `SELECT CAST(id AS TEXT), CAST(issue_id AS TEXT), change_date, CAST(new_value AS TEXT)
FROM log
WHERE type = 'score'`
	organizationsQuery = `SELECT CAST(id AS TEXT), name FROM organization`
	issueTypesQuery    = `SELECT CAST(id AS TEXT), name FROM issue`
)

// SQLStore implements Source over database/sql.
type SQLStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewSQLStore creates a store reading from db.
func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:           db,
		queryTimeout: defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newValue is the JSON document stored in log.new_value for score rows.
type newValue struct {
	ParentID json.RawMessage `json:"parent_id"`
	Score    *float64        `json:"score"`
}

// FetchScoreEvents returns every log row of type "score".
func (s *SQLStore) FetchScoreEvents(ctx context.Context) ([]model.RawEvent, error) {
	const op = "fetch score events"
	var events []model.RawEvent
	err := s.query(ctx, "log", op, scoreEventsQuery, 4, func(rows *sql.Rows) error {
		var (
			id, payload sql.NullString
			issueID     sql.NullString
			changeDate  int64
		)
		if err := rows.Scan(&id, &issueID, &changeDate, &payload); err != nil {
			return err
		}
		if !payload.Valid {
			return fmt.Errorf("log row %s: new_value is null", id.String)
		}
		var nv newValue
		if err := json.Unmarshal([]byte(payload.String), &nv); err != nil {
			return fmt.Errorf("log row %s: new_value: %w", id.String, err)
		}
		if nv.Score == nil {
			return fmt.Errorf("log row %s: new_value has no score", id.String)
		}
		parentID, err := jsonID(nv.ParentID)
		if err != nil {
			return fmt.Errorf("log row %s: parent_id: %w", id.String, err)
		}
		events = append(events, model.RawEvent{
			ID:         id.String,
			ParentID:   parentID,
			IssueID:    issueID.String,
			ChangeDate: changeDate,
			Score:      *nv.Score,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FetchOrganizations returns organizations that have a name.
func (s *SQLStore) FetchOrganizations(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	err := s.query(ctx, "organization", "fetch organizations", organizationsQuery, 2, func(rows *sql.Rows) error {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		if name.Valid {
			orgs = append(orgs, model.Organization{ID: id.String, Name: name.String})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

// FetchIssueTypes returns issue types that have a name, in store order.
func (s *SQLStore) FetchIssueTypes(ctx context.Context) ([]model.IssueType, error) {
	var issues []model.IssueType
	err := s.query(ctx, "issue", "fetch issue types", issueTypesQuery, 2, func(rows *sql.Rows) error {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		if name.Valid {
			issues = append(issues, model.IssueType{ID: id.String, Name: name.String})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// query runs q under the store's timeout and hands each row to scan.
// Driver failures are classified; column count and scan failures are
// schema mismatches.
func (s *SQLStore) query(ctx context.Context, table, op, q string, columns int, scan func(*sql.Rows) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(table, float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordStoreError(table, errorKind(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return classify(op, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return classify(op, err)
	}
	if len(cols) != columns {
		return fmt.Errorf("%w: %s: got %d columns, want %d", ErrSchemaMismatch, op, len(cols), columns)
	}

	for rows.Next() {
		if err := scan(rows); err != nil {
			if ctx.Err() != nil {
				return classify(op, ctx.Err())
			}
			return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return classify(op, err)
	}
	return nil
}

// jsonID renders a JSON id (number or string) as text. A missing or null
// id yields "".
func jsonID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return n.String(), nil
	}
	// Integral floats such as 12.0 name the same row as 12.
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return n.String(), nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
