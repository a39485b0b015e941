// Package testutil builds throwaway stores for tests.
package testutil

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// Schema mirrors the production tables the loader reads.
const Schema = `
CREATE TABLE organization (
    id INTEGER PRIMARY KEY,
    name TEXT
);

CREATE TABLE issue (
    id INTEGER PRIMARY KEY,
    name TEXT
);

CREATE TABLE log (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    issue_id INTEGER,
    change_date INTEGER NOT NULL,
    new_value TEXT
);
`

// DBPath returns a fresh SQLite file path inside the test's temp dir.
func DBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.db")
}

// SetupTestDB creates a fresh SQLite store with the full schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return SetupTestDBAt(t, DBPath(t))
}

// SetupTestDBAt creates the schema in the SQLite file at path.
func SetupTestDBAt(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

// Millis returns the epoch milliseconds of midnight UTC on the given day.
func Millis(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

// AddOrganization inserts an organization.
func AddOrganization(t *testing.T, db *sql.DB, id int, name string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO organization (id, name) VALUES (?, ?)`, id, name); err != nil {
		t.Fatalf("Failed to create test organization: %v", err)
	}
}

// AddIssue inserts an issue type.
func AddIssue(t *testing.T, db *sql.DB, id int, name string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO issue (id, name) VALUES (?, ?)`, id, name); err != nil {
		t.Fatalf("Failed to create test issue: %v", err)
	}
}

// ScoreEvent describes one "score" log row. A zero IssueID stores NULL.
type ScoreEvent struct {
	ID         int
	ParentID   int
	IssueID    int
	ChangeDate int64
	Score      float64
}

// AddScoreEvent inserts a "score" row with a JSON new_value.
func AddScoreEvent(t *testing.T, db *sql.DB, ev ScoreEvent) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"parent_id": ev.ParentID, "score": ev.Score})
	if err != nil {
		t.Fatalf("Failed to encode new_value: %v", err)
	}
	var issueID any
	if ev.IssueID != 0 {
		issueID = ev.IssueID
	}
	AddLogRow(t, db, ev.ID, "score", issueID, ev.ChangeDate, string(payload))
}

// AddLogRow inserts a raw log row.
func AddLogRow(t *testing.T, db *sql.DB, id int, typ string, issueID any, changeDate int64, newValue string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO log (id, type, issue_id, change_date, new_value)
		VALUES (?, ?, ?, ?, ?)
	`, id, typ, issueID, changeDate, newValue)
	if err != nil {
		t.Fatalf("Failed to create test log row: %v", err)
	}
}

// SeedScenario loads a small two-organization dataset used across tests:
//
//	Acme  Climate 2023-Q1: 2, 2     Housing 2023-Q1: 8
//	Acme  Climate 2023-Q2: 8
//	Beta  Housing 2023-Q1: 4
//	orphan (no organization) Climate 2023-Q1: 5
//	unknown issue id 99 for Acme 2023-Q1: 7 (dropped by the join)
func SeedScenario(t *testing.T, db *sql.DB) {
	t.Helper()
	AddOrganization(t, db, 1, "Acme")
	AddOrganization(t, db, 2, "Beta")
	AddIssue(t, db, 10, "Climate")
	AddIssue(t, db, 11, "Housing")

	q1 := Millis(2023, time.February, 14)
	q2 := Millis(2023, time.May, 2)
	for _, ev := range []ScoreEvent{
		{ID: 1, ParentID: 1, IssueID: 10, ChangeDate: q1, Score: 2},
		{ID: 2, ParentID: 1, IssueID: 10, ChangeDate: q1, Score: 2},
		{ID: 3, ParentID: 1, IssueID: 11, ChangeDate: q1, Score: 8},
		{ID: 4, ParentID: 1, IssueID: 10, ChangeDate: q2, Score: 8},
		{ID: 5, ParentID: 2, IssueID: 11, ChangeDate: q1, Score: 4},
		{ID: 6, ParentID: 42, IssueID: 10, ChangeDate: q1, Score: 5},
		{ID: 7, ParentID: 1, IssueID: 99, ChangeDate: q1, Score: 7},
	} {
		AddScoreEvent(t, db, ev)
	}
	// Non-score rows are ignored by the loader.
	AddLogRow(t, db, 100, "comment", 10, q1, `{"parent_id": 1, "text": "hi"}`)
}
