package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/secondvote/trends/internal/adapters/repository"
	"github.com/secondvote/trends/internal/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLStore_Fetch(t *testing.T) {
	Convey("Given a seeded store", t, func() {
		db := testutil.SetupTestDB(t)
		testutil.SeedScenario(t, db)
		store := repository.NewSQLStore(db, repository.WithQueryTimeout(5*time.Second))
		ctx := context.Background()

		Convey("When score events are fetched", func() {
			events, err := store.FetchScoreEvents(ctx)

			Convey("Then only score rows come back, decoded from new_value", func() {
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 7)
				So(events[0].ID, ShouldEqual, "1")
				So(events[0].ParentID, ShouldEqual, "1")
				So(events[0].IssueID, ShouldEqual, "10")
				So(events[0].Score, ShouldEqual, 2)
				So(events[0].ChangeDate, ShouldEqual, testutil.Millis(2023, time.February, 14))
			})
		})

		Convey("When organizations and issue types are fetched", func() {
			orgs, err1 := store.FetchOrganizations(ctx)
			issues, err2 := store.FetchIssueTypes(ctx)

			Convey("Then the reference tables are returned", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(len(orgs), ShouldEqual, 2)
				So(orgs[0].ID, ShouldEqual, "1")
				So(orgs[0].Name, ShouldEqual, "Acme")
				So(len(issues), ShouldEqual, 2)
				So(issues[0].Name, ShouldEqual, "Climate")
				So(issues[1].Name, ShouldEqual, "Housing")
			})
		})
	})

	Convey("Given score rows with a null issue and a string parent id", t, func() {
		db := testutil.SetupTestDB(t)
		testutil.AddLogRow(t, db, 1, "score", nil, 0, `{"parent_id": "7", "score": 1.5}`)
		testutil.AddLogRow(t, db, 2, "score", 3, 0, `{"score": 2}`)
		store := repository.NewSQLStore(db)

		Convey("Then ids are normalized and missing values stay empty", func() {
			events, err := store.FetchScoreEvents(context.Background())
			So(err, ShouldBeNil)
			So(len(events), ShouldEqual, 2)
			So(events[0].ParentID, ShouldEqual, "7")
			So(events[0].IssueID, ShouldEqual, "")
			So(events[1].ParentID, ShouldEqual, "")
			So(events[1].IssueID, ShouldEqual, "3")
		})
	})
}

func TestSQLStore_SchemaMismatch(t *testing.T) {
	Convey("Given a store missing the issue table", t, func() {
		db := testutil.SetupTestDB(t)
		_, err := db.Exec(`DROP TABLE issue`)
		So(err, ShouldBeNil)
		store := repository.NewSQLStore(db)

		Convey("Then fetching issue types is a schema mismatch", func() {
			_, err := store.FetchIssueTypes(context.Background())
			So(errors.Is(err, repository.ErrSchemaMismatch), ShouldBeTrue)
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeFalse)
		})
	})

	Convey("Given a log table without change_date", t, func() {
		db := testutil.SetupTestDB(t)
		_, err := db.Exec(`DROP TABLE log; CREATE TABLE log (id INTEGER PRIMARY KEY, type TEXT, issue_id INTEGER, new_value TEXT)`)
		So(err, ShouldBeNil)
		store := repository.NewSQLStore(db)

		Convey("Then fetching score events is a schema mismatch", func() {
			_, err := store.FetchScoreEvents(context.Background())
			So(errors.Is(err, repository.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a score row whose new_value is not JSON", t, func() {
		db := testutil.SetupTestDB(t)
		testutil.AddLogRow(t, db, 1, "score", 1, 0, `not json`)
		store := repository.NewSQLStore(db)

		Convey("Then fetching score events is a schema mismatch", func() {
			_, err := store.FetchScoreEvents(context.Background())
			So(errors.Is(err, repository.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a score row without a score", t, func() {
		db := testutil.SetupTestDB(t)
		testutil.AddLogRow(t, db, 1, "score", 1, 0, `{"parent_id": 1}`)
		store := repository.NewSQLStore(db)

		Convey("Then fetching score events is a schema mismatch", func() {
			_, err := store.FetchScoreEvents(context.Background())
			So(errors.Is(err, repository.ErrSchemaMismatch), ShouldBeTrue)
		})
	})
}

func TestSQLStore_Unavailable(t *testing.T) {
	Convey("Given a store whose connection pool is closed", t, func() {
		db := testutil.SetupTestDB(t)
		So(db.Close(), ShouldBeNil)
		store := repository.NewSQLStore(db)

		Convey("Then every fetch reports the source as unavailable", func() {
			_, err := store.FetchOrganizations(context.Background())
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		db := testutil.SetupTestDB(t)
		store := repository.NewSQLStore(db)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then the fetch reports the source as unavailable", func() {
			_, err := store.FetchScoreEvents(ctx)
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given database configurations", t, func() {
		Convey("When the driver is unknown", func() {
			_, err := repository.Open(repository.DBConfig{Driver: "mysql", DSN: "x"})

			Convey("Then Open refuses it", func() {
				So(errors.Is(err, repository.ErrUnsupportedDriver), ShouldBeTrue)
			})
		})

		Convey("When the url is empty", func() {
			_, err := repository.Open(repository.DBConfig{Driver: repository.DriverPgx})

			Convey("Then the source is unavailable", func() {
				So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When a SQLite file is configured", func() {
			db, err := repository.Open(repository.DBConfig{
				Driver:       repository.DriverSQLite,
				DSN:          testutil.DBPath(t),
				MaxOpenConns: 2,
			})
			So(err, ShouldBeNil)
			defer db.Close()

			Convey("Then it answers a ping", func() {
				So(repository.Ping(context.Background(), db, time.Second), ShouldBeNil)
			})
		})
	})
}
