package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/secondvote/trends/internal/config"
	"github.com/secondvote/trends/internal/testutil"
	"github.com/secondvote/trends/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then serve and probe are registered", func() {
			names := []string{}
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "probe")
		})

		convey.Convey("Then the serve flags are available on the root", func() {
			for _, name := range []string{"addr", "log-level", "database-url", "open"} {
				convey.So(root.Flags().Lookup(name), convey.ShouldNotBeNil)
			}
		})
	})
}

func TestLoadConfig(t *testing.T) {
	convey.Convey("Given configuration in the environment", t, func() {
		t.Setenv(config.EnvConfigFile, "")
		t.Setenv("SECONDVOTE_ADDR", ":8181")
		t.Setenv("SECONDVOTE_LOG_LEVEL", "debug")
		ctx := context.Background()

		convey.Convey("When no flag is set", func() {
			cfg, err := loadConfig(ctx, newServeCmd(), serveFlags{})

			convey.Convey("Then the environment wins over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8181")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When flags are set", func() {
			cmd := newServeCmd()
			convey.So(cmd.Flags().Set("addr", ":7070"), convey.ShouldBeNil)
			convey.So(cmd.Flags().Set("database-url", "file:x.db"), convey.ShouldBeNil)
			cfg, err := loadConfig(ctx, cmd, serveFlags{addr: ":7070", databaseURL: "file:x.db"})

			convey.Convey("Then the flags win over the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "file:x.db")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When a flag empties the address", func() {
			cmd := newServeCmd()
			convey.So(cmd.Flags().Set("addr", ""), convey.ShouldBeNil)
			_, err := loadConfig(ctx, cmd, serveFlags{})

			convey.Convey("Then validation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When no database url is set", func() {
			svc, db, err := buildService(ctx, cfg, logger.Get())

			convey.Convey("Then the service runs without a store", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(db, convey.ShouldBeNil)
				id, err := svc.NewSession(ctx)
				convey.So(err, convey.ShouldBeNil)
				_, err = svc.Reload(ctx, id)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the database url points at a SQLite store", func() {
			path := testutil.DBPath(t)
			testutil.SeedScenario(t, testutil.SetupTestDBAt(t, path))
			cfg.DatabaseDriver = "sqlite"
			cfg.DatabaseURL = path
			svc, db, err := buildService(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = db.Close() }()

			convey.Convey("Then a session can reload from it", func() {
				id, err := svc.NewSession(ctx)
				convey.So(err, convey.ShouldBeNil)
				choices, err := svc.Reload(ctx, id)
				convey.So(err, convey.ShouldBeNil)
				convey.So(choices.Organizations, convey.ShouldResemble, []string{"Acme", "Beta"})
			})
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.DatabaseDriver = "oracle"
			cfg.DatabaseURL = "x"
			_, _, err := buildService(ctx, cfg, logger.Get())

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the full mux", t, func() {
		svc, _, err := buildService(context.Background(), config.New(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		mux := newMux(context.Background(), svc)

		tests := []struct {
			method string
			target string
			status int
		}{
			{http.MethodGet, "/healthz", http.StatusOK},
			{http.MethodGet, "/", http.StatusFound},
			{http.MethodGet, "/api-docs", http.StatusOK},
			{http.MethodGet, "/openapi.yaml", http.StatusOK},
			{http.MethodGet, "/stats", http.StatusOK},
			{http.MethodGet, "/metrics", http.StatusOK},
			{http.MethodPost, "/sessions", http.StatusCreated},
			{http.MethodGet, "/sessions/missing/histogram", http.StatusNotFound},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, tt.status)
		}
	})
}

func TestRunProbe(t *testing.T) {
	convey.Convey("Given a server over a seeded store", t, func() {
		path := testutil.DBPath(t)
		testutil.SeedScenario(t, testutil.SetupTestDBAt(t, path))
		cfg := config.New()
		cfg.DatabaseDriver = "sqlite"
		cfg.DatabaseURL = path
		svc, db, err := buildService(context.Background(), cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = db.Close() }()
		srv := httptest.NewServer(newMux(context.Background(), svc))
		defer srv.Close()

		convey.Convey("Then the probe passes", func() {
			cmd := newProbeCmd()
			cmd.SetArgs([]string{"--url", srv.URL, "--workers", "2"})
			convey.So(cmd.Execute(), convey.ShouldBeNil)
		})
	})
}

func TestDocsURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":9080", "http://localhost:9080/api-docs"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080/api-docs"},
	}
	for _, tt := range tests {
		if got := docsURL(tt.addr); got != tt.want {
			t.Errorf("docsURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Updating system metrics does not panic", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
