package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/secondvote/trends/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		noDotEnv := config.WithDotEnv("")

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("SECONDVOTE_ADDR", ":8080")
			t.Setenv("SECONDVOTE_DATABASE_DRIVER", "sqlite")
			t.Setenv("SECONDVOTE_DATABASE_URL", "file:trends.db")
			t.Setenv("SECONDVOTE_QUERY_TIMEOUT_MS", "2500")
			t.Setenv("SECONDVOTE_MAX_SESSIONS", "12")

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DatabaseDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "file:trends.db")
				convey.So(cfg.QueryTimeoutMS, convey.ShouldEqual, 2500)
				convey.So(cfg.MaxSessions, convey.ShouldEqual, 12)
				convey.So(cfg.SweepIntervalSeconds, convey.ShouldEqual, 60)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			clearConfigEnvVars(t)
			path := writeFile(t, "config.yaml", `
addr: ":9090"
log_format: json
max_sessions: 50
session_idle_ttl_seconds: 120
`)
			t.Setenv("SECONDVOTE_CONFIG", path)
			t.Setenv("SECONDVOTE_MAX_SESSIONS", "75")

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")              // From file
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")          // From file
				convey.So(cfg.SessionIdleTTLSeconds, convey.ShouldEqual, 120) // From file
				convey.So(cfg.MaxSessions, convey.ShouldEqual, 75)            // Overridden by env
				convey.So(cfg.QueryTimeoutMS, convey.ShouldEqual, 15_000)     // From defaults
			})
		})

		convey.Convey("When a .env file is present", func() {
			clearConfigEnvVars(t)
			dotEnv := writeFile(t, ".env", "SECONDVOTE_DATABASE_URL=postgres://trends@localhost/trends\nSECONDVOTE_ADDR=:7000\n")
			t.Setenv("SECONDVOTE_ADDR", ":7100")

			cfg, err := config.Load(ctx, config.WithDotEnv(dotEnv))
			t.Cleanup(func() { _ = os.Unsetenv("SECONDVOTE_DATABASE_URL") })

			convey.Convey("Then it fills unset variables but does not override set ones", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://trends@localhost/trends")
				convey.So(cfg.Addr, convey.ShouldEqual, ":7100")
			})
		})

		convey.Convey("When the .env file is missing", func() {
			clearConfigEnvVars(t)

			_, err := config.Load(ctx, config.WithDotEnv(filepath.Join(t.TempDir(), "absent.env")))

			convey.Convey("Then it is skipped", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("SECONDVOTE_CONFIG", writeFile(t, "bad.yaml", `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars(t)
			t.Setenv("SECONDVOTE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			clearConfigEnvVars(t)
			t.Setenv("SECONDVOTE_ADDR", "")

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("SECONDVOTE_MAX_SESSIONS", "lots")

			cfg, err := config.Load(ctx, noDotEnv)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// clearConfigEnvVars unsets every SECONDVOTE_ variable for the rest of the test.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}
