package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestReadGroupedJSON(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "RateLimitPerMinute": 30},
		"database": {"Driver": "postgres", "DBName": "forum"},
		"redis": {"Disabled": true},
		"forum": {"ModeratorRoles": ["steward"], "CacheTTLSeconds": 5}
	}`)

	c, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.AppPort != "9000" || c.JWTSecret != "from-file" || c.RateLimitPerMinute != 30 {
		t.Fatalf("app section = %+v", c)
	}
	if c.DBDriver != "postgres" || c.DBPort != "5432" || c.DBName != "forum" {
		t.Fatalf("database section = %s %s %s", c.DBDriver, c.DBPort, c.DBName)
	}
	if !c.RedisDisabled || c.CacheTTLSeconds != 5 || c.DirectoryCacheSize != 1024 {
		t.Fatalf("redis/forum = %+v", c)
	}
	if !c.IsModerator("Steward") || c.IsModerator("moderator") || c.IsModerator("") {
		t.Fatalf("moderator roles = %v", c.ModeratorRoles)
	}
}

func TestReadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"app": {"JWTSecret": "from-file", "AppPort": "9000"}}`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_PORT", "7000")
	t.Setenv("MODERATOR_ROLES", "mod, owner ,")
	t.Setenv("DIRECTORY_CACHE_SIZE", "16")

	c, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.JWTSecret != "from-env" || c.AppPort != "7000" || c.DirectoryCacheSize != 16 {
		t.Fatalf("env overrides not applied: %+v", c)
	}
	if strings.Join(c.ModeratorRoles, "|") != "mod|owner" {
		t.Fatalf("moderator roles = %v", c.ModeratorRoles)
	}
	if c.DBDriver != "mysql" || c.DBPort != "3306" || c.LogLevel != "info" {
		t.Fatalf("defaults missing: %+v", c)
	}
}

func TestReadErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.json")

	t.Setenv("JWT_SECRET", "")
	if _, err := Read(missing); err == nil {
		t.Fatalf("missing secret must fail")
	}

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	if _, err := Read(missing); err == nil || !strings.Contains(err.Error(), "RATE_LIMIT_PER_MINUTE") {
		t.Fatalf("bad integer = %v", err)
	}

	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("DB_DRIVER", "sqlite")
	if _, err := Read(missing); err == nil {
		t.Fatalf("unknown driver must fail")
	}

	t.Setenv("DB_DRIVER", "")
	if _, err := Read(writeConfig(t, `{not json`)); err == nil {
		t.Fatalf("invalid json must fail")
	}
}

func TestDSN(t *testing.T) {
	c := AppConfig{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "1", DBName: "d"}
	if got := DSN(c); got != "u:p@tcp(h:1)/d?charset=utf8mb4&parseTime=True&loc=Local" {
		t.Fatalf("mysql DSN = %s", got)
	}
	c.DBDriver = "postgres"
	if got := DSN(c); !strings.HasPrefix(got, "host=h port=1 user=u password=p dbname=d") {
		t.Fatalf("postgres DSN = %s", got)
	}
	c.DatabaseURI = "postgres://x"
	if DSN(c) != "postgres://x" {
		t.Fatalf("DatabaseURI must win")
	}
	if _, err := dialectorFor(AppConfig{DBDriver: "oracle"}); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestToGormLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":  logger.Info,
		"info":   logger.Warn,
		"":       logger.Warn,
		"error":  logger.Error,
		"silent": logger.Silent,
		"bogus":  logger.Warn,
	}
	for in, want := range cases {
		if got := toGormLogLevel(in); got != want {
			t.Errorf("toGormLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
