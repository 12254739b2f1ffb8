package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: escalatesafe
  password: ${DB_PASSWORD}
  name: runs
jira:
  serverUrl: https://corp.atlassian.net
  projectKey: ESC
auth:
  apiKeys:
    acme: key-acme
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("password = %q, env expansion failed", cfg.Database.Password)
	}
	if cfg.Auth.APIKeys["acme"] != "key-acme" {
		t.Errorf("api keys = %v", cfg.Auth.APIKeys)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  host: localhost\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("default driver = %q", cfg.Database.Driver)
	}
	if cfg.RateLimit.Capacity != 60 || cfg.RateLimit.RefillRate != 1 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestDSNHelpers(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 3306
	cfg.Database.User = "app"
	cfg.Database.Password = "pw"
	cfg.Database.Name = "runs"

	if got := cfg.MySQLDSN(); got != "app:pw@tcp(db.internal:3306)/runs?parseTime=true&charset=utf8mb4&loc=UTC" {
		t.Errorf("mysql dsn = %q", got)
	}

	cfg.Database.Port = 5432
	want := "host=db.internal port=5432 user=app password=pw dbname=runs sslmode=disable"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("postgres dsn = %q", got)
	}
}
