package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
document:
  backend: sqlite
  path: /srv/obras/obras.db
  key: servicios

firmantes:
  jefeServicio: Marta Ruiz

backup:
  schedule: "*/30 * * * *"
  dir: snapshots
  keep: 5
  s3:
    bucket: ayto-backups
    endpoint: http://minio:9000
    path_style: true

notify:
  discord:
    bot_token: abc
    channel: "998877"

dashboard:
  port: 8181
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Document.Backend != BackendSQLite {
		t.Errorf("Document.Backend = %q, want %q", cfg.Document.Backend, BackendSQLite)
	}
	if cfg.Document.Path != "/srv/obras/obras.db" {
		t.Errorf("Document.Path = %q, want %q", cfg.Document.Path, "/srv/obras/obras.db")
	}
	if cfg.Document.Key != "servicios" {
		t.Errorf("Document.Key = %q, want %q", cfg.Document.Key, "servicios")
	}
	if cfg.Firmantes["jefeServicio"] != "Marta Ruiz" {
		t.Errorf("Firmantes[jefeServicio] = %q, want %q", cfg.Firmantes["jefeServicio"], "Marta Ruiz")
	}
	if cfg.Backup.Schedule != "*/30 * * * *" {
		t.Errorf("Backup.Schedule = %q", cfg.Backup.Schedule)
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want 5", cfg.Backup.Keep)
	}
	if !cfg.Backup.S3.PathStyle {
		t.Error("Backup.S3.PathStyle = false, want true")
	}
	if cfg.Backup.S3.Prefix != "obras/" {
		t.Errorf("Backup.S3.Prefix = %q, want default %q", cfg.Backup.S3.Prefix, "obras/")
	}
	if !cfg.Notify.Discord.Enabled() {
		t.Error("Notify.Discord should be enabled")
	}
	if cfg.Notify.Slack.Enabled() {
		t.Error("Notify.Slack should be disabled")
	}
	if cfg.Dashboard.Port != 8181 {
		t.Errorf("Dashboard.Port = %d, want 8181", cfg.Dashboard.Port)
	}
}

func TestParse_Empty_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Document.Backend != BackendFile {
		t.Errorf("Document.Backend = %q, want %q (default)", cfg.Document.Backend, BackendFile)
	}
	if cfg.Document.Path != "obras.json" {
		t.Errorf("Document.Path = %q, want %q (default)", cfg.Document.Path, "obras.json")
	}
	if cfg.Document.Key != "default" {
		t.Errorf("Document.Key = %q, want %q (default)", cfg.Document.Key, "default")
	}
	if len(cfg.Firmantes) != len(DefaultFirmantes) {
		t.Errorf("len(Firmantes) = %d, want %d (default block)", len(cfg.Firmantes), len(DefaultFirmantes))
	}
	if cfg.Backup.Dir != "backups" || cfg.Backup.Keep != 10 {
		t.Errorf("Backup = %+v, want dir backups keep 10", cfg.Backup)
	}
	if cfg.Backup.S3.Prefix != "" {
		t.Errorf("Backup.S3.Prefix = %q, want empty without bucket", cfg.Backup.S3.Prefix)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d, want 8080 (default)", cfg.Dashboard.Port)
	}
}

func TestParse_SQLiteDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("document:\n  backend: sqlite\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document.Path != "obras.db" {
		t.Errorf("Document.Path = %q, want %q", cfg.Document.Path, "obras.db")
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("document:\n  backend: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document.Host != "127.0.0.1" {
		t.Errorf("Document.Host = %q, want default", cfg.Document.Host)
	}
	if cfg.Document.Port != 3306 {
		t.Errorf("Document.Port = %d, want 3306", cfg.Document.Port)
	}
	if cfg.Document.Database != "obras" {
		t.Errorf("Document.Database = %q, want obras", cfg.Document.Database)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("OBRAS_TEST_SLACK_TOKEN", "xoxb-from-env")
	yaml := `
notify:
  slack:
    bot_token: ${OBRAS_TEST_SLACK_TOKEN}
    channel: C1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Notify.Slack.BotToken != "xoxb-from-env" {
		t.Errorf("Slack.BotToken = %q, want value from env", cfg.Notify.Slack.BotToken)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad backend", "document:\n  backend: postgres\n", "document.backend"},
		{"negative keep", "backup:\n  keep: -1\n", "backup.keep"},
		{"endpoint without bucket", "backup:\n  s3:\n    endpoint: http://minio\n", "backup.s3.bucket"},
		{"slack without channel", "notify:\n  slack:\n    bot_token: x\n", "notify.slack.channel"},
		{"discord without channel", "notify:\n  discord:\n    bot_token: x\n", "notify.discord.channel"},
		{"port out of range", "dashboard:\n  port: 70000\n", "dashboard.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	_, err := Parse([]byte("document:\n  backend: x\nbackup:\n  keep: -2\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "document.backend") || !strings.Contains(err.Error(), "backup.keep") {
		t.Errorf("error = %q, want both problems reported", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("document: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obras.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document.Key != "servicios" {
		t.Errorf("Document.Key = %q, want servicios", cfg.Document.Key)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/obras.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

// --- Fixture-based tests using testdata/ files ---

func TestLoad_FullFixture(t *testing.T) {
	cfg, err := Load("testdata/valid_full.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document.Backend != BackendMySQL {
		t.Errorf("Document.Backend = %q, want mysql", cfg.Document.Backend)
	}
	if cfg.Document.Host != "10.0.0.5" || cfg.Document.Port != 3307 {
		t.Errorf("Document host/port = %s:%d, want 10.0.0.5:3307", cfg.Document.Host, cfg.Document.Port)
	}
	if cfg.Backup.Keep != 30 {
		t.Errorf("Backup.Keep = %d, want 30", cfg.Backup.Keep)
	}
	if cfg.Firmantes["directorObra"] != "Luis Gil" {
		t.Errorf("Firmantes[directorObra] = %q", cfg.Firmantes["directorObra"])
	}
}

func TestLoad_MinimalFixture(t *testing.T) {
	cfg, err := Load("testdata/valid_minimal.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document.Path != "datos/obras.json" {
		t.Errorf("Document.Path = %q", cfg.Document.Path)
	}
	if cfg.Document.Backend != BackendFile {
		t.Errorf("Document.Backend = %q, want default file", cfg.Document.Backend)
	}
}

func TestLoad_InvalidBackendFixture(t *testing.T) {
	if _, err := Load("testdata/invalid_backend.yaml"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_InvalidYAMLFixture(t *testing.T) {
	_, err := Load("testdata/invalid_yaml.yaml")
	if err == nil || !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestDefault_RoundTrips(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(default): %v", err)
	}
	if cfg.Document.Path != "obras.json" {
		t.Errorf("Document.Path = %q, want obras.json", cfg.Document.Path)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("OBRAS_TEST_FROM_DOTENV=hola\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OBRAS_TEST_FROM_DOTENV", "")
	os.Unsetenv("OBRAS_TEST_FROM_DOTENV")

	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("OBRAS_TEST_FROM_DOTENV"); got != "hola" {
		t.Errorf("OBRAS_TEST_FROM_DOTENV = %q, want %q", got, "hola")
	}
}
