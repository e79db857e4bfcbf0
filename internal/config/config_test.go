package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: photoevents
  user: app
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Face.Model != "Facenet" {
		t.Errorf("face model = %s, want default Facenet", cfg.Face.Model)
	}
	if cfg.Face.EncodeTimeout != 5*time.Minute {
		t.Errorf("encode timeout = %s, want 5m", cfg.Face.EncodeTimeout)
	}
	if cfg.Face.MatchThreshold != 0.7 {
		t.Errorf("match threshold = %v, want 0.7", cfg.Face.MatchThreshold)
	}
	if cfg.Face.SearchLimit != 10 || cfg.Face.CandidateLimit != 50 {
		t.Errorf("search limits = %d/%d, want 10/50", cfg.Face.SearchLimit, cfg.Face.CandidateLimit)
	}
	if cfg.Upload.MaxFileSize != 50*1024*1024 {
		t.Errorf("max file size = %d, want 50MB", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.MaxDimension != 8000 || cfg.Upload.MaxDensity != 600 {
		t.Errorf("limits = %d/%d, want 8000/600", cfg.Upload.MaxDimension, cfg.Upload.MaxDensity)
	}
	if cfg.Upload.OptimizeWidth != 1920 || cfg.Upload.OptimizeHeight != 1080 {
		t.Errorf("optimize bounds = %dx%d, want 1920x1080",
			cfg.Upload.OptimizeWidth, cfg.Upload.OptimizeHeight)
	}
	if cfg.Worker.PendingTTL != 24*time.Hour {
		t.Errorf("pending TTL = %s, want 24h", cfg.Worker.PendingTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
face:
  model: ArcFace
  match_threshold: 0.85
  encode_timeout: 2m
upload:
  jpeg_quality: 75
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Face.Model != "ArcFace" {
		t.Errorf("face model = %s, want ArcFace", cfg.Face.Model)
	}
	if cfg.Face.MatchThreshold != 0.85 {
		t.Errorf("match threshold = %v, want 0.85", cfg.Face.MatchThreshold)
	}
	if cfg.Face.EncodeTimeout != 2*time.Minute {
		t.Errorf("encode timeout = %s, want 2m", cfg.Face.EncodeTimeout)
	}
	if cfg.Upload.JPEGQuality != 75 {
		t.Errorf("jpeg quality = %d, want 75", cfg.Upload.JPEGQuality)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PE_SERVER_PORT", "7070")
	t.Setenv("PE_DB_HOST", "db.internal")
	t.Setenv("PE_FACE_MODEL", "Dlib")
	t.Setenv("PE_MATCH_THRESHOLD", "0.9")

	path := writeConfig(t, `
server:
  port: 8080
database:
  host: localhost
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("server port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("db host = %s, want env override", cfg.Database.Host)
	}
	if cfg.Face.Model != "Dlib" {
		t.Errorf("face model = %s, want env override Dlib", cfg.Face.Model)
	}
	if cfg.Face.MatchThreshold != 0.9 {
		t.Errorf("match threshold = %v, want env override 0.9", cfg.Face.MatchThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "pe", User: "u", Password: "p"}
	want := "postgres://u:p@db:5433/pe?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
}
