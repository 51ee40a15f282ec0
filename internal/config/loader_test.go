package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp/models\nmax_quota_bytes: 1024\nbatch_size: 8\npreload:\n  - m1\n  - m2\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp/models" || cfg.MaxQuotaBytes != 1024 || cfg.BatchSize != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Preload) != 2 || cfg.Preload[0] != "m1" {
		t.Fatalf("preload not parsed: %v", cfg.Preload)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","max_quota_bytes":42,"default_model":"m2","residency_limit":3}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.MaxQuotaBytes != 42 || cfg.DefaultModel != "m2" || cfg.ResidencyLimit != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nmax_quota_bytes=9\nbatch_window_ms=250\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.MaxQuotaBytes != 9 || cfg.BatchWindowMS != 250 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.ini", "addr=:1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on unsupported extension")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error on missing file")
	}
	bad := writeTempFile(t, d, "bad.json", "{not json")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected error on malformed json")
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	if cfg.Addr != DefaultAddr || cfg.BatchSize != DefaultBatchSize || cfg.PoolSize != DefaultPoolSize {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	// Explicit values survive.
	cfg2 := Config{BatchSize: 16}
	cfg2.Normalize()
	if cfg2.BatchSize != 16 {
		t.Fatalf("normalize overwrote explicit value: %d", cfg2.BatchSize)
	}
}
