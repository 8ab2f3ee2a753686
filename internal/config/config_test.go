package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storelabs/storelabs/internal/errors"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Generator.TotalEvents != 4000 || cfg.Generator.Users != 100 || cfg.Generator.Products != 250 {
		t.Errorf("unexpected generator defaults: %+v", cfg.Generator.Config)
	}
	if cfg.Cassandra.Keyspace != "quickkart_keyspace" {
		t.Errorf("keyspace = %q", cfg.Cassandra.Keyspace)
	}
}

func TestResolve_Paths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/labs"
	cfg.Resolve()

	want := map[string]string{
		"storage": filepath.Join("/tmp/labs", "storage"),
		"sqlite":  filepath.Join("/tmp/labs", "events.db"),
		"output":  filepath.Join("/tmp/labs", "events.csv"),
		"results": filepath.Join("/tmp/labs", "query_results.csv"),
	}
	got := map[string]string{
		"storage": cfg.Storage.Path,
		"sqlite":  cfg.SQLite.Path,
		"output":  cfg.Generator.Output,
		"results": cfg.University.ResultsFile,
	}
	for k := range want {
		if got[k] != want[k] {
			t.Errorf("%s path = %q, want %q", k, got[k], want[k])
		}
	}

	cfg = DefaultConfig()
	cfg.Generator.Output = "/abs/events.csv"
	cfg.Resolve()
	if cfg.Generator.Output != "/abs/events.csv" {
		t.Errorf("absolute output should be kept, got %q", cfg.Generator.Output)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad generator", func(c *Config) { c.Generator.TotalEvents = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad storage type", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"minio without endpoint", func(c *Config) {
			c.Storage.Type = "minio"
			c.Storage.Minio.Bucket = "lms"
		}},
		{"no cassandra hosts", func(c *Config) { c.Cassandra.Hosts = nil }},
		{"zero replication", func(c *Config) { c.Cassandra.ReplicationFactor = 0 }},
		{"zero scale", func(c *Config) { c.University.Scale = 0 }},
		{"zero runs", func(c *Config) { c.University.Runs = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if errors.GetCode(err) != errors.CodeInvalidConfiguration {
				t.Errorf("expected INVALID_CONFIGURATION, got %v", err)
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.yaml")
	content := `
data_dir: /var/labs
generator:
  total_events: 50
  users: 5
  products: 10
  seed: 42
  window: 48h
  close_exhausted_sessions: true
  weights:
    view: 0.5
    add_to_cart: 0.3
    purchase: 0.1
    logout: 0.1
logging:
  level: debug
  format: json
storage:
  type: s3
  s3:
    bucket: hasaan-lms-lab2
    region: ap-south-1
cassandra:
  hosts: [10.0.0.1, 10.0.0.2]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.DataDir != "/var/labs" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	g := cfg.Generator
	if g.TotalEvents != 50 || g.Users != 5 || g.Products != 10 || g.Seed == nil || *g.Seed != 42 {
		t.Errorf("generator not loaded: %+v", g)
	}
	if g.Window != 48*time.Hour || !g.CloseExhaustedSessions {
		t.Errorf("window/close not loaded: %v %v", g.Window, g.CloseExhaustedSessions)
	}
	if g.Weights.AddToCart != 0.3 {
		t.Errorf("weights not loaded: %+v", g.Weights)
	}
	// Unset fields keep their defaults.
	if g.MaxActions != 15 || len(g.Cities) != 5 {
		t.Errorf("defaults lost: max_actions=%d cities=%v", g.MaxActions, g.Cities)
	}
	if cfg.Logging.Format != "json" || cfg.Storage.S3.Bucket != "hasaan-lms-lab2" {
		t.Errorf("sections not loaded: %+v %+v", cfg.Logging, cfg.Storage)
	}
	if len(cfg.Cassandra.Hosts) != 2 {
		t.Errorf("hosts = %v", cfg.Cassandra.Hosts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.json")
	content := `{"generator": {"total_events": 10, "seed": 7}, "redis": {"addr": "cache:6380"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Generator.TotalEvents != 10 || cfg.Generator.Seed == nil || *cfg.Generator.Seed != 7 {
		t.Errorf("generator not loaded: %+v", cfg.Generator)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORELABS_GENERATOR_TOTAL_EVENTS", "123")
	t.Setenv("STORELABS_GENERATOR_SEED", "99")
	t.Setenv("STORELABS_GENERATOR_COMPRESS", "true")
	t.Setenv("STORELABS_POSTGRES_PORT", "5433")
	t.Setenv("STORELABS_CASSANDRA_HOSTS", "c1,c2,c3")
	t.Setenv("STORELABS_STORAGE_TYPE", "minio")
	t.Setenv("STORELABS_MINIO_SECURE", "1")
	t.Setenv("STORELABS_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Generator.TotalEvents != 123 || cfg.Generator.Seed == nil || *cfg.Generator.Seed != 99 || !cfg.Generator.Compress {
		t.Errorf("generator env not applied: %+v", cfg.Generator)
	}
	if cfg.Postgres.Port != 5433 {
		t.Errorf("postgres port = %d", cfg.Postgres.Port)
	}
	if len(cfg.Cassandra.Hosts) != 3 || cfg.Cassandra.Hosts[2] != "c3" {
		t.Errorf("cassandra hosts = %v", cfg.Cassandra.Hosts)
	}
	if cfg.Storage.Type != "minio" || !cfg.Storage.Minio.Secure {
		t.Errorf("storage env not applied: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "STORELABS_REDIS_ADDR=redis.internal:6379\nSTORELABS_REDIS_PASSWORD=s3cret\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("STORELABS_REDIS_ADDR", "")
	os.Unsetenv("STORELABS_REDIS_ADDR")
	t.Setenv("STORELABS_REDIS_PASSWORD", "from-shell")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "from-shell" {
		t.Errorf("existing variables should win, got %q", cfg.Redis.Password)
	}
}

func TestDSNs(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: 5432, User: "postgres", Password: "p@ss word", Database: "university_db", SSLMode: "disable"}
	if got, want := pg.DSN(), "postgres://postgres:p%40ss%20word@db:5432/university_db?sslmode=disable"; got != want {
		t.Errorf("postgres DSN = %q, want %q", got, want)
	}

	my := MySQLConfig{Host: "localhost", Port: 3307, User: "root", Password: "hasaan", Database: "quickkart_db"}
	if got, want := my.DSN(), "root:hasaan@tcp(localhost:3307)/quickkart_db?parseTime=true&loc=UTC"; got != want {
		t.Errorf("mysql DSN = %q, want %q", got, want)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "labs")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.Storage.Path} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
}

func TestEffectiveSeed(t *testing.T) {
	now := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	var g GeneratorConfig
	if got := g.EffectiveSeed(now); got != now.UnixNano() {
		t.Errorf("unset seed = %d, want time-based %d", got, now.UnixNano())
	}

	zero := int64(0)
	g.Seed = &zero
	if got := g.EffectiveSeed(now); got != 0 {
		t.Errorf("explicit zero seed = %d, want 0", got)
	}

	path := filepath.Join(t.TempDir(), "zero.yaml")
	if err := os.WriteFile(path, []byte("generator:\n  seed: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Generator.Seed == nil || cfg.Generator.EffectiveSeed(now) != 0 {
		t.Errorf("seed 0 from file not kept: %v", cfg.Generator.Seed)
	}
}
