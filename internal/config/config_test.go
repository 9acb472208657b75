package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/hashmove", "/srv/data")
	original.MigrationID = "abc_123"
	original.Ignore = []string{"*.part", "cache/"}
	original.BanURL = "http://varnish:6081"
	original.Retry.Delay = Duration{250 * time.Millisecond}
	original.Metrics.PushgatewayURL = "http://pushgateway:9091"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DataDir != "/srv/data" {
		t.Errorf("DataDir = %q, want %q", got.DataDir, "/srv/data")
	}
	if got.MigrationID != "abc_123" {
		t.Errorf("MigrationID = %q, want %q", got.MigrationID, "abc_123")
	}
	if !got.DryRun {
		t.Error("DryRun = false, want true")
	}
	if got.SearchWindow.Duration != time.Hour {
		t.Errorf("SearchWindow = %v, want 1h", got.SearchWindow)
	}
	if got.Retry.Delay.Duration != 250*time.Millisecond {
		t.Errorf("Retry.Delay = %v, want 250ms", got.Retry.Delay)
	}
	if got.Database.Port != 5432 || got.Database.Name != "kemonodb" {
		t.Errorf("Database = %+v", got.Database)
	}
	if got.Journal.Type != "sqlite" {
		t.Errorf("Journal.Type = %q, want sqlite", got.Journal.Type)
	}
	if len(got.Ignore) != 2 {
		t.Fatalf("len(Ignore) = %d, want 2", len(got.Ignore))
	}
	if got.Metrics.PushgatewayURL != original.Metrics.PushgatewayURL {
		t.Errorf("Metrics.PushgatewayURL = %q", got.Metrics.PushgatewayURL)
	}
}

func TestManager_Read(t *testing.T) {
	t.Run("durations as strings", func(t *testing.T) {
		cfg, err := (&Manager{}).Read(strings.NewReader(`
data_dir = "/srv/data"
migration_id = "m1"
search_window = "90m"

[retry]
attempts = 3
delay = "2s"
`))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if cfg.SearchWindow.Duration != 90*time.Minute {
			t.Errorf("SearchWindow = %v, want 90m", cfg.SearchWindow)
		}
		if cfg.Retry.Attempts != 3 || cfg.Retry.Delay.Duration != 2*time.Second {
			t.Errorf("Retry = %+v", cfg.Retry)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := (&Manager{}).Read(strings.NewReader("data_dir = \"/srv\"\nretries = 3\n"))
		if err == nil {
			t.Error("Read() expected error for unknown key, got nil")
		}
	})

	t.Run("rejects bad duration", func(t *testing.T) {
		_, err := (&Manager{}).Read(strings.NewReader("search_window = \"soon\"\n"))
		if err == nil {
			t.Error("Read() expected error for bad duration, got nil")
		}
	})
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/base", "/srv/data")

	if cfg.LogDir != filepath.Join("/base", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Journal.Path != filepath.Join("/base", "journal.db") {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if !cfg.DryRun {
		t.Error("new configs must start in dry-run mode")
	}
	if !migrationIDPattern.MatchString(cfg.MigrationID) {
		t.Errorf("MigrationID %q is not table-safe", cfg.MigrationID)
	}
	if other := NewConfig("/base", "/srv/data"); other.MigrationID == cfg.MigrationID {
		t.Error("migration ids should be unique")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return NewConfig("/base", "/srv/data")
	}

	t.Run("applies defaults", func(t *testing.T) {
		cfg := valid()
		cfg.ThumbDir = ""
		cfg.SearchWindow = Duration{}
		cfg.Retry = RetryConfig{}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if cfg.ThumbDir != filepath.Join("/srv/data", "thumbnail") {
			t.Errorf("ThumbDir = %q", cfg.ThumbDir)
		}
		if cfg.SearchWindow.Duration != DefaultSearchWindow {
			t.Errorf("SearchWindow = %v", cfg.SearchWindow)
		}
		if cfg.Retry.Attempts != DefaultRetryAttempts || cfg.Retry.Delay.Duration != DefaultRetryDelay {
			t.Errorf("Retry = %+v", cfg.Retry)
		}
		if cfg.Metrics.Job != DefaultMetricsJob {
			t.Errorf("Metrics.Job = %q", cfg.Metrics.Job)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing data_dir", func(c *Config) { c.DataDir = "" }},
		{"relative data_dir", func(c *Config) { c.DataDir = "data" }},
		{"migration id with dash", func(c *Config) { c.MigrationID = "a-b" }},
		{"migration id with quote", func(c *Config) { c.MigrationID = `x"; drop table files; --` }},
		{"empty migration id", func(c *Config) { c.MigrationID = "" }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "redis" }},
		{"sqlite journal without path", func(c *Config) { c.Journal.Path = "" }},
		{"relative ban url", func(c *Config) { c.BanURL = "varnish/ban" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := NewConfig("/base", "/srv/data")
	env := map[string]string{
		"HASHMOVE_DB_PASSWORD": "s3cret",
		"HASHMOVE_BAN_URL":     "http://cache",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Database.Password != "s3cret" {
		t.Errorf("Password = %q", cfg.Database.Password)
	}
	if cfg.BanURL != "http://cache" {
		t.Errorf("BanURL = %q", cfg.BanURL)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "with password and sslmode",
			cfg:  DatabaseConfig{Host: "db", Port: 5432, Name: "kemonodb", User: "kemono", Password: "p@ss word", SSLMode: "disable"},
			want: "postgres://kemono:p%40ss%20word@db:5432/kemonodb?sslmode=disable",
		},
		{
			name: "without password",
			cfg:  DatabaseConfig{Host: "localhost", Port: 6543, Name: "x", User: "u"},
			want: "postgres://u@localhost:6543/x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "hashmove.toml")
		cfg := NewConfig("/base", "/srv/data")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.MigrationID != cfg.MigrationID {
			t.Errorf("MigrationID = %q, want %q", got.MigrationID, cfg.MigrationID)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hashmove.toml")
		if err := os.WriteFile(path, []byte("existing"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := Init(path, NewConfig("/base", "/srv/data")); err == nil {
			t.Error("Init() expected error for existing file, got nil")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("ReadFromFile() expected error, got nil")
	}
}
