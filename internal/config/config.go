package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultSearchWindow  = time.Hour
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = time.Second
	DefaultLegacyDomain  = "https://kemono.party"
	DefaultMetricsJob    = "hashmove"
)

var migrationIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Config represents the main configuration for hashmove.
type Config struct {
	DataDir         string   `toml:"data_dir"`
	ThumbDir        string   `toml:"thumb_dir,omitempty"` // defaults to data_dir/thumbnail
	LogDir          string   `toml:"log_dir"`
	MigrationID     string   `toml:"migration_id"`
	DryRun          bool     `toml:"dry_run"`
	FixExtensions   bool     `toml:"fix_extensions"`
	FixJPE          bool     `toml:"fix_jpe"`
	IgnoreTempFiles bool     `toml:"ignore_temp_files"`
	Ignore          []string `toml:"ignore,omitempty"`
	LegacyDomain    string   `toml:"legacy_domain"`
	SearchWindow    Duration `toml:"search_window"`
	BanURL          string   `toml:"ban_url,omitempty"` // empty disables the ban hook

	Database DatabaseConfig `toml:"database"`
	Journal  JournalConfig  `toml:"journal"`
	Retry    RetryConfig    `toml:"retry"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// DatabaseConfig holds the connection settings of the archive database.
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password,omitempty"`
	SSLMode  string `toml:"sslmode"`
}

// JournalConfig represents configuration for the local run journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// RetryConfig bounds per-unit retries.
type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Delay    Duration `toml:"delay"`
}

// MetricsConfig configures the optional Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url,omitempty"`
	Job            string `toml:"job,omitempty"`
}

// Duration is a time.Duration written as a string such as "1h" or "250ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// DSN returns a PostgreSQL connection URL.
func (d DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// NewConfig creates a new Config rooted at baseDir with a fresh migration id.
// New configs start in dry-run mode.
func NewConfig(baseDir, dataDir string) *Config {
	return &Config{
		DataDir:         dataDir,
		LogDir:          filepath.Join(baseDir, "log"),
		MigrationID:     NewMigrationID(),
		DryRun:          true,
		FixExtensions:   true,
		FixJPE:          true,
		IgnoreTempFiles: true,
		LegacyDomain:    DefaultLegacyDomain,
		SearchWindow:    Duration{DefaultSearchWindow},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "kemonodb",
			User:    "kemono",
			SSLMode: "disable",
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "journal.db"),
		},
		Retry: RetryConfig{
			Attempts: DefaultRetryAttempts,
			Delay:    Duration{DefaultRetryDelay},
		},
	}
}

// NewMigrationID returns a random id that is safe to embed in a table name.
func NewMigrationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "_")
}

// Validate applies defaults and checks that the config is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	} else if !filepath.IsAbs(c.DataDir) {
		errs = append(errs, fmt.Errorf("data_dir must be absolute: %s", c.DataDir))
	}
	if c.ThumbDir == "" && c.DataDir != "" {
		c.ThumbDir = filepath.Join(c.DataDir, "thumbnail")
	}
	if !migrationIDPattern.MatchString(c.MigrationID) {
		errs = append(errs, fmt.Errorf("migration_id must match [a-z0-9_]+, got %q", c.MigrationID))
	}
	if c.SearchWindow.Duration <= 0 {
		c.SearchWindow.Duration = DefaultSearchWindow
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.Delay.Duration <= 0 {
		c.Retry.Delay.Duration = DefaultRetryDelay
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}
	if c.BanURL != "" {
		if u, err := url.Parse(c.BanURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("ban_url is not an absolute URL: %q", c.BanURL))
		}
	}
	switch c.Journal.Type {
	case "memory":
	case "sqlite":
		if c.Journal.Path == "" {
			errs = append(errs, errors.New("journal.path required for sqlite journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal type: %q", c.Journal.Type))
	}

	return errors.Join(errs...)
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("HASHMOVE_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := getenv("HASHMOVE_BAN_URL"); v != "" {
		c.BanURL = v
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the database password.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
