// Package config loads the sync configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/reconcile"
	"etf-flow-lab/internal/source"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Default values applied when fields are absent from the config file.
const (
	DefaultTimezone      = "America/Chicago"
	DefaultBackend       = BackendFilesystem
	DefaultFilesystemDir = "data"
	DefaultJob           = "etf_flow_sync"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendPostgres   = "postgres"
)

// Config is the top-level configuration of one dataset sync.
type Config struct {
	// Dataset names the historical table.
	Dataset string `yaml:"dataset"`

	// Timezone decides which calendar day "today" is.
	Timezone string `yaml:"timezone"`

	// Series lists the tracked series in column order for new tables.
	Series []SeriesConfig `yaml:"series"`

	Store         StoreConfig         `yaml:"store"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Source        SourceConfig        `yaml:"source"`
	Notify        NotifyConfig        `yaml:"notify"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// SeriesConfig describes where one series comes from.
// Either URL+Path (JSON over HTTP) or a static Value.
type SeriesConfig struct {
	Key   string   `yaml:"key"`
	URL   string   `yaml:"url"`
	Path  string   `yaml:"path"`
	Value *float64 `yaml:"value"`
}

// StoreConfig selects the table store.
type StoreConfig struct {
	// Backend is one of: memory | filesystem | s3 | postgres.
	Backend string `yaml:"backend"`

	// Key is the object key for bucket backends. Defaults to "<dataset>.csv".
	Key string `yaml:"key"`

	Filesystem FilesystemConfig `yaml:"filesystem"`
	S3         S3Config         `yaml:"s3"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// FilesystemConfig roots a local bucket.
type FilesystemConfig struct {
	Dir string `yaml:"dir"`
}

// S3Config holds bucket coordinates. Credentials normally come from the environment.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Insecure  bool   `yaml:"insecure"`
}

// PostgresConfig holds the snapshot database DSN.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// WindowConfig is one trailing comparison window.
type WindowConfig struct {
	Name   string `yaml:"name"`
	Offset int    `yaml:"offset"`
}

// MetricsConfig controls derived metrics.
type MetricsConfig struct {
	Windows       []WindowConfig `yaml:"windows"`
	Report        []string       `yaml:"report"`
	MovingAverage int            `yaml:"moving_average"`
	// Backfill is the value given to cells of series added after a row was written.
	Backfill string `yaml:"backfill"`
	// ClickhouseDSN enables exporting flow metrics when set.
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// SourceConfig controls fetching.
type SourceConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
}

// NotifyConfig controls the change set output.
type NotifyConfig struct {
	// Output is "-" for stdout or a file path.
	Output    string `yaml:"output"`
	Title     string `yaml:"title"`
	Unit      string `yaml:"unit"`
	NoChanges string `yaml:"no_changes"`
}

// ObservabilityConfig controls metric pushing.
type ObservabilityConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path and applies process environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML, applies defaults and env overrides, then validates.
// lookup is usually os.LookupEnv.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if lookup != nil {
		applyEnv(cfg, lookup)
	}
	if cfg.Store.Key == "" && cfg.Dataset != "" {
		cfg.Store.Key = cfg.Dataset + ".csv"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	windows := make([]WindowConfig, 0, 3)
	for _, w := range domain.DefaultWindows() {
		windows = append(windows, WindowConfig{Name: w.Name, Offset: w.Offset})
	}

	return &Config{
		Timezone: DefaultTimezone,
		Store: StoreConfig{
			Backend:    DefaultBackend,
			Filesystem: FilesystemConfig{Dir: DefaultFilesystemDir},
		},
		Metrics: MetricsConfig{
			Windows:       windows,
			Report:        []string{domain.WindowWoW.Name, domain.WindowMoM.Name},
			MovingAverage: metrics.DefaultMovingAverage,
			Backfill:      reconcile.BackfillUnavailable.String(),
		},
		Source: SourceConfig{
			Timeout:           source.DefaultTimeout,
			Concurrency:       source.DefaultConcurrency,
			RequestsPerSecond: source.DefaultRequestsPerSecond,
			MaxRetries:        source.DefaultMaxRetries,
		},
		Notify:        NotifyConfig{Output: "-"},
		Observability: ObservabilityConfig{Job: DefaultJob},
		Log:           LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"AWS_ACCESS_KEY_ID":     func(c *Config, v string) { c.Store.S3.AccessKey = v },
	"AWS_SECRET_ACCESS_KEY": func(c *Config, v string) { c.Store.S3.SecretKey = v },
	"AWS_REGION":            func(c *Config, v string) { c.Store.S3.Region = v },
	"S3_BUCKET":             func(c *Config, v string) { c.Store.S3.Bucket = v },
	"POSTGRES_DSN":          func(c *Config, v string) { c.Store.Postgres.DSN = v },
	"CLICKHOUSE_DSN":        func(c *Config, v string) { c.Metrics.ClickhouseDSN = v },
	"PUSHGATEWAY_URL":       func(c *Config, v string) { c.Observability.PushgatewayURL = v },
	"LOG_LEVEL":             func(c *Config, v string) { c.Log.Level = v },
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for name, set := range envOverrides {
		if v, ok := lookup(name); ok && v != "" {
			set(cfg, v)
		}
	}
}

// Validate checks required fields and structural constraints.
// Every problem is reported, each wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Dataset == "" {
		add("dataset is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("timezone %q: %v", c.Timezone, err)
	}

	if len(c.Series) == 0 {
		add("at least one series is required")
	}
	seen := make(map[string]struct{}, len(c.Series))
	for i, s := range c.Series {
		key := strings.TrimSpace(s.Key)
		switch {
		case key == "":
			add("series[%d]: key is required", i)
		case key == domain.DateColumn:
			add("series[%d]: key %q is reserved", i, key)
		}
		if _, dup := seen[key]; dup {
			add("series[%d]: duplicate key %q", i, key)
		}
		seen[key] = struct{}{}
		if s.Value == nil && (s.URL == "" || s.Path == "") {
			add("series[%d] %q: url and path, or value, are required", i, key)
		}
		if s.Value != nil && (math.IsNaN(*s.Value) || math.IsInf(*s.Value, 0)) {
			add("series[%d] %q: value must be a finite number", i, key)
		}
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFilesystem:
		if c.Store.Filesystem.Dir == "" {
			add("store.filesystem.dir is required")
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			add("store.s3.bucket is required")
		}
		if c.Store.S3.Endpoint == "" && c.Store.S3.Region == "" {
			add("store.s3.region or store.s3.endpoint is required")
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			add("store.postgres.dsn is required")
		}
	default:
		add("store.backend: unknown backend %q", c.Store.Backend)
	}

	names := make(map[string]struct{}, len(c.Metrics.Windows))
	for i, w := range c.Metrics.Windows {
		if w.Name == "" {
			add("metrics.windows[%d]: name is required", i)
		}
		if w.Offset < 1 {
			add("metrics.windows[%d] %q: offset must be at least 1", i, w.Name)
		}
		if _, dup := names[w.Name]; dup {
			add("metrics.windows[%d]: duplicate name %q", i, w.Name)
		}
		names[w.Name] = struct{}{}
	}
	for _, r := range c.Metrics.Report {
		if _, ok := names[r]; !ok {
			add("metrics.report: unknown window %q", r)
		}
	}
	if c.Metrics.MovingAverage < 0 {
		add("metrics.moving_average must not be negative")
	}
	if _, err := reconcile.ParseBackfillPolicy(c.Metrics.Backfill); err != nil {
		add("metrics.backfill: %v", err)
	}

	if c.Source.Timeout < 0 {
		add("source.timeout must not be negative")
	}
	if c.Source.Concurrency < 1 {
		add("source.concurrency must be at least 1")
	}
	if c.Source.MaxRetries < 0 {
		add("source.max_retries must not be negative")
	}

	if c.Notify.Output == "" {
		add("notify.output is required")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add("log.format: unknown format %q", c.Log.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SeriesKeys returns the series keys in configured order.
func (c *Config) SeriesKeys() []string {
	keys := make([]string, 0, len(c.Series))
	for _, s := range c.Series {
		keys = append(keys, strings.TrimSpace(s.Key))
	}
	return keys
}

// Windows returns the configured metric windows.
func (c *Config) Windows() []domain.Window {
	out := make([]domain.Window, 0, len(c.Metrics.Windows))
	for _, w := range c.Metrics.Windows {
		out = append(out, domain.Window{Name: w.Name, Offset: w.Offset})
	}
	return out
}

// ReportWindows returns the windows appended to change sets, in report order.
func (c *Config) ReportWindows() []domain.Window {
	byName := make(map[string]domain.Window, len(c.Metrics.Windows))
	for _, w := range c.Windows() {
		byName[w.Name] = w
	}
	out := make([]domain.Window, 0, len(c.Metrics.Report))
	for _, r := range c.Metrics.Report {
		if w, ok := byName[r]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Backfill returns the configured backfill policy.
func (c *Config) Backfill() reconcile.BackfillPolicy {
	p, err := reconcile.ParseBackfillPolicy(c.Metrics.Backfill)
	if err != nil {
		return reconcile.BackfillUnavailable
	}
	return p
}
