package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rookery/internal/schedule"
)

// Config is the application's configuration model. It captures the store
// location, scheduling policy, collector wiring, and batch behavior.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Collector CollectorConfig `yaml:"collector"`
	Batch     BatchConfig     `yaml:"batch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Debug     bool            `yaml:"debug"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
	// Rows per bulk statement during merge writes
	ChunkSize int `yaml:"chunkSize"`
}

type ScheduleConfig struct {
	// Operational window: runs are only scheduled between these local hours
	WindowStartHour int    `yaml:"windowStartHour"`
	WindowEndHour   int    `yaml:"windowEndHour"`
	Timezone        string `yaml:"timezone"`
	// Entities sampled per batch cycle
	SampleSize int `yaml:"sampleSize"`
	// Running tasks older than this are reported as stale
	StaleAfterHours int `yaml:"staleAfterHours"`
	// Cron expression driving the daemon loop
	DaemonCron string `yaml:"daemonCron"`
}

type CollectorConfig struct {
	// Directory of JSONL exports for the replay collector
	SourceDir string  `yaml:"sourceDir"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
	// Hard wall-clock ceiling per task, minutes
	TaskCeilingMinutes int `yaml:"taskCeilingMinutes"`
	DefaultMaxCount    int `yaml:"defaultMaxCount"`
}

type BatchConfig struct {
	ContinueOnError bool `yaml:"continueOnError"`
}

type MetricsConfig struct {
	// If empty, read from env METRICS_ADDR
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{DBPath: "./rookery.db", ChunkSize: 200},
		Schedule: ScheduleConfig{
			WindowStartHour: 8,
			WindowEndHour:   24,
			Timezone:        "UTC",
			SampleSize:      10,
			StaleAfterHours: 6,
			DaemonCron:      "0 * * * *",
		},
		Collector: CollectorConfig{
			SourceDir:          "./exports",
			RPS:                1.0,
			Burst:              2,
			TaskCeilingMinutes: 20,
			DefaultMaxCount:    500,
		},
		Batch:   BatchConfig{ContinueOnError: true},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("ROOKERY_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("ROOKERY_SOURCE_DIR"); v != "" {
		c.Collector.SourceDir = v
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Window builds the operational scheduling window, falling back to UTC when
// the configured timezone does not resolve.
func (c Config) Window() schedule.Window {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return schedule.Window{Start: c.Schedule.WindowStartHour, End: c.Schedule.WindowEndHour, Loc: loc}
}

// TaskCeiling is the per-task wall-clock budget.
func (c Config) TaskCeiling() time.Duration {
	m := c.Collector.TaskCeilingMinutes
	if m <= 0 {
		m = 20
	}
	return time.Duration(m) * time.Minute
}

// Validate rejects configurations the scheduler cannot honor.
func (c Config) Validate() error {
	s := c.Schedule
	if s.WindowStartHour < 0 || s.WindowStartHour > 23 {
		return fmt.Errorf("windowStartHour %d out of range", s.WindowStartHour)
	}
	if s.WindowEndHour < 1 || s.WindowEndHour > 24 {
		return fmt.Errorf("windowEndHour %d out of range", s.WindowEndHour)
	}
	if s.WindowEndHour <= s.WindowStartHour {
		return errors.New("operational window is empty")
	}
	if s.SampleSize < 0 {
		return errors.New("sampleSize must be >= 0")
	}
	return nil
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
