package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Google     GoogleConfig     `yaml:"google"`
	Sources    SourcesConfig    `yaml:"sources"`
	Queue      QueueConfig      `yaml:"queue"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type CacheConfig struct {
	ResultTTL time.Duration `yaml:"result_ttl"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
	// LockWait is the pause before a contended caller falls back to a
	// cached result or proceeds anyway. A heuristic, not load-bearing.
	LockWait time.Duration `yaml:"lock_wait"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

type SourcesConfig struct {
	Ads       SourceConfig `yaml:"ads"`
	Analytics SourceConfig `yaml:"analytics"`
	Commerce  SourceConfig `yaml:"commerce"`
}

type SourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Credential string `yaml:"credential"`
	SheetName  string `yaml:"sheet_name"`
	Timezone   string `yaml:"timezone"`
	RateRPS    int    `yaml:"rate_rps"`
}

type QueueConfig struct {
	Workers     int    `yaml:"workers"`
	Buffer      int    `yaml:"buffer"`
	JournalPath string `yaml:"journal_path"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Cadence  string `yaml:"cadence"`
	Timezone string `yaml:"timezone"`
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; env vars referenced in yaml still expand without it.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Google.SpreadsheetID == "" {
		return errors.New("google spreadsheet id is required")
	}
	if c.Scheduler.Enabled {
		if err := ValidateCadence(c.Scheduler.Cadence); err != nil {
			return fmt.Errorf("scheduler cadence: %w", err)
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("scheduler timezone: %w", err)
		}
	}
	return nil
}

// ValidateCadence checks the minute and hour fields of a five-field
// cron-style expression. Only daily single-firing schedules are
// supported, so the remaining fields must be wildcards.
func ValidateCadence(expr string) error {
	minute, hour, err := ParseCadence(expr)
	if err != nil {
		return err
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute out of range: %d", minute)
	}
	if hour != -1 && (hour < 0 || hour > 23) {
		return fmt.Errorf("hour out of range: %d", hour)
	}
	return nil
}

// ParseCadence extracts minute and hour from "M H * * *". hour may be
// "*" and is returned as -1 in that case; minute must be numeric.
func ParseCadence(expr string) (minute, hour int, err error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	for _, f := range fields[2:] {
		if f != "*" {
			return 0, 0, fmt.Errorf("only daily schedules are supported, field %q must be *", f)
		}
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute field %q", fields[0])
	}
	if fields[1] == "*" {
		return minute, -1, nil
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour field %q", fields[1])
	}
	return minute, hour, nil
}

// BySource returns the per-source section for a source name.
func (s SourcesConfig) BySource(name string) (SourceConfig, bool) {
	switch name {
	case "ads":
		return s.Ads, true
	case "analytics":
		return s.Analytics, true
	case "commerce":
		return s.Commerce, true
	}
	return SourceConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "metricsync"
	}
	if c.Cache.ResultTTL == 0 {
		c.Cache.ResultTTL = time.Hour
	}
	if c.Cache.LockTTL == 0 {
		c.Cache.LockTTL = 30 * time.Second
	}
	if c.Cache.LockWait == 0 {
		c.Cache.LockWait = 2 * time.Second
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 3
	}
	if c.Queue.Buffer == 0 {
		c.Queue.Buffer = 64
	}
	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	applySourceDefaults(&c.Sources.Ads, "ads_raw_daily")
	applySourceDefaults(&c.Sources.Analytics, "analytics_raw_daily")
	applySourceDefaults(&c.Sources.Commerce, "commerce_raw_daily")
}

func applySourceDefaults(sc *SourceConfig, sheetName string) {
	if sc.SheetName == "" {
		sc.SheetName = sheetName
	}
	if sc.Timezone == "" {
		sc.Timezone = "UTC"
	}
	if sc.RateRPS == 0 {
		sc.RateRPS = 5
	}
}
