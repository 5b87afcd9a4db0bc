package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

func (b BackupConfig) IntervalOrDefault() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

type Config struct {
	Timezone string `yaml:"timezone"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Enabled         bool   `yaml:"enabled"`
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Slots struct {
		SlotMinutes            int `yaml:"slot_minutes"`
		DefaultDurationMinutes int `yaml:"default_duration_minutes"`
		MaxRangeDays           int `yaml:"max_range_days"`
	} `yaml:"slots"`

	CalendarSync struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsPath string `yaml:"credentials_path"`
		TokenPath       string `yaml:"token_path"`
		IntervalMinutes int    `yaml:"interval_minutes"`
		WindowDays      int    `yaml:"window_days"`
	} `yaml:"calendar_sync"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "America/Mexico_City"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/availability.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) APIPort() int {
	if c.API.Port <= 0 {
		return 8080
	}
	return c.API.Port
}

func (c *Config) SlotMinutes() int {
	if c.Slots.SlotMinutes <= 0 {
		return 30
	}
	return c.Slots.SlotMinutes
}

func (c *Config) DefaultDurationMinutes() int {
	if c.Slots.DefaultDurationMinutes <= 0 {
		return 60
	}
	return c.Slots.DefaultDurationMinutes
}

func (c *Config) MaxRangeDays() int {
	if c.Slots.MaxRangeDays <= 0 {
		return 90
	}
	return c.Slots.MaxRangeDays
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) SyncInterval() time.Duration {
	if c.CalendarSync.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.CalendarSync.IntervalMinutes) * time.Minute
}

func (c *Config) SyncWindowDays() int {
	if c.CalendarSync.WindowDays <= 0 {
		return 60
	}
	return c.CalendarSync.WindowDays
}
