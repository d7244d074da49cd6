package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Worker  WorkerConfig   `yaml:"worker"`
	Sources SourcesConfig  `yaml:"sources"`
	Hazard  HazardConfig   `yaml:"hazard"`
	Stream  StreamConfig   `yaml:"stream"`
	DB      DatabaseConfig `yaml:"db"`
	Logging LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	RateLimit int    `yaml:"rate_limit"` // requests per second, global
}

type WorkerConfig struct {
	Count      int `yaml:"count"`
	BufferSize int `yaml:"buffer_size"`
}

type SourcesConfig struct {
	USGSEnabled      bool          `yaml:"usgs_enabled"`
	USGSURL          string        `yaml:"usgs_url"`
	USGSPollInterval time.Duration `yaml:"usgs_poll_interval"`
	// Region type assigned to observed events; the feed does not carry one.
	USGSRegionType string `yaml:"usgs_region_type"`
}

type HazardConfig struct {
	TimeSpan float64 `yaml:"time_span"` // years, used when a request does not name one
}

type StreamConfig struct {
	Buffer int `yaml:"buffer"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from the environment, then overlays the YAML
// file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("RATE_LIMIT", 5),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Sources: SourcesConfig{
			USGSEnabled:      getEnvBool("USGS_ENABLED", true),
			USGSURL:          getEnv("USGS_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"),
			USGSPollInterval: getEnvDuration("USGS_POLL_INTERVAL", 5*time.Minute),
			USGSRegionType:   getEnv("USGS_REGION_TYPE", string(tectonic.ActiveShallowCrust)),
		},
		Hazard: HazardConfig{
			TimeSpan: getEnvFloat("HAZARD_TIME_SPAN", 50),
		},
		Stream: StreamConfig{
			Buffer: getEnvInt("STREAM_BUFFER", 100),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/rupture-hazard.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1 request per second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Sources.USGSPollInterval < time.Minute {
		return fmt.Errorf("USGS poll interval must be at least 1 minute")
	}
	trt, err := tectonic.ParseRegionType(c.Sources.USGSRegionType)
	if err != nil {
		return fmt.Errorf("invalid USGS region type: %w", err)
	}
	c.Sources.USGSRegionType = string(trt)

	if !(c.Hazard.TimeSpan > 0) {
		return fmt.Errorf("hazard time span must be positive")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}

// RegionType returns the validated region type for USGS events.
func (s SourcesConfig) RegionType() tectonic.RegionType {
	return tectonic.RegionType(s.USGSRegionType)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
