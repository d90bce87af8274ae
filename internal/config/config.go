package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "WIKIMETRON_CONFIG"
	logLevelEnv        = "WIKIMETRON_LOG_LEVEL"
	userAgentEnv       = "WIKIMETRON_USER_AGENT"
	inferenceURLEnv    = "WIKIMETRON_INFERENCE_URL"
	blacklistPathEnv   = "WIKIMETRON_BLACKLIST"
	sockpuppetPathEnv  = "WIKIMETRON_SOCKPUPPETS"
	defaultLanguageEnv = "WIKIMETRON_DEFAULT_LANGUAGE"
	workersEnv         = "WIKIMETRON_WORKERS"
)

// Duration is a time.Duration that parses "500ms" style YAML strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Datasets DatasetsConfig `yaml:"datasets"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes the upstream Wikimedia endpoints and the outbound
// request policy shared by all of them.
type SourceConfig struct {
	UserAgent         string   `yaml:"userAgent"`
	APIBase           string   `yaml:"apiBase"`
	PageviewsBase     string   `yaml:"pageviewsBase"`
	InferenceURL      string   `yaml:"inferenceUrl"`
	Timeout           Duration `yaml:"timeout"`
	MaxRetries        int      `yaml:"maxRetries"`
	RetryDelay        Duration `yaml:"retryDelay"`
	MaxRevisions      int      `yaml:"maxRevisions"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	Burst             int      `yaml:"burst"`
}

// CacheConfig controls the short-lived response cache.
type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// TasksConfig bounds the analysis worker pool and task retention.
type TasksConfig struct {
	Workers   int      `yaml:"workers"`
	Retention Duration `yaml:"retention"`
}

// DatasetsConfig points at the local reference datasets. Both are optional;
// a missing file disables the related detection.
type DatasetsConfig struct {
	BlacklistPath  string `yaml:"blacklistPath"`
	SockpuppetPath string `yaml:"sockpuppetPath"`
}

// AnalysisConfig carries batch-level defaults.
type AnalysisConfig struct {
	DefaultLanguage string `yaml:"defaultLanguage"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(userAgentEnv); v != "" {
		c.Source.UserAgent = v
	}
	if v := os.Getenv(inferenceURLEnv); v != "" {
		c.Source.InferenceURL = v
	}
	if v := os.Getenv(blacklistPathEnv); v != "" {
		c.Datasets.BlacklistPath = v
	}
	if v := os.Getenv(sockpuppetPathEnv); v != "" {
		c.Datasets.SockpuppetPath = v
	}
	if v := os.Getenv(defaultLanguageEnv); v != "" {
		c.Analysis.DefaultLanguage = v
	}
	if v := os.Getenv(workersEnv); v != "" {
		if workers, err := strconv.Atoi(v); err == nil && workers > 0 {
			c.Tasks.Workers = workers
		} else {
			log.Printf("config: invalid %s value %q, keeping %d", workersEnv, v, c.Tasks.Workers)
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Source.UserAgent != "" {
		base.Source.UserAgent = override.Source.UserAgent
	}
	if override.Source.APIBase != "" {
		base.Source.APIBase = override.Source.APIBase
	}
	if override.Source.PageviewsBase != "" {
		base.Source.PageviewsBase = override.Source.PageviewsBase
	}
	if override.Source.InferenceURL != "" {
		base.Source.InferenceURL = override.Source.InferenceURL
	}
	if override.Source.Timeout > 0 {
		base.Source.Timeout = override.Source.Timeout
	}
	if override.Source.MaxRetries > 0 {
		base.Source.MaxRetries = override.Source.MaxRetries
	}
	if override.Source.RetryDelay > 0 {
		base.Source.RetryDelay = override.Source.RetryDelay
	}
	if override.Source.MaxRevisions > 0 {
		base.Source.MaxRevisions = override.Source.MaxRevisions
	}
	if override.Source.RequestsPerSecond > 0 {
		base.Source.RequestsPerSecond = override.Source.RequestsPerSecond
	}
	if override.Source.Burst > 0 {
		base.Source.Burst = override.Source.Burst
	}

	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}

	if override.Tasks.Workers > 0 {
		base.Tasks.Workers = override.Tasks.Workers
	}
	if override.Tasks.Retention > 0 {
		base.Tasks.Retention = override.Tasks.Retention
	}

	if override.Datasets.BlacklistPath != "" {
		base.Datasets.BlacklistPath = override.Datasets.BlacklistPath
	}
	if override.Datasets.SockpuppetPath != "" {
		base.Datasets.SockpuppetPath = override.Datasets.SockpuppetPath
	}

	if override.Analysis.DefaultLanguage != "" {
		base.Analysis.DefaultLanguage = override.Analysis.DefaultLanguage
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			UserAgent:         "wikimetron/1.0 (sensitivity pipeline)",
			APIBase:           "https://{lang}.wikipedia.org/w/api.php",
			PageviewsBase:     "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article",
			InferenceURL:      "https://api.wikimedia.org/service/lw/inference/v1/models/revertrisk-language-agnostic:predict",
			Timeout:           Duration(20 * time.Second),
			MaxRetries:        3,
			RetryDelay:        Duration(500 * time.Millisecond),
			MaxRevisions:      500,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Cache: CacheConfig{TTL: Duration(10 * time.Minute)},
		Tasks: TasksConfig{
			Workers:   4,
			Retention: Duration(time.Hour),
		},
		Datasets: DatasetsConfig{
			BlacklistPath:  "data/blacklist.csv",
			SockpuppetPath: "data/sockpuppets.csv",
		},
		Analysis: AnalysisConfig{DefaultLanguage: "fr"},
	}
}
