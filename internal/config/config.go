package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Artifact paths. Empty paths resolve against ArtifactDir.
	ArtifactDir string `yaml:"artifact_dir"`
	DatasetPath string `yaml:"dataset_path"`
	ModelPath   string `yaml:"model_path"`
	DecoderPath string `yaml:"decoder_path"`

	ClassifierURL       string        `yaml:"classifier_url"`
	ClassifierVersion   string        `yaml:"classifier_version"`
	ClassifierTimeout   time.Duration `yaml:"classifier_timeout"`
	SerializeClassifier bool          `yaml:"serialize_classifier"`

	ExposeErrorDetails bool     `yaml:"expose_error_details"`
	AllowOrigins       []string `yaml:"allow_origins"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`

	EnableDB    bool   `yaml:"enable_db"`
	DatabaseURL string `yaml:"database_url"`

	EnableCache bool          `yaml:"enable_cache"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

func defaults() *Config {
	return &Config{
		Port:              "8080",
		GinMode:           "release",
		LogLevel:          "info",
		LogFormat:         "text",
		ArtifactDir:       "artifacts",
		ClassifierTimeout: 5 * time.Second,
		AllowOrigins:      []string{"*"},
		MaxBodyBytes:      1 << 20,
		CacheTTL:          10 * time.Minute,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence. A .env
// file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Host, "HOST")
	setString(&cfg.Port, "PORT")
	setString(&cfg.GinMode, "GIN_MODE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.ArtifactDir, "ARTIFACT_DIR")
	setString(&cfg.DatasetPath, "DATASET_PATH")
	setString(&cfg.ModelPath, "MODEL_PATH")
	setString(&cfg.DecoderPath, "LABEL_ENCODER_PATH")
	setString(&cfg.ClassifierURL, "CLASSIFIER_URL")
	setString(&cfg.ClassifierVersion, "CLASSIFIER_VERSION")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")

	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		cfg.AllowOrigins = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setBool(&cfg.SerializeClassifier, "CLASSIFIER_SERIALIZE"),
		setBool(&cfg.ExposeErrorDetails, "EXPOSE_ERROR_DETAILS"),
		setBool(&cfg.EnableDB, "ENABLE_DB"),
		setBool(&cfg.EnableCache, "ENABLE_CACHE"),
		setDuration(&cfg.ClassifierTimeout, "CLASSIFIER_TIMEOUT"),
		setDuration(&cfg.CacheTTL, "CACHE_TTL"),
	)
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_BODY_BYTES: %w", err))
		}
		cfg.MaxBodyBytes = n
	}
	return errors.Join(errs...)
}

func (c *Config) resolvePaths() {
	if c.DatasetPath == "" {
		c.DatasetPath = filepath.Join(c.ArtifactDir, "dataset.csv")
	}
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(c.ArtifactDir, "disease_prediction_model.json")
	}
	if c.DecoderPath == "" {
		c.DecoderPath = filepath.Join(c.ArtifactDir, "label_encoder.json")
	}
}

func (c *Config) validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.EnableCache && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when ENABLE_CACHE=true")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if len(c.AllowOrigins) == 0 {
		return fmt.Errorf("ALLOW_ORIGINS must list at least one origin")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
