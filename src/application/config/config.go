// Package config loads the application configuration: the embedded example
// as defaults, an optional TOML file over it, then environment overrides.
package config

import (
	_ "embed"
	"os"
	"time"

	"stem-unmixer/src/lib/cerr"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

type StorageBackend string

const (
	NoStorage    StorageBackend = "none"
	GoogleCloud  StorageBackend = "gcs"
	MinioStorage StorageBackend = "minio"
)

type Config struct {
	Lalalai    LalalaiConfig    `toml:"lalalai"`
	Extraction ExtractionConfig `toml:"extraction"`
	Settings   SettingsConfig   `toml:"settings"`
	Log        LogConfig        `toml:"log"`
	RabbitMQ   RabbitMQConfig   `toml:"rabbitmq"`
	Runs       RunsConfig       `toml:"runs"`
	Storage    StorageConfig    `toml:"storage"`
}

type LalalaiConfig struct {
	BaseURL string `toml:"base_url"`
	License string `toml:"license"`
}

type ExtractionConfig struct {
	PollInterval time.Duration `toml:"poll_interval"`
	MaxWait      time.Duration `toml:"max_wait"`
	ChunkSize    int           `toml:"chunk_size"`
}

type SettingsConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type RabbitMQConfig struct {
	URL           string `toml:"url"`
	Queue         string `toml:"queue"`
	ProgressQueue string `toml:"progress_queue"`
	Workers       int    `toml:"workers"`
	Prefetch      int    `toml:"prefetch"`
}

type RunsConfig struct {
	Region string `toml:"region"`
	Table  string `toml:"table"`
}

type StorageConfig struct {
	Backend        StorageBackend `toml:"backend"`
	BaseURL        string         `toml:"base_url"`
	GoogleCloudKey string         `toml:"google_cloud_key"`
	Minio          MinioConfig    `toml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

var envOverrides = map[string]func(*Config, string){
	"UNMIX_LICENSE":    func(c *Config, v string) { c.Lalalai.License = v },
	"RABBITMQ_URL":     func(c *Config, v string) { c.RabbitMQ.URL = v },
	"GOOGLE_CLOUD_KEY": func(c *Config, v string) { c.Storage.GoogleCloudKey = v },
	"MINIO_ACCESS_KEY": func(c *Config, v string) { c.Storage.Minio.AccessKey = v },
	"MINIO_SECRET_KEY": func(c *Config, v string) { c.Storage.Minio.SecretKey = v },
}

func Default() Config {
	var config Config
	if _, err := toml.Decode(string(exampleConf), &config); err != nil {
		panic(cerr.Wrap(err).Error("Failed to parse embedded default config"))
	}

	return config
}

// Load reads path over the defaults. An empty path only applies the
// defaults and the environment.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return Config{}, cerr.Field("path", path).Wrap(err).Error("Failed to parse config file")
		}
	}

	for key, apply := range envOverrides {
		if val := os.Getenv(key); val != "" {
			apply(&config, val)
		}
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.Extraction.PollInterval <= 0 {
		return cerr.Field("poll_interval", c.Extraction.PollInterval).Error("Poll interval must be positive")
	}

	if c.Extraction.MaxWait < 0 {
		return cerr.Field("max_wait", c.Extraction.MaxWait).Error("Max wait must not be negative")
	}

	if c.Extraction.ChunkSize <= 0 {
		return cerr.Field("chunk_size", c.Extraction.ChunkSize).Error("Chunk size must be positive")
	}

	switch c.Log.Format {
	case "cli", "json":
	default:
		return cerr.Field("format", c.Log.Format).Error("Unrecognized log format")
	}

	switch c.Storage.Backend {
	case NoStorage, GoogleCloud, MinioStorage:
	default:
		return cerr.Field("backend", c.Storage.Backend).Error("Unrecognized storage backend")
	}

	return nil
}

// CreateFile writes the example configuration to path, refusing to
// overwrite an existing file.
func CreateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return cerr.Field("path", path).Error("Config file already exists")
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return cerr.Field("path", path).Wrap(err).Error("Failed to write config file")
	}

	return nil
}
