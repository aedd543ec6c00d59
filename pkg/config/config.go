// Package config loads task configuration from defaults, an optional YAML
// file and MLP_* environment variables, in that order of precedence.
//
// Recognized environment variables:
//
//	MLP_CONFIG                  path of the YAML file
//	MLP_STORAGE_TYPE            local | s3 | badger
//	MLP_STORAGE_DIR             storage root (directory or bucket prefix)
//	MLP_S3_BUCKET               s3 bucket
//	MLP_S3_REGION               s3 region (may be empty)
//	MLP_S3_ACCESS_KEY           s3 access key
//	MLP_S3_SECRET_KEY           s3 secret key
//	MLP_S3_ENDPOINT             s3 endpoint URL
//	MLP_S3_PATH_STYLE           use path-style bucket addressing
//	MLP_S3_TIMEOUT              per-request timeout, e.g. 30s
//	MLP_STATE_KEY               blob name of the fitted state
//	MLP_STATE_ENCODING          binary | msgpack
//	MLP_TOLERATE_CORRUPT_STATE  start unfitted on undecodable state
//	MLP_LOG_LEVEL               debug | info | warn | error
//	MLP_LOG_FORMAT              text | json
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haivivi/mlptask/pkg/statecodec"
	"github.com/haivivi/mlptask/pkg/storage"
	"github.com/haivivi/mlptask/pkg/task"
)

const (
	// EnvPrefix is the prefix of every recognized environment variable.
	EnvPrefix = "MLP_"

	// ConfigPathEnvVar names the YAML file when no path is given to Load.
	ConfigPathEnvVar = EnvPrefix + "CONFIG"
)

// Config is the complete task configuration.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	State   StateConfig   `koanf:"state"`
	Logging LoggingConfig `koanf:"logging"`
}

// StorageConfig selects the backend and its root.
type StorageConfig struct {
	Type string   `koanf:"type" validate:"required,oneof=local s3 badger"`
	Dir  string   `koanf:"dir" validate:"required_unless=Type s3"`
	S3   S3Config `koanf:"s3"`
}

// S3Config holds s3 connection settings. Required fields are checked only
// when the storage type is s3.
type S3Config struct {
	Bucket    string        `koanf:"bucket"`
	Region    string        `koanf:"region"`
	AccessKey string        `koanf:"access_key"`
	SecretKey string        `koanf:"secret_key"`
	Endpoint  string        `koanf:"endpoint" validate:"omitempty,url"`
	PathStyle bool          `koanf:"path_style"`
	Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
}

// StateConfig controls how fitted state is stored.
type StateConfig struct {
	Key                  string `koanf:"key" validate:"required"`
	Encoding             string `koanf:"encoding" validate:"oneof=binary msgpack"`
	TolerateCorruptState bool   `koanf:"tolerate_corrupt_state"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			S3: S3Config{
				Timeout: 60 * time.Second,
			},
		},
		State: StateConfig{
			Key:      task.DefaultStateKey,
			Encoding: statecodec.EncodingBinary.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envMappings maps lower-cased variable names (prefix stripped) to koanf
// paths.
var envMappings = map[string]string{
	"storage_type":           "storage.type",
	"storage_dir":            "storage.dir",
	"s3_bucket":              "storage.s3.bucket",
	"s3_region":              "storage.s3.region",
	"s3_access_key":          "storage.s3.access_key",
	"s3_secret_key":          "storage.s3.secret_key",
	"s3_endpoint":            "storage.s3.endpoint",
	"s3_path_style":          "storage.s3.path_style",
	"s3_timeout":             "storage.s3.timeout",
	"state_key":              "state.key",
	"state_encoding":         "state.encoding",
	"tolerate_corrupt_state": "state.tolerate_corrupt_state",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
}

// envTransform maps an environment variable to a koanf path. Unmapped
// variables return "" and are skipped.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// Load builds the configuration. path names an optional YAML file; when
// empty, MLP_CONFIG is consulted. Environment variables override the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StorageConfig returns the backend configuration.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind: storage.Kind(c.Storage.Type),
		Dir:  c.Storage.Dir,
		S3: storage.S3Config{
			Bucket:       c.Storage.S3.Bucket,
			Region:       c.Storage.S3.Region,
			AccessKey:    c.Storage.S3.AccessKey,
			SecretKey:    c.Storage.S3.SecretKey,
			Endpoint:     c.Storage.S3.Endpoint,
			UsePathStyle: c.Storage.S3.PathStyle,
			Timeout:      c.Storage.S3.Timeout,
		},
	}
}

// Task returns the controller configuration.
func (c *Config) Task() (task.Config, error) {
	enc, err := statecodec.ParseEncoding(c.State.Encoding)
	if err != nil {
		return task.Config{}, fmt.Errorf("config: %w", err)
	}
	return task.Config{
		Storage:              c.StorageConfig(),
		StateKey:             c.State.Key,
		StateEncoding:        enc,
		TolerateCorruptState: c.State.TolerateCorruptState,
	}, nil
}
