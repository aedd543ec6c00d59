package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind selects a storage backend.
type Kind string

// Supported backend kinds.
const (
	KindLocal  Kind = "local"
	KindS3     Kind = "s3"
	KindBadger Kind = "badger"
)

// Kinds lists every supported backend kind.
var Kinds = []Kind{KindLocal, KindS3, KindBadger}

// ParseKind validates a storage type discriminator.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ConfigError{Field: "type", Reason: fmt.Sprintf("storage type %q is invalid", s)}
}

// ConfigError describes a storage configuration problem. It matches
// ErrConfiguration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("storage: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// S3Config holds the connection settings for the s3 kind.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string

	// UsePathStyle addresses buckets as endpoint/bucket instead of
	// bucket.endpoint. Most self-hosted providers need it.
	UsePathStyle bool

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// Config selects and configures a backend.
type Config struct {
	Kind Kind

	// Dir is the storage root: a directory for local and badger, the
	// object key prefix for s3.
	Dir string

	S3 S3Config
}

// WithDir returns a copy of c rooted at dir. An empty dir keeps the
// configured root.
func (c Config) WithDir(dir string) Config {
	if dir != "" {
		c.Dir = dir
	}
	return c
}

// Validate checks c without touching any backend.
func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	switch c.Kind {
	case KindLocal, KindBadger:
		if c.Dir == "" {
			return &ConfigError{Field: "dir", Reason: "is required"}
		}
	case KindS3:
		for _, f := range []struct{ name, v string }{
			{"s3.bucket", c.S3.Bucket},
			{"s3.access_key", c.S3.AccessKey},
			{"s3.secret_key", c.S3.SecretKey},
			{"s3.endpoint", c.S3.Endpoint},
		} {
			if f.v == "" {
				return &ConfigError{Field: f.name, Reason: "is required"}
			}
		}
	}
	return nil
}

// OpenOption customizes Open.
type OpenOption func(*openOptions)

type openOptions struct {
	s3Client       S3Client
	logger         *slog.Logger
	badgerInMemory bool
}

// WithS3Client makes Open use client instead of building one from the
// credentials in Config.S3.
func WithS3Client(client S3Client) OpenOption {
	return func(o *openOptions) { o.s3Client = client }
}

// WithLogger sets the logger handed to backends that log (badger).
func WithLogger(l *slog.Logger) OpenOption {
	return func(o *openOptions) { o.logger = l }
}

// WithBadgerInMemory runs the badger kind without touching disk.
func WithBadgerInMemory() OpenOption {
	return func(o *openOptions) { o.badgerInMemory = true }
}

// Open validates cfg and returns the backend it selects. An unknown kind
// or missing required field fails with an error matching ErrConfiguration
// before any I/O takes place.
func Open(_ context.Context, cfg Config, opts ...OpenOption) (FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Kind {
	case KindLocal:
		return NewLocal(cfg.Dir)
	case KindS3:
		client := o.s3Client
		if client == nil {
			client = NewS3Client(cfg.S3)
		}
		return NewS3(client, cfg.S3.Bucket, cfg.Dir), nil
	case KindBadger:
		return NewBadger(BadgerOptions{Dir: cfg.Dir, InMemory: o.badgerInMemory, Logger: o.logger})
	}
	// Unreachable: Validate rejects unknown kinds.
	return nil, &ConfigError{Field: "type", Reason: fmt.Sprintf("storage type %q is invalid", cfg.Kind)}
}
