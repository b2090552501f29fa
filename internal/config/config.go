// Package config loads and validates the repsync YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote backend names accepted in remote.backend.
const (
	BackendNone     = "none"
	BackendMongo    = "mongo"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	Local  LocalConfig  `yaml:"local"`
	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`

	// MetricsAddr is the listen address of the Prometheus endpoint served by
	// the daemon (e.g. ":9464"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// LocalConfig configures the on-device SQLite store.
type LocalConfig struct {
	// Path of the database file. A leading "~/" is expanded. Defaults to
	// ~/.local/share/repsync/local.db.
	Path string `yaml:"path"`
}

// RemoteConfig selects and configures the remote store.
type RemoteConfig struct {
	// Backend is one of "mongo", "s3", "postgres" or "none". Defaults to
	// "none", which runs local-only.
	Backend string `yaml:"backend"`

	// Timeout bounds every single remote call. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the number of tries per remote call. Defaults to 3.
	MaxAttempts int `yaml:"max_attempts"`

	Mongo    *MongoConfig    `yaml:"mongo,omitempty"`
	S3       *S3Config       `yaml:"s3,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"` // defaults to "repsync"
}

// S3Config configures the S3-compatible object storage backend.
type S3Config struct {
	// Endpoint overrides the AWS endpoint for S3-compatible services such as
	// MinIO. Empty uses AWS.
	Endpoint string `yaml:"endpoint,omitempty"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`

	// Prefix is prepended to every object key, e.g. "users/alice/".
	Prefix string `yaml:"prefix,omitempty"`

	// Static credentials. When both are empty the default AWS credential
	// chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SyncConfig controls the daemon loop.
type SyncConfig struct {
	// PollInterval controls how often the daemon fetches both collections.
	// Minimum 30s, maximum 24h. Defaults to 5m if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// UploadRate caps background uploads per second. 0 means unlimited.
	UploadRate float64 `yaml:"upload_rate,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "repsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/repsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "repsync", "config.yaml"), nil
}

// DefaultLocalPath returns the default database path: ~/.local/share/repsync/local.db.
func DefaultLocalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "repsync", "local.db"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path, creating parent directories.
// The file is written with 0600 permissions since it may hold credentials.
func Save(path string, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// validate checks that all required fields are present and well-formed and
// fills in defaults.
func (c *Config) validate() error {
	if err := c.Local.validate(); err != nil {
		return err
	}
	if err := c.Remote.validate(); err != nil {
		return err
	}

	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = 5 * time.Minute
	}
	if c.Sync.PollInterval < 30*time.Second {
		return fmt.Errorf("sync.poll_interval %v is too short (minimum 30s)", c.Sync.PollInterval)
	}
	if c.Sync.PollInterval > 24*time.Hour {
		return fmt.Errorf("sync.poll_interval %v is too long (maximum 24h)", c.Sync.PollInterval)
	}
	if c.Sync.UploadRate < 0 {
		return fmt.Errorf("sync.upload_rate must not be negative")
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (l *LocalConfig) validate() error {
	if l.Path == "" {
		p, err := DefaultLocalPath()
		if err != nil {
			return err
		}
		l.Path = p
		return nil
	}
	if rest, ok := strings.CutPrefix(l.Path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		l.Path = filepath.Join(home, rest)
	}
	return nil
}

func (r *RemoteConfig) validate() error {
	if r.Backend == "" {
		r.Backend = BackendNone
	}
	if r.Timeout == 0 {
		r.Timeout = 10 * time.Second
	}
	if r.Timeout < 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.MaxAttempts < 1 || r.MaxAttempts > 10 {
		return fmt.Errorf("remote.max_attempts %d out of range (1-10)", r.MaxAttempts)
	}

	switch r.Backend {
	case BackendNone:
		return nil

	case BackendMongo:
		if r.Mongo == nil || r.Mongo.URI == "" {
			return fmt.Errorf("remote.mongo.uri is required for the mongo backend")
		}
		if !strings.HasPrefix(r.Mongo.URI, "mongodb://") && !strings.HasPrefix(r.Mongo.URI, "mongodb+srv://") {
			return fmt.Errorf("remote.mongo.uri %q must start with mongodb:// or mongodb+srv://", r.Mongo.URI)
		}
		if r.Mongo.Database == "" {
			r.Mongo.Database = "repsync"
		}

	case BackendS3:
		if r.S3 == nil || r.S3.Bucket == "" {
			return fmt.Errorf("remote.s3.bucket is required for the s3 backend")
		}
		if r.S3.Region == "" {
			return fmt.Errorf("remote.s3.region is required for the s3 backend")
		}
		if r.S3.Endpoint != "" {
			u, err := url.ParseRequestURI(r.S3.Endpoint)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("remote.s3.endpoint %q must be a valid http or https URL", r.S3.Endpoint)
			}
		}
		if (r.S3.AccessKeyID == "") != (r.S3.SecretAccessKey == "") {
			return fmt.Errorf("remote.s3.access_key_id and secret_access_key must be set together")
		}
		if r.S3.Prefix != "" && !strings.HasSuffix(r.S3.Prefix, "/") {
			r.S3.Prefix += "/"
		}

	case BackendPostgres:
		if r.Postgres == nil || r.Postgres.DSN == "" {
			return fmt.Errorf("remote.postgres.dsn is required for the postgres backend")
		}

	default:
		return fmt.Errorf("remote.backend %q is not one of mongo, s3, postgres, none", r.Backend)
	}
	return nil
}
