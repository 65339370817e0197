// Package config loads the dyntable configuration from a YAML file and
// applies environment overrides. The file groups settings by subsystem
// (database, filestore, logging, datatable); each section converts into
// the corresponding package's own config type so subsystems never
// depend on this package.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/filestore"
	"github.com/koustreak/dyntable/internal/logger"
)

// Environment variables that override the file. Secrets (DSN, storage
// keys) usually come from here rather than the YAML on real deployments.
const (
	EnvDSN            = "DYNTABLE_DATABASE_DSN"
	EnvDriver         = "DYNTABLE_DATABASE_DRIVER"
	EnvStoreEndpoint  = "DYNTABLE_FILESTORE_ENDPOINT"
	EnvStoreAccessKey = "DYNTABLE_FILESTORE_ACCESS_KEY"
	EnvStoreSecretKey = "DYNTABLE_FILESTORE_SECRET_KEY"
	EnvStoreBucket    = "DYNTABLE_FILESTORE_BUCKET"
	EnvLogLevel       = "DYNTABLE_LOG_LEVEL"
)

// Duration parses YAML scalars like "30s" or "5m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Database is the database section of the YAML file. Zero-valued pool
// and timeout fields fall back to database.DefaultConfig.
type Database struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxConns        int32    `yaml:"max_conns"`
	MinConns        int32    `yaml:"min_conns"`
	MaxConnLifetime Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  Duration `yaml:"connect_timeout"`
	QueryTimeout    Duration `yaml:"query_timeout"`
}

// Filestore is the object storage section.
type Filestore struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

// Logging is the logger section.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Datatable tunes the schema engine.
type Datatable struct {
	// ConstraintApproach turns dropdown columns into real foreign keys
	// backed by mapping rows instead of legacy code-named columns.
	ConstraintApproach bool `yaml:"constraint_approach"`
}

// Config is the full parsed configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Filestore Filestore `yaml:"filestore"`
	Logging   Logging   `yaml:"logging"`
	Datatable Datatable `yaml:"datatable"`
}

// Load reads path, parses it, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindValidation, fmt.Sprintf("read config %s", path), err)
	}
	return Parse(data)
}

// Parse parses raw YAML, applies environment overrides, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindValidation, "parse config", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvStoreEndpoint); v != "" {
		c.Filestore.Endpoint = v
	}
	if v := os.Getenv(EnvStoreAccessKey); v != "" {
		c.Filestore.AccessKey = v
	}
	if v := os.Getenv(EnvStoreSecretKey); v != "" {
		c.Filestore.SecretKey = v
	}
	if v := os.Getenv(EnvStoreBucket); v != "" {
		c.Filestore.Bucket = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if !database.Driver(c.Database.Driver).Supported() {
		return errs.Validation("config.database.driver.invalid",
			fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return errs.Validation("config.database.dsn.missing", "database dsn is required")
	}
	return nil
}

// DatabaseConfig converts the database section into the driver config,
// filling unset pool and timeout fields from database.DefaultConfig.
func (c *Config) DatabaseConfig() *database.Config {
	out := database.DefaultConfig(database.Driver(c.Database.Driver), c.Database.DSN)
	if c.Database.MaxConns > 0 {
		out.MaxConns = c.Database.MaxConns
	}
	if c.Database.MinConns > 0 {
		out.MinConns = c.Database.MinConns
	}
	if c.Database.MaxConnLifetime > 0 {
		out.MaxConnLifetime = time.Duration(c.Database.MaxConnLifetime)
	}
	if c.Database.MaxConnIdleTime > 0 {
		out.MaxConnIdleTime = time.Duration(c.Database.MaxConnIdleTime)
	}
	if c.Database.ConnectTimeout > 0 {
		out.ConnectTimeout = time.Duration(c.Database.ConnectTimeout)
	}
	if c.Database.QueryTimeout > 0 {
		out.QueryTimeout = time.Duration(c.Database.QueryTimeout)
	}
	return out
}

// FilestoreConfig converts the filestore section.
func (c *Config) FilestoreConfig() filestore.Config {
	return filestore.Config{
		Endpoint:  c.Filestore.Endpoint,
		AccessKey: c.Filestore.AccessKey,
		SecretKey: c.Filestore.SecretKey,
		UseSSL:    c.Filestore.UseSSL,
		Region:    c.Filestore.Region,
		Bucket:    c.Filestore.Bucket,
	}
}

// LoggerConfig converts the logging section, defaulting unset fields.
func (c *Config) LoggerConfig() *logger.Config {
	out := logger.DefaultConfig()
	if c.Logging.Level != "" {
		out.Level = c.Logging.Level
	}
	if c.Logging.Format != "" {
		out.Format = c.Logging.Format
	}
	return out
}
