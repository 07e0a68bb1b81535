/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/internal/logging"
	"github.com/suparena/recordstore/internal/metrics"
	"gopkg.in/yaml.v3"
)

// DefaultConnection is the connection used when none is named.
const DefaultConnection = "default"

// ConfigDirPlaceholder in tables_dir is replaced with the directory of the config file.
const ConfigDirPlaceholder = "{config-dir}"

// Environment overrides applied to the default connection and the log level.
const (
	EnvRegion          = "RECORDSTORE_REGION"
	EnvEndpoint        = "RECORDSTORE_ENDPOINT"
	EnvAccessKeyID     = "RECORDSTORE_ACCESS_KEY_ID"
	EnvSecretAccessKey = "RECORDSTORE_SECRET_ACCESS_KEY"
	EnvLogLevel        = "RECORDSTORE_LOG_LEVEL"
	EnvConfigFile      = "RECORDSTORE_CONFIG"
)

// Config is the process configuration of a store consumer.
type Config struct {
	Connections map[string]ddb.Connection `yaml:"connections" validate:"required,min=1,dive"`
	TablePrefix string                    `yaml:"table_prefix" validate:"omitempty,max=200"`
	TablesDir   string                    `yaml:"tables_dir"`
	// WaitTimeout bounds how long table creation waits for ACTIVE.
	WaitTimeout time.Duration  `yaml:"wait_timeout" validate:"gte=0"`
	Log         logging.Config `yaml:"log"`
	Metrics     metrics.Config `yaml:"metrics"`

	dir string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Connections: map[string]ddb.Connection{
			DefaultConnection: {Region: "us-east-1"},
		},
		WaitTimeout: 5 * time.Minute,
		Log:         logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path. A .env file next to it, or in the working
// directory, is loaded first so ${VAR} references and RECORDSTORE_* overrides
// can come from it. An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		if err := loadDotEnv("."); err != nil {
			return nil, err
		}
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, dir)
}

// Parse decodes YAML config data. dir is the directory the {config-dir}
// placeholder resolves to.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := Default()
	cfg.Connections = nil
	cfg.dir = dir

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Connections == nil {
		cfg.Connections = Default().Connections
	}
	cfg.TablesDir = strings.ReplaceAll(cfg.TablesDir, ConfigDirPlaceholder, dir)

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func (c *Config) applyEnv() {
	conn := c.Connections[DefaultConnection]
	if v := os.Getenv(EnvRegion); v != "" {
		conn.Region = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		conn.Endpoint = v
	}
	if v := os.Getenv(EnvAccessKeyID); v != "" {
		conn.AccessKeyID = v
	}
	if v := os.Getenv(EnvSecretAccessKey); v != "" {
		conn.SecretAccessKey = v
	}
	if _, ok := c.Connections[DefaultConnection]; ok || conn != (ddb.Connection{}) {
		c.Connections[DefaultConnection] = conn
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

var validate = validator.New()

// Validate checks field rules and that a default connection exists.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config:\n- %s", strings.Join(msgs, "\n- "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Connections[DefaultConnection]; !ok {
		return fmt.Errorf("invalid config: connections must include %q", DefaultConnection)
	}
	return nil
}

// Connection returns the named connection; an empty name selects the default.
func (c *Config) Connection(name string) (ddb.Connection, error) {
	if name == "" {
		name = DefaultConnection
	}
	conn, ok := c.Connections[name]
	if !ok {
		return ddb.Connection{}, fmt.Errorf("connection %q is not configured", name)
	}
	return conn, nil
}

// TableName applies the configured prefix to name.
func (c *Config) TableName(name string) string {
	return c.TablePrefix + name
}

// Dir returns the directory the config was loaded from, or "" for defaults.
func (c *Config) Dir() string {
	return c.dir
}

// String renders the config with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Connections = make(map[string]ddb.Connection, len(c.Connections))
	for name, conn := range c.Connections {
		if conn.SecretAccessKey != "" {
			conn.SecretAccessKey = "****"
		}
		if conn.SessionToken != "" {
			conn.SessionToken = "****"
		}
		masked.Connections[name] = conn
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "config: " + strconv.Quote(err.Error())
	}
	return string(data)
}
