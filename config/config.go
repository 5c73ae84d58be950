// Package config loads apiflow's YAML configuration with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/apiflow/client"
	"github.com/meikuraledutech/apiflow/querybuilder"
)

// EnvPrefix prefixes every environment override, e.g. APIFLOW_STORAGE_DRIVER.
const EnvPrefix = "APIFLOW_"

// Storage drivers.
const (
	DriverRemote   = "remote"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the full apiflow configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Query   QueryConfig   `yaml:"query"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// BackendConfig points at the remote flow server and validation services.
type BackendConfig struct {
	FlowServer     string        `yaml:"flow_server"`
	ValidateFlat   string        `yaml:"validate_flat"`
	ValidateNested string        `yaml:"validate_nested"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
}

// StorageConfig selects where flows persist. DSN is used by postgres and
// Path by sqlite; remote uses Backend.FlowServer.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"`
}

type QueryConfig struct {
	BaseURL string `yaml:"base_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or override is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Backend: BackendConfig{
			FlowServer:     client.DefaultFlowServer,
			ValidateFlat:   client.DefaultValidateFlat,
			ValidateNested: client.DefaultValidateNested,
			Timeout:        client.DefaultTimeout,
			RateLimit:      client.DefaultRateLimit,
		},
		Storage: StorageConfig{Driver: DriverRemote, Path: "apiflow.db"},
		Query:   QueryConfig{BaseURL: querybuilder.DefaultBaseURL},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path or a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("SERVER_ADDR", &c.Server.Addr)
	str("BACKEND_FLOW_SERVER", &c.Backend.FlowServer)
	str("BACKEND_VALIDATE_FLAT", &c.Backend.ValidateFlat)
	str("BACKEND_VALIDATE_NESTED", &c.Backend.ValidateNested)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	str("STORAGE_PATH", &c.Storage.Path)
	str("QUERY_BASE_URL", &c.Query.BaseURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "BACKEND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sBACKEND_TIMEOUT: %v", ErrInvalid, EnvPrefix, err)
		}
		c.Backend.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "BACKEND_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sBACKEND_RATE_LIMIT: %v", ErrInvalid, EnvPrefix, err)
		}
		c.Backend.RateLimit = f
	}
	// DATABASE_URL is what the postgres tests and most hosts export.
	if c.Storage.DSN == "" {
		if v, ok := lookup("DATABASE_URL"); ok {
			c.Storage.DSN = v
		}
	}
	return nil
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverRemote:
		if c.Backend.FlowServer == "" {
			return fmt.Errorf("%w: backend.flow_server is required for the remote driver", ErrInvalid)
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for the postgres driver", ErrInvalid)
		}
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for the sqlite driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalid, c.Storage.Driver)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("%w: backend.timeout must not be negative", ErrInvalid)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level. Empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return lvl, nil
}

// Handler builds a slog handler writing to w in the configured format.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
