// Package config resolves pipecheck settings from a .env file, the process
// environment and an optional YAML file, in that order of loading.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"pipecheck/internal/crawl"
	"pipecheck/internal/domain"
	"pipecheck/internal/schema"
	"pipecheck/internal/secret"
)

// Environment variable names.
const (
	EnvDriver          = "PIPECHECK_DRIVER"
	EnvHistory         = "PIPECHECK_HISTORY"
	EnvSupabaseURL     = "SUPABASE_URL"
	EnvSupabaseKey     = "SUPABASE_SERVICE_KEY"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvDatabasePass    = "DATABASE_PASSWORD"
	EnvMongoURI        = "MONGODB_URI"
	EnvMongoDatabase   = "MONGODB_DATABASE"
	EnvMongoPassword   = "MONGODB_PASSWORD"
	EnvDeepSeekAPIKey  = "DEEPSEEK_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	DefaultEnvFile     = ".env"
	DefaultCrawlURL    = "https://acquire.com/marketplace"
	DefaultSchedule    = "@every 1h"
	DefaultHistoryPath = ".pipecheck/history.db"
	DefaultRetention   = 30 * 24 * time.Hour
)

// Crawl engines.
const (
	EngineBrowser = crawl.EngineBrowser
	EngineHTTP    = crawl.EngineHTTP
)

// ErrMissingCredentials marks a configuration error: a required credential is absent.
var ErrMissingCredentials = errors.New("missing credentials")

// MissingError names the variables that must be set.
type MissingError struct {
	Vars []string
	Any  bool // one of Vars is enough
}

func (e *MissingError) Error() string {
	if e.Any {
		return fmt.Sprintf("need %s", strings.Join(e.Vars, " or "))
	}
	return fmt.Sprintf("%s not set", strings.Join(e.Vars, " or "))
}

func (e *MissingError) Is(target error) bool { return target == ErrMissingCredentials }

// Config represents the main configuration structure.
type Config struct {
	Store    StoreConfig        `yaml:"store"`
	Mapping  schema.Mapping     `yaml:"mapping"`
	Tables   []domain.TableSpec `yaml:"tables"`
	Crawl    CrawlConfig        `yaml:"crawl"`
	Watch    WatchConfig        `yaml:"watch"`
	History  HistoryConfig      `yaml:"history"`
	Keychain bool               `yaml:"keychain"` // fall back to the macOS keychain for secrets

	// Path is the YAML file the config was read from, if any.
	Path string `yaml:"-"`
}

// StoreConfig describes the destination store. The secret is never read
// from YAML; KeyName names the variable (or keychain account) holding it.
type StoreConfig struct {
	domain.DatabaseConnection `yaml:",inline"`
	KeyName                   string `yaml:"key_name"`
}

// CrawlConfig configures the crawl smoke test.
type CrawlConfig struct {
	URL            string `yaml:"url"`
	Engine         string `yaml:"engine"` // "browser" | "http"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MinWords       int    `yaml:"min_words"` // below this the page is probably a bot wall
	ChromeBin      string `yaml:"chrome_bin"`
}

// WatchConfig configures `pipecheck watch`.
type WatchConfig struct {
	Schedule string `yaml:"schedule"` // cron expression or @every descriptor
}

// HistoryConfig configures the local run history.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`

	// Retention is how long runs are kept, e.g. "168h". Negative keeps
	// runs forever.
	Retention time.Duration `yaml:"retention"`
}

// Load reads envFile into the environment (a missing file is fine), then
// the YAML file at path when non-empty, then applies environment overrides
// and defaults.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		cfg.Path = path
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides fills store settings the YAML file left empty.
func (c *Config) applyEnvOverrides() {
	if c.Store.Driver == "" {
		c.Store.Driver = domain.DatabaseDriver(os.Getenv(EnvDriver))
	}
	if c.Store.Driver == "" {
		c.Store.Driver = domain.DatabaseDriverPostgREST
	}
	switch c.Store.Driver {
	case domain.DatabaseDriverPostgREST:
		if c.Store.URL == "" {
			c.Store.URL = os.Getenv(EnvSupabaseURL)
		}
	case domain.DatabaseDriverMongoDB:
		if c.Store.URL == "" {
			c.Store.URL = os.Getenv(EnvMongoURI)
		}
		if c.Store.Database == "" {
			c.Store.Database = os.Getenv(EnvMongoDatabase)
		}
	default:
		if c.Store.URL == "" && c.Store.Host == "" {
			c.Store.URL = os.Getenv(EnvDatabaseURL)
		}
	}
	if v := os.Getenv(EnvHistory); v != "" && c.History.Path == "" {
		c.History.Path = v
	}
}

func (c *Config) applyDefaults() {
	if c.Store.KeyName == "" {
		switch c.Store.Driver {
		case domain.DatabaseDriverPostgREST:
			c.Store.KeyName = EnvSupabaseKey
		case domain.DatabaseDriverMongoDB:
			c.Store.KeyName = EnvMongoPassword
		default:
			c.Store.KeyName = EnvDatabasePass
		}
	}

	if len(c.Mapping.Direct) == 0 && c.Mapping.Overflow == nil {
		c.Mapping = schema.DefaultMapping()
	}
	if len(c.Tables) == 0 {
		c.Tables = domain.DefaultTables()
	}

	if c.Crawl.URL == "" {
		c.Crawl.URL = DefaultCrawlURL
	}
	if c.Crawl.Engine == "" {
		c.Crawl.Engine = EngineBrowser
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		c.Crawl.TimeoutSeconds = 60
	}
	if c.Crawl.MinWords <= 0 {
		c.Crawl.MinWords = 50
	}

	if c.Watch.Schedule == "" {
		c.Watch.Schedule = DefaultSchedule
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.History.Retention == 0 {
		c.History.Retention = DefaultRetention
	}
}

// Validate checks settings that do not depend on credentials.
func (c *Config) Validate() error {
	if !c.Store.Driver.Valid() {
		return fmt.Errorf("invalid store driver %q: must be one of postgrest, postgres, mysql, sqlite, mongodb", c.Store.Driver)
	}
	if err := c.Mapping.Check(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	for i, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table name is required for table at index %d", i)
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s: at least one column is required", t.Name)
		}
	}
	if c.Crawl.Engine != EngineBrowser && c.Crawl.Engine != EngineHTTP {
		return fmt.Errorf("invalid crawl engine %q: must be 'browser' or 'http'", c.Crawl.Engine)
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", c.Watch.Schedule, err)
	}
	return nil
}

// Connection resolves the store descriptor and its secret. A missing URL or
// key is reported as a *MissingError so callers can exit without probing.
func (c *Config) Connection(secrets secret.SecretStore) (*domain.DatabaseConnection, string, error) {
	key, err := secret.Lookup(secrets, c.Store.KeyName)
	if err != nil {
		return nil, "", fmt.Errorf("read secret %s: %w", c.Store.KeyName, err)
	}
	conn := c.Store.DatabaseConnection

	switch conn.Driver {
	case domain.DatabaseDriverPostgREST:
		if conn.URL == "" || key == "" {
			return nil, "", &MissingError{Vars: []string{EnvSupabaseURL, c.Store.KeyName}}
		}
	case domain.DatabaseDriverMongoDB:
		if conn.URL == "" && conn.Host == "" {
			return nil, "", &MissingError{Vars: []string{EnvMongoURI}}
		}
	case domain.DatabaseDriverSQLite:
		if conn.URL == "" && conn.Database == "" {
			return nil, "", &MissingError{Vars: []string{EnvDatabaseURL}}
		}
	default:
		if conn.URL == "" && conn.Host == "" {
			return nil, "", &MissingError{Vars: []string{EnvDatabaseURL}}
		}
	}
	return &conn, key, nil
}

// Secrets returns the secret lookup chain: environment first, then the
// keychain when enabled.
func (c *Config) Secrets() secret.SecretStore {
	if c.Keychain {
		return secret.Chain{secret.EnvStore{}, secret.NewKeychainStore()}
	}
	return secret.Chain{secret.EnvStore{}}
}

// LLMProvider picks the extraction provider from the configured API keys.
// Every key is tried before a lookup failure is reported.
func LLMProvider(secrets secret.SecretStore) (string, error) {
	providers := []struct{ env, name string }{
		{EnvDeepSeekAPIKey, "deepseek/deepseek-chat"},
		{EnvOpenAIAPIKey, "openai/gpt-4o"},
	}
	var lookupErr error
	for _, p := range providers {
		v, err := secret.Lookup(secrets, p.env)
		if err != nil {
			if lookupErr == nil {
				lookupErr = err
			}
			continue
		}
		if v != "" {
			return p.name, nil
		}
	}
	missing := &MissingError{Vars: []string{EnvDeepSeekAPIKey, EnvOpenAIAPIKey}, Any: true}
	if lookupErr != nil {
		return "", fmt.Errorf("%w (%v)", missing, lookupErr)
	}
	return "", missing
}
