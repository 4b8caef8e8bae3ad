package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pipecheck/internal/config"
	"pipecheck/internal/domain"
	"pipecheck/internal/schema"
	"pipecheck/internal/secret"
)

// clearEnv unsets the given variables for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var storeVars = []string{
	config.EnvDriver, config.EnvHistory, config.EnvSupabaseURL, config.EnvSupabaseKey,
	config.EnvDatabaseURL, config.EnvDatabasePass, config.EnvMongoURI, config.EnvMongoDatabase,
	config.EnvMongoPassword, config.EnvDeepSeekAPIKey, config.EnvOpenAIAPIKey,
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, storeVars...)

	cfg, err := config.Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != domain.DatabaseDriverPostgREST {
		t.Errorf("driver: %s", cfg.Store.Driver)
	}
	if cfg.Store.KeyName != config.EnvSupabaseKey {
		t.Errorf("key name: %s", cfg.Store.KeyName)
	}
	if diff := cmp.Diff(schema.DefaultMapping(), cfg.Mapping); diff != "" {
		t.Errorf("mapping (-want +got):\n%s", diff)
	}
	if len(cfg.Tables) != 4 {
		t.Errorf("tables: %d", len(cfg.Tables))
	}
	if cfg.Crawl.URL != config.DefaultCrawlURL || cfg.Crawl.MinWords != 50 || cfg.Crawl.Engine != config.EngineBrowser {
		t.Errorf("crawl: %+v", cfg.Crawl)
	}
	if cfg.Watch.Schedule != config.DefaultSchedule {
		t.Errorf("schedule: %s", cfg.Watch.Schedule)
	}
	if cfg.History.Path != config.DefaultHistoryPath {
		t.Errorf("history: %s", cfg.History.Path)
	}
	if cfg.History.Retention != config.DefaultRetention {
		t.Errorf("retention: %s", cfg.History.Retention)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t, storeVars...)
	envFile := writeFile(t, ".env", "SUPABASE_URL=https://abc.supabase.co\nSUPABASE_SERVICE_KEY=svc\n")
	t.Cleanup(func() {
		os.Unsetenv(config.EnvSupabaseURL)
		os.Unsetenv(config.EnvSupabaseKey)
	})

	cfg, err := config.Load("", envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	conn, key, err := cfg.Connection(secret.EnvStore{})
	if err != nil {
		t.Fatalf("Connection: %v", err)
	}
	if conn.URL != "https://abc.supabase.co" || key != "svc" {
		t.Errorf("got %s / %s", conn.URL, key)
	}
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	clearEnv(t, storeVars...)
	if _, err := config.Load("", filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t, storeVars...)
	t.Setenv(config.EnvDatabaseURL, "postgres://u:p@db/listings")

	path := writeFile(t, "pipecheck.yaml", `
store:
  driver: postgres
mapping:
  direct:
    name: company_name
    price: asking_price
  overflow: [mrr]
crawl:
  engine: http
  min_words: 10
watch:
  schedule: "*/5 * * * *"
history:
  retention: 168h
`)
	cfg, err := config.Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.URL != "postgres://u:p@db/listings" {
		t.Errorf("url from env: %q", cfg.Store.URL)
	}
	if cfg.Store.KeyName != config.EnvDatabasePass {
		t.Errorf("key name: %s", cfg.Store.KeyName)
	}
	want := schema.DirectMap{{Field: "name", Column: "company_name"}, {Field: "price", Column: "asking_price"}}
	if diff := cmp.Diff(want, cfg.Mapping.Direct); diff != "" {
		t.Errorf("direct (-want +got):\n%s", diff)
	}
	if cfg.Crawl.Engine != config.EngineHTTP || cfg.Crawl.MinWords != 10 {
		t.Errorf("crawl: %+v", cfg.Crawl)
	}
	if cfg.Path != path {
		t.Errorf("path: %s", cfg.Path)
	}
	if cfg.History.Retention != 7*24*time.Hour {
		t.Errorf("retention: %s", cfg.History.Retention)
	}

	// Postgres connections need no password when the URL carries one.
	if _, _, err := cfg.Connection(secret.EnvStore{}); err != nil {
		t.Errorf("Connection: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":   "store:\n  driver: oracle\n",
		"unknown field":    "stroe:\n  driver: postgres\n",
		"bad engine":       "crawl:\n  engine: curl\n",
		"bad schedule":     "watch:\n  schedule: every now and then\n",
		"overlap":          "mapping:\n  direct:\n    mrr: mrr\n  overflow: [mrr]\n",
		"table no columns": "tables:\n  - name: sources\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t, storeVars...)
			if _, err := config.Load(writeFile(t, "c.yaml", body), ""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestConnection_MissingCredentials(t *testing.T) {
	clearEnv(t, storeVars...)

	cfg, err := config.Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, _, err = cfg.Connection(secret.EnvStore{})
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	var me *config.MissingError
	if !errors.As(err, &me) || me.Vars[0] != config.EnvSupabaseURL {
		t.Errorf("missing vars: %+v", me)
	}

	// URL alone is not enough.
	t.Setenv(config.EnvSupabaseURL, "https://abc.supabase.co")
	cfg, _ = config.Load("", "")
	if _, _, err := cfg.Connection(secret.EnvStore{}); !errors.Is(err, config.ErrMissingCredentials) {
		t.Errorf("expected missing key, got %v", err)
	}
}

func TestLLMProvider(t *testing.T) {
	clearEnv(t, storeVars...)

	if _, err := config.LLMProvider(secret.EnvStore{}); !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	t.Setenv(config.EnvOpenAIAPIKey, "sk-openai")
	if p, _ := config.LLMProvider(secret.EnvStore{}); p != "openai/gpt-4o" {
		t.Errorf("openai: %s", p)
	}

	t.Setenv(config.EnvDeepSeekAPIKey, "sk-deepseek")
	if p, _ := config.LLMProvider(secret.EnvStore{}); p != "deepseek/deepseek-chat" {
		t.Errorf("deepseek should win: %s", p)
	}
}

// lockedKeychain fails every lookup.
type lockedKeychain struct{}

func (lockedKeychain) Set(string, []byte) error   { return errors.New("keychain locked") }
func (lockedKeychain) Get(string) ([]byte, error) { return nil, errors.New("keychain locked") }
func (lockedKeychain) Delete(string) error        { return errors.New("keychain locked") }

func TestLLMProvider_KeychainFailureFallsBackToEnv(t *testing.T) {
	clearEnv(t, storeVars...)
	t.Setenv(config.EnvOpenAIAPIKey, "sk-test")

	// Same order as Config.Secrets with the keychain enabled.
	secrets := secret.Chain{secret.EnvStore{}, lockedKeychain{}}
	p, err := config.LLMProvider(secrets)
	if err != nil {
		t.Fatalf("LLMProvider: %v", err)
	}
	if p != "openai/gpt-4o" {
		t.Errorf("provider: %s", p)
	}

	os.Unsetenv(config.EnvOpenAIAPIKey)
	_, err = config.LLMProvider(secrets)
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if !strings.Contains(err.Error(), "keychain locked") {
		t.Errorf("lookup failure not reported: %v", err)
	}
}

func TestConnection_KeychainFailureFallsBackToEnv(t *testing.T) {
	clearEnv(t, storeVars...)
	t.Setenv(config.EnvSupabaseURL, "https://abc.supabase.co")
	t.Setenv(config.EnvSupabaseKey, "svc")

	cfg, err := config.Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, key, err := cfg.Connection(secret.Chain{secret.EnvStore{}, lockedKeychain{}})
	if err != nil || key != "svc" {
		t.Fatalf("got %q, %v", key, err)
	}
}
