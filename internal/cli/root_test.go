package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pipecheck/internal/config"
	"pipecheck/internal/dbclient"
	"pipecheck/internal/domain"
	"pipecheck/internal/service"
	"pipecheck/internal/storage"
)

type mapStore map[string]string

func (m mapStore) Set(key string, value []byte) error { m[key] = string(value); return nil }
func (m mapStore) Get(key string) ([]byte, error) {
	if v, ok := m[key]; ok {
		return []byte(v), nil
	}
	return nil, nil
}
func (m mapStore) Delete(key string) error { delete(m, key); return nil }

// storeWithout rejects the listed columns.
type storeWithout map[string]bool

func (s storeWithout) TestConnection(ctx context.Context) error { return nil }
func (s storeWithout) Close() error                            { return nil }
func (s storeWithout) Select(ctx context.Context, table string, columns []string, limit int) (*dbclient.QueryPage, error) {
	for _, c := range columns {
		if s[c] {
			return nil, &dbclient.QueryError{Table: table, Message: "column " + table + "." + c + " does not exist"}
		}
	}
	return &dbclient.QueryPage{Columns: columns}, nil
}

// newTestApp returns an app wired to an in-memory store and a temp history.
func newTestApp(t *testing.T, secrets mapStore, store storeWithout) (*app, *strings.Builder) {
	t.Helper()
	for _, k := range []string{config.EnvDriver, config.EnvSupabaseURL, config.EnvSupabaseKey, config.EnvDatabaseURL, config.EnvMongoURI} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv(config.EnvSupabaseURL, "https://abc.supabase.co")
	t.Setenv(config.EnvHistory, filepath.Join(t.TempDir(), "history.db"))

	out := &strings.Builder{}
	a := &app{stdin: strings.NewReader(""), stdout: out, stderr: &strings.Builder{}, secrets: secrets}
	a.options = service.Options{
		Connect: func(*domain.DatabaseConnection, string) (dbclient.Connector, error) { return store, nil },
	}
	return a, out
}

func args(t *testing.T, extra ...string) []string {
	return append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, extra...)
}

func TestRoot_ValidatesMappingByDefault(t *testing.T) {
	a, out := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{})

	if code := a.execute(context.Background(), args(t)); code != 0 {
		t.Fatalf("exit %d, output:\n%s", code, out)
	}
	if !strings.HasPrefix(out.String(), "  OK: All direct-mapped columns exist in business_listings") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out.String(), "    business_name             → company_name") {
		t.Errorf("missing aligned mapping row:\n%s", out)
	}
}

func TestRoot_MissingCredentialsExits2(t *testing.T) {
	a, out := newTestApp(t, mapStore{}, storeWithout{})

	if code := a.execute(context.Background(), args(t)); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if out.String() != "FAIL: SUPABASE_URL or SUPABASE_SERVICE_KEY not set\n" {
		t.Errorf("output: %q", out)
	}
}

func TestRoot_SchemaMismatchExits1(t *testing.T) {
	a, out := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{"annual_recurring_revenue": true})

	if code := a.execute(context.Background(), args(t, "validate")); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	want := "  FAIL: Column check failed — column business_listings.annual_recurring_revenue does not exist\n"
	if out.String() != want {
		t.Errorf("output: %q", out)
	}
}

func TestTables_FailureExits1(t *testing.T) {
	a, out := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{"focus_industries": true})

	if code := a.execute(context.Background(), args(t, "tables")); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Result: 3 passed, 1 failed") {
		t.Errorf("output:\n%s", out)
	}
}

func TestHistory_ListsRecordedRuns(t *testing.T) {
	a, _ := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{})
	if code := a.execute(context.Background(), args(t)); code != 0 {
		t.Fatalf("validate exit %d", code)
	}

	out := &strings.Builder{}
	b := &app{stdin: strings.NewReader(""), stdout: out, stderr: &strings.Builder{}}
	if code := b.execute(context.Background(), args(t, "history", "--check", "mapping")); code != 0 {
		t.Fatalf("history exit %d", code)
	}
	if !strings.Contains(out.String(), "mapping") || !strings.Contains(out.String(), "validated") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestSecret_SetAndDelete(t *testing.T) {
	secrets := mapStore{}
	a, out := newTestApp(t, secrets, storeWithout{})
	a.stdin = strings.NewReader("from-stdin\n")

	if code := a.execute(context.Background(), []string{"secret", "set", "SUPABASE_SERVICE_KEY"}); code != 0 {
		t.Fatalf("set exit %d", code)
	}
	if secrets["SUPABASE_SERVICE_KEY"] != "from-stdin" {
		t.Errorf("stored %q", secrets["SUPABASE_SERVICE_KEY"])
	}
	if code := a.execute(context.Background(), []string{"secret", "delete", "SUPABASE_SERVICE_KEY"}); code != 0 {
		t.Fatalf("delete exit %d", code)
	}
	if _, ok := secrets["SUPABASE_SERVICE_KEY"]; ok {
		t.Error("secret not deleted")
	}
	if !strings.Contains(out.String(), "Deleted SUPABASE_SERVICE_KEY") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRoot_BadLogLevelExits2(t *testing.T) {
	a, _ := newTestApp(t, mapStore{}, storeWithout{})
	if code := a.execute(context.Background(), args(t, "--log-level", "chatty")); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}

func TestPing(t *testing.T) {
	a, out := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{})
	if code := a.execute(context.Background(), args(t, "ping")); code != 0 {
		t.Fatalf("exit %d, output:\n%s", code, out)
	}
	if out.String() != "OK: connected to postgrest store\n" {
		t.Errorf("output: %q", out)
	}

	a, out = newTestApp(t, mapStore{}, storeWithout{})
	if code := a.execute(context.Background(), args(t, "ping")); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}

func TestRoot_NoHistorySkipsRecording(t *testing.T) {
	a, out := newTestApp(t, mapStore{config.EnvSupabaseKey: "svc"}, storeWithout{})
	if code := a.execute(context.Background(), args(t, "--no-history")); code != 0 {
		t.Fatalf("exit %d, output:\n%s", code, out)
	}
	if _, err := os.Stat(os.Getenv(config.EnvHistory)); !os.IsNotExist(err) {
		t.Errorf("history database created: %v", err)
	}
}

func TestHistoryPrune(t *testing.T) {
	a, out := newTestApp(t, mapStore{}, storeWithout{})

	db, err := storage.New(os.Getenv(config.EnvHistory))
	if err != nil {
		t.Fatal(err)
	}
	h := storage.NewHistoryStore(db)
	old := time.Now().Add(-72 * time.Hour)
	for _, r := range []*domain.CheckRun{
		{Check: domain.CheckMapping, Outcome: domain.OutcomeValidated, StartedAt: old},
		{Check: domain.CheckTables, Outcome: domain.OutcomePassed},
	} {
		if err := h.CreateRun(r); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	if code := a.execute(context.Background(), args(t, "history", "prune", "--older-than", "24h")); code != 0 {
		t.Fatalf("exit %d, output:\n%s", code, out)
	}
	if out.String() != "Pruned 1 runs older than 24h0m0s\n" {
		t.Errorf("output: %q", out)
	}
}
