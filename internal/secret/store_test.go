package secret_test

import (
	"errors"
	"testing"

	"pipecheck/internal/secret"
)

// memStore is an in-memory SecretStore for tests.
type memStore map[string][]byte

func (m memStore) Set(key string, value []byte) error { m[key] = value; return nil }
func (m memStore) Get(key string) ([]byte, error)     { return m[key], nil }
func (m memStore) Delete(key string) error            { delete(m, key); return nil }

func TestEnvStore_Get(t *testing.T) {
	t.Setenv("PIPECHECK_TEST_SECRET", "s3cret")
	t.Setenv("PIPECHECK_TEST_EMPTY", "")

	v, err := secret.EnvStore{}.Get("PIPECHECK_TEST_SECRET")
	if err != nil || string(v) != "s3cret" {
		t.Fatalf("got %q, %v", v, err)
	}
	v, _ = secret.EnvStore{}.Get("PIPECHECK_TEST_EMPTY")
	if v != nil {
		t.Errorf("empty variable should read as absent, got %q", v)
	}
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	first := memStore{}
	second := memStore{"SUPABASE_SERVICE_KEY": []byte("from-keychain")}
	chain := secret.Chain{first, second}

	v, err := secret.Lookup(chain, "SUPABASE_SERVICE_KEY")
	if err != nil || v != "from-keychain" {
		t.Fatalf("got %q, %v", v, err)
	}

	first["SUPABASE_SERVICE_KEY"] = []byte("from-env")
	v, _ = secret.Lookup(chain, "SUPABASE_SERVICE_KEY")
	if v != "from-env" {
		t.Errorf("earlier store should win, got %q", v)
	}

	v, _ = secret.Lookup(chain, "MISSING")
	if v != "" {
		t.Errorf("missing key: %q", v)
	}
}

// brokenStore fails every read, like a keychain on a machine without one.
type brokenStore struct{}

func (brokenStore) Set(string, []byte) error   { return errors.New("unavailable") }
func (brokenStore) Get(string) ([]byte, error) { return nil, errors.New("unavailable") }
func (brokenStore) Delete(string) error        { return errors.New("unavailable") }

func TestChain_SkipsFailingStore(t *testing.T) {
	chain := secret.Chain{brokenStore{}, memStore{"OPENAI_API_KEY": []byte("sk-test")}}

	v, err := secret.Lookup(chain, "OPENAI_API_KEY")
	if err != nil || v != "sk-test" {
		t.Fatalf("got %q, %v", v, err)
	}

	// With nothing found anywhere the store error surfaces.
	if _, err := secret.Lookup(chain, "DEEPSEEK_API_KEY"); err == nil {
		t.Error("expected the failing store's error")
	}
}

func TestChain_WritesGoToLastStore(t *testing.T) {
	first, last := memStore{}, memStore{}
	chain := secret.Chain{first, last}

	if err := chain.Set("K", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok := first["K"]; ok {
		t.Error("first store should not be written")
	}
	if string(last["K"]) != "v" {
		t.Errorf("last store: %q", last["K"])
	}
	chain.Delete("K")
	if _, ok := last["K"]; ok {
		t.Error("delete did not reach last store")
	}
}
