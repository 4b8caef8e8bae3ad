package secret

import "os"

// SecretStore provides a pluggable interface for storing sensitive data
// such as the Supabase service key or database passwords.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// EnvStore reads secrets from the process environment. A .env file is
// expected to have been loaded into the environment already.
type EnvStore struct{}

func (EnvStore) Set(key string, value []byte) error { return os.Setenv(key, string(value)) }

func (EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

func (EnvStore) Delete(key string) error { return os.Unsetenv(key) }

// Chain looks a key up in each store in order. Writes go to the last store,
// which is normally the persistent one.
type Chain []SecretStore

// Get returns the first non-empty value. A failing store is skipped; its
// error is returned only when no store has the key.
func (c Chain) Get(key string) ([]byte, error) {
	var firstErr error
	for _, s := range c {
		v, err := s.Get(key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(v) > 0 {
			return v, nil
		}
	}
	return nil, firstErr
}

func (c Chain) Set(key string, value []byte) error {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1].Set(key, value)
}

func (c Chain) Delete(key string) error {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1].Delete(key)
}

// Lookup returns the secret for key as a string, or "" when absent.
func Lookup(s SecretStore, key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
