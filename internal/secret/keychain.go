package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "pipecheck"

// notFoundExit is what `security` returns when an item does not exist.
const notFoundExit = 44

// runFunc executes a command and returns what it printed.
type runFunc func(name string, args ...string) ([]byte, error)

func execRun(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// execOutput returns stdout only; stderr is kept on the *exec.ExitError.
func execOutput(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool. Entries live under the "pipecheck" service
// with the variable name as the account.
type KeychainStore struct {
	service string
	run     runFunc // Set, Delete
	output  runFunc // Get
}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: keychainService, run: execRun, output: execOutput}
}

// Set stores a secret, replacing any existing value.
func (k *KeychainStore) Set(key string, value []byte) error {
	out, err := k.run("security", "add-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", string(value),
		"-U",
	)
	if err != nil {
		return fmt.Errorf("keychain set %s: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret. A missing item is not an error.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.output("security", "find-generic-password",
		"-a", key,
		"-s", k.service,
		"-w",
	)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("keychain get %s: %s: %w", key, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret. Deleting a missing item succeeds.
func (k *KeychainStore) Delete(key string) error {
	out, err := k.run("security", "delete-generic-password",
		"-a", key,
		"-s", k.service,
	)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("keychain delete %s: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func isNotFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == notFoundExit
}
