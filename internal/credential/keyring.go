// Package credential keeps mailbox passwords out of the config file.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "swipemail"

// PasswordEnv overrides every other password source.
const PasswordEnv = "SWIPEMAIL_MAIL_PASSWORD"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = errors.New("credential not found")

// open is swapped in tests.
var open = openKeyring

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/swipemail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("swipemail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// MailKey is the keyring key for a mailbox account.
func MailKey(username string) string {
	return "imap:" + strings.ToLower(strings.TrimSpace(username))
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "swipemail " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// MailPassword resolves the IMAP password for username: the environment
// first, then the configured value, then the keyring.
func MailPassword(username, configured string) (string, error) {
	if v := os.Getenv(PasswordEnv); v != "" {
		return v, nil
	}
	if configured != "" {
		return configured, nil
	}
	if strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("no mail username configured")
	}
	pw, err := Get(MailKey(username))
	if err != nil {
		return "", fmt.Errorf("looking up password for %s: %w", username, err)
	}
	return pw, nil
}
