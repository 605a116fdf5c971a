// Package keychain stores profile passwords in the OS credential store.
//
// Native backends (macOS Keychain, Windows Credential Manager, Secret
// Service, pass) are preferred; an encrypted file under the XDG state dir
// is the last resort. The file backend password comes from
// TDBCTL_KEYRING_PASSWORD or an interactive prompt.
package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"

	"github.com/LLIEPJIOK/tdb-client/internal/xdg"
)

// ServiceName identifies our credential store namespace.
const ServiceName = "tdbctl"

const filePasswordEnv = "TDBCTL_KEYRING_PASSWORD"

var ErrNoPassword = errors.New("no password stored")

// Manager provides thread-safe access to stored passwords.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the OS keyring.
func Open() (*Manager, error) {
	stateDir, err := xdg.StateDir()
	if err != nil {
		return nil, err
	}

	var prompt keyring.PromptFunc = keyring.TerminalPrompt
	if pw := os.Getenv(filePasswordEnv); pw != "" {
		prompt = keyring.FixedStringPrompt(pw)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      ServiceName,
		PassPrefix:       ServiceName,
		WinCredPrefix:    ServiceName,
		FileDir:          filepath.Join(stateDir, "keyring"),
		FilePasswordFunc: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return NewWithRing(ring), nil
}

// NewWithRing wraps an already opened keyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func profileKey(profile string) string {
	return "profile:" + profile
}

func (m *Manager) SavePassword(profile, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ring.Set(keyring.Item{
		Key:   profileKey(profile),
		Data:  []byte(password),
		Label: ServiceName + " " + profile,
	})
}

// LoadPassword returns ErrNoPassword when the profile has no stored password.
func (m *Manager) LoadPassword(profile string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(profileKey(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoPassword, profile)
		}
		return "", err
	}

	return string(it.Data), nil
}

// DeletePassword removes the stored password; a missing entry is not an error.
func (m *Manager) DeletePassword(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.ring.Remove(profileKey(profile))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}

	return nil
}
