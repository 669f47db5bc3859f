// Package credential resolves account passwords stored in the OS keyring.
package credential

import (
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// Prefix marks a password that should be looked up in the keyring
const Prefix = "keyring:"

// Resolver looks up keyring references in stored passwords
type Resolver struct {
	open func() (keyring.Keyring, error)
	ring keyring.Keyring
}

// NewResolver returns a resolver backed by the system keyring for service
func NewResolver(service string) *Resolver {
	return &Resolver{
		open: func() (keyring.Keyring, error) {
			return openKeyring(service)
		},
	}
}

// NewResolverWithKeyring returns a resolver backed by ring
func NewResolverWithKeyring(ring keyring.Keyring) *Resolver {
	return &Resolver{ring: ring}
}

// openKeyring returns a configured keyring instance.
func openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Resolve returns stored unchanged unless it starts with "keyring:", in which
// case the rest is the keyring key to read. The keyring is opened lazily.
func (r *Resolver) Resolve(stored string) (string, error) {
	key, ok := strings.CutPrefix(stored, Prefix)
	if !ok {
		return stored, nil
	}
	if key == "" {
		return "", fmt.Errorf("empty keyring key")
	}

	if r.ring == nil {
		ring, err := r.open()
		if err != nil {
			return "", err
		}
		r.ring = ring
	}

	item, err := r.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key
func (r *Resolver) Set(key, value string) error {
	if r.ring == nil {
		ring, err := r.open()
		if err != nil {
			return err
		}
		r.ring = ring
	}

	if err := r.ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
