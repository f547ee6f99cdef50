// Package crypto provides age encryption of archived task parameters.
package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// KeyManager loads or creates the daemon's age identity.
type KeyManager struct {
	identityPath string
	identity     *age.X25519Identity
}

// NewKeyManager creates a KeyManager for the identity file at path.
func NewKeyManager(identityPath string) *KeyManager {
	return &KeyManager{identityPath: identityPath}
}

// Initialize loads an existing identity or generates a new one.
func (km *KeyManager) Initialize() error {
	if _, err := os.Stat(km.identityPath); err == nil {
		return km.load()
	}
	return km.generate()
}

func (km *KeyManager) generate() error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(km.identityPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	content := fmt.Sprintf("# created: botmind\n# public key: %s\n%s\n",
		identity.Recipient().String(),
		identity.String(),
	)
	if err := os.WriteFile(km.identityPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}

	km.identity = identity
	return nil
}

func (km *KeyManager) load() error {
	data, err := os.ReadFile(km.identityPath)
	if err != nil {
		return fmt.Errorf("failed to read identity file: %w", err)
	}
	identity, err := ParseIdentity(string(data))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", km.identityPath, err)
	}
	km.identity = identity
	return nil
}

// PublicKey returns the recipient string, empty before Initialize.
func (km *KeyManager) PublicKey() string {
	if km.identity == nil {
		return ""
	}
	return km.identity.Recipient().String()
}

// PublicKeyHint returns a shortened public key for identification.
func (km *KeyManager) PublicKeyHint() string {
	pk := km.PublicKey()
	if len(pk) > 12 {
		return pk[:12] + "..."
	}
	return pk
}

// Identity returns the underlying age identity.
func (km *KeyManager) Identity() *age.X25519Identity {
	return km.identity
}

// ParseIdentity reads the first identity line, skipping comments.
func ParseIdentity(data string) (*age.X25519Identity, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity: %w", err)
		}
		return identity, nil
	}
	return nil, fmt.Errorf("no identity found")
}
