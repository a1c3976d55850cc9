package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "managemyhealth"

// ErrNotFound is returned when no password is stored for an entry.
var ErrNotFound = errors.New("credential not found")

// Vault stores portal passwords in the system keyring, keyed by entry ID.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the platform keyring, falling back to an
// encrypted file under ~/.config/managemyhealth/credentials.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/managemyhealth/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("managemyhealth-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps an existing keyring, e.g. keyring.NewArrayKeyring in tests.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

func passwordKey(entryID string) string {
	return "mmh-" + entryID
}

// Password retrieves the stored password for an entry.
func (v *Vault) Password(entryID string) (string, error) {
	item, err := v.ring.Get(passwordKey(entryID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting password for entry %s: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting password for entry %s: %w", entryID, err)
	}

	return string(item.Data), nil
}

// SetPassword stores the password for an entry, replacing any previous one.
func (v *Vault) SetPassword(entryID, password string) error {
	err := v.ring.Set(keyring.Item{
		Key:   passwordKey(entryID),
		Data:  []byte(password),
		Label: "ManageMyHealth password",
	})
	if err != nil {
		return fmt.Errorf("setting password for entry %s: %w", entryID, err)
	}

	return nil
}

// DeletePassword removes the stored password for an entry. Deleting a
// missing password is not an error.
func (v *Vault) DeletePassword(entryID string) error {
	err := v.ring.Remove(passwordKey(entryID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting password for entry %s: %w", entryID, err)
	}

	return nil
}
