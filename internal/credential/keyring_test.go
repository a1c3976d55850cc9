package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	if _, err := v.Password("e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := v.SetPassword("e1", "hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := v.Password("e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("password = %q", got)
	}

	if err := v.DeletePassword("e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := v.DeletePassword("e1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, err := v.Password("e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
