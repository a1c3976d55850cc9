// Package onboarding validates portal credentials and registers new
// accounts.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nhle/managemyhealth/internal/credential"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/portal"
	"github.com/nhle/managemyhealth/internal/store"
)

// ErrAlreadyConfigured is returned when the account already has an entry.
var ErrAlreadyConfigured = errors.New("account already configured")

// Form error codes, keyed under "base" like the host's setup forms.
const (
	ErrInvalidAuth   = "invalid_auth"
	ErrCannotConnect = "cannot_connect"
	ErrUnknown       = "unknown"
)

// FormErrors maps a field name ("base" for form-wide) to an error code.
type FormErrors map[string]string

// Authenticator checks credentials against the portal.
type Authenticator interface {
	Login(ctx context.Context) error
}

// ClientFactory builds an Authenticator for a set of credentials.
type ClientFactory func(creds portal.Credentials) Authenticator

// PortalClientFactory returns a ClientFactory producing portal clients
// with the given configuration.
func PortalClientFactory(cfg model.PortalConfig) ClientFactory {
	return func(creds portal.Credentials) Authenticator {
		return portal.NewClient(cfg, creds)
	}
}

// Flow registers accounts. A successful submission persists the entry in
// the store and the password in the vault.
type Flow struct {
	store     store.Store
	vault     *credential.Vault
	newClient ClientFactory
}

// NewFlow creates a Flow.
func NewFlow(s store.Store, v *credential.Vault, f ClientFactory) *Flow {
	return &Flow{store: s, vault: v, newClient: f}
}

// UniqueID derives the account identity from the login email.
func UniqueID(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Submit validates the credentials by logging in. Rejected or unreachable
// logins are reported through FormErrors so the form can be shown again;
// the returned error is reserved for aborts and local failures.
func (f *Flow) Submit(
	ctx context.Context,
	email, password string,
) (*model.Entry, FormErrors, error) {
	email = strings.TrimSpace(email)
	uid := UniqueID(email)
	if uid == "" || password == "" {
		return nil, FormErrors{"base": ErrInvalidAuth}, nil
	}

	_, err := f.store.GetEntryByUniqueID(ctx, uid)
	switch {
	case err == nil:
		return nil, nil, ErrAlreadyConfigured
	case !errors.Is(err, store.ErrNotFound):
		return nil, nil, fmt.Errorf("checking existing entry: %w", err)
	}

	client := f.newClient(portal.Credentials{Email: email, Password: password})
	if err := client.Login(ctx); err != nil {
		return nil, formErrors(err), nil
	}

	entry, err := f.store.UpsertEntry(ctx, model.Entry{
		UniqueID: uid,
		Email:    email,
		Title:    email,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("saving entry: %w", err)
	}

	if err := f.vault.SetPassword(entry.ID, password); err != nil {
		if delErr := f.store.DeleteEntry(ctx, entry.ID); delErr != nil {
			log.Printf("onboarding: rolling back entry %s: %v", entry.ID, delErr)
		}
		return nil, nil, fmt.Errorf("saving password: %w", err)
	}

	return &entry, nil, nil
}

// Reauthenticate validates a new password for an existing entry and
// stores it on success.
func (f *Flow) Reauthenticate(
	ctx context.Context,
	entryID, password string,
) (FormErrors, error) {
	entry, err := f.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("loading entry: %w", err)
	}

	client := f.newClient(portal.Credentials{Email: entry.Email, Password: password})
	if err := client.Login(ctx); err != nil {
		return formErrors(err), nil
	}

	if err := f.vault.SetPassword(entry.ID, password); err != nil {
		return nil, fmt.Errorf("saving password: %w", err)
	}
	return nil, nil
}

// Remove unloads an entry: its password, snapshot, notifications and the
// entry itself.
func (f *Flow) Remove(ctx context.Context, entryID string) error {
	if _, err := f.store.GetEntry(ctx, entryID); err != nil {
		return fmt.Errorf("removing entry: %w", err)
	}
	if err := f.vault.DeletePassword(entryID); err != nil {
		return fmt.Errorf("removing entry: %w", err)
	}
	if err := f.store.DeleteEntry(ctx, entryID); err != nil {
		return fmt.Errorf("removing entry: %w", err)
	}
	return nil
}

func formErrors(err error) FormErrors {
	switch portal.KindOf(err) {
	case portal.KindAuthentication:
		log.Printf("onboarding: %v", err)
		return FormErrors{"base": ErrInvalidAuth}
	case portal.KindCommunication:
		log.Printf("onboarding: %v", err)
		return FormErrors{"base": ErrCannotConnect}
	default:
		log.Printf("onboarding: unexpected error: %+v", err)
		return FormErrors{"base": ErrUnknown}
	}
}

// Message returns the user-facing text for a form error code.
func Message(code string) string {
	switch code {
	case ErrInvalidAuth:
		return "Invalid email or password."
	case ErrCannotConnect:
		return "Could not connect to ManageMyHealth. Try again later."
	default:
		return "Unexpected error. Check the log for details."
	}
}
