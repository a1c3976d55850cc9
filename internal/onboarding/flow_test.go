package onboarding_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/managemyhealth/internal/credential"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/onboarding"
	"github.com/nhle/managemyhealth/internal/portal"
	"github.com/nhle/managemyhealth/internal/store"
	"github.com/nhle/managemyhealth/tests/testutil"
)

type fakeAuth struct {
	err error
}

func (f fakeAuth) Login(ctx context.Context) error { return f.err }

func newFlow(t *testing.T, loginErr error) (*onboarding.Flow, store.Store, *credential.Vault) {
	t.Helper()
	s := testutil.NewTestStore(t)
	v := credential.NewVault(keyring.NewArrayKeyring(nil))
	f := onboarding.NewFlow(s, v, func(portal.Credentials) onboarding.Authenticator {
		return fakeAuth{err: loginErr}
	})
	return f, s, v
}

func TestSubmitCreatesEntry(t *testing.T) {
	f, s, v := newFlow(t, nil)
	ctx := context.Background()

	entry, formErrs, err := f.Submit(ctx, " Pat@Example.com ", "hunter2")
	if err != nil || formErrs != nil {
		t.Fatalf("Submit = %v, %v", formErrs, err)
	}
	if entry.UniqueID != "pat@example.com" || entry.Title != "Pat@Example.com" {
		t.Errorf("entry = %+v", entry)
	}

	stored, err := s.GetEntryByUniqueID(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if stored.ID != entry.ID {
		t.Errorf("stored id = %s, want %s", stored.ID, entry.ID)
	}

	pw, err := v.Password(entry.ID)
	if err != nil || pw != "hunter2" {
		t.Errorf("password = %q, %v", pw, err)
	}

	_, _, err = f.Submit(ctx, "pat@example.com", "hunter2")
	if !errors.Is(err, onboarding.ErrAlreadyConfigured) {
		t.Errorf("second submit err = %v, want ErrAlreadyConfigured", err)
	}
}

func TestSubmitFormErrors(t *testing.T) {
	tests := []struct {
		name     string
		loginErr error
		want     string
	}{
		{"rejected", &portal.Error{Kind: portal.KindAuthentication, Op: "login", StatusCode: 400}, onboarding.ErrInvalidAuth},
		{"unreachable", &portal.Error{Kind: portal.KindCommunication, Op: "login"}, onboarding.ErrCannotConnect},
		{"unexpected", fmt.Errorf("boom"), onboarding.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, s, _ := newFlow(t, tt.loginErr)

			entry, formErrs, err := f.Submit(context.Background(), "pat@example.com", "hunter2")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry != nil {
				t.Errorf("entry = %+v, want nil", entry)
			}
			if formErrs["base"] != tt.want {
				t.Errorf("base error = %q, want %q", formErrs["base"], tt.want)
			}

			entries, _ := s.GetEntries(context.Background())
			if len(entries) != 0 {
				t.Errorf("entries = %+v, want none", entries)
			}
		})
	}
}

func TestSubmitRequiresFields(t *testing.T) {
	f, _, _ := newFlow(t, nil)

	_, formErrs, err := f.Submit(context.Background(), "  ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if formErrs["base"] != onboarding.ErrInvalidAuth {
		t.Errorf("form errors = %v", formErrs)
	}
}

func TestRemove(t *testing.T) {
	f, s, v := newFlow(t, nil)
	ctx := context.Background()

	entry, _, err := f.Submit(ctx, "pat@example.com", "hunter2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.SaveSnapshot(ctx, model.Snapshot{EntryID: entry.ID}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	if err := f.Remove(ctx, entry.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.GetEntry(ctx, entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("entry still present: %v", err)
	}
	if _, err := s.GetSnapshot(ctx, entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot still present: %v", err)
	}
	if _, err := v.Password(entry.ID); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("password still present: %v", err)
	}

	if err := f.Remove(ctx, entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second remove err = %v", err)
	}
}

func TestReauthenticate(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	v := credential.NewVault(keyring.NewArrayKeyring(nil))

	var loginErr error
	f := onboarding.NewFlow(s, v, func(portal.Credentials) onboarding.Authenticator {
		return fakeAuth{err: loginErr}
	})

	entry, _, err := f.Submit(ctx, "pat@example.com", "old")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	loginErr = &portal.Error{Kind: portal.KindAuthentication, Op: "login"}
	formErrs, err := f.Reauthenticate(ctx, entry.ID, "wrong")
	if err != nil || formErrs["base"] != onboarding.ErrInvalidAuth {
		t.Fatalf("Reauthenticate = %v, %v", formErrs, err)
	}
	if pw, _ := v.Password(entry.ID); pw != "old" {
		t.Errorf("password changed on failed login: %q", pw)
	}

	loginErr = nil
	formErrs, err = f.Reauthenticate(ctx, entry.ID, "new")
	if err != nil || formErrs != nil {
		t.Fatalf("Reauthenticate = %v, %v", formErrs, err)
	}
	if pw, _ := v.Password(entry.ID); pw != "new" {
		t.Errorf("password = %q, want new", pw)
	}
}

func TestSubmitAgainstPortal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authaccess_token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("password") != "hunter2" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"abc123","token_type":"bearer"}`)
	}))
	defer srv.Close()

	s := testutil.NewTestStore(t)
	v := credential.NewVault(keyring.NewArrayKeyring(nil))
	f := onboarding.NewFlow(s, v, onboarding.PortalClientFactory(model.PortalConfig{
		BaseURL:    srv.URL,
		TimeoutSec: 1,
	}))

	_, formErrs, err := f.Submit(context.Background(), "pat@example.com", "wrong")
	if err != nil || formErrs["base"] != onboarding.ErrInvalidAuth {
		t.Fatalf("wrong password: %v, %v", formErrs, err)
	}

	entry, formErrs, err := f.Submit(context.Background(), "pat@example.com", "hunter2")
	if err != nil || formErrs != nil {
		t.Fatalf("Submit = %v, %v", formErrs, err)
	}
	if entry == nil || entry.Email != "pat@example.com" {
		t.Errorf("entry = %+v", entry)
	}
}
