package app

import (
	"context"
	"fmt"
	"log"

	"github.com/nhle/managemyhealth/internal/credential"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/portal"
	"github.com/nhle/managemyhealth/internal/store"
	appsync "github.com/nhle/managemyhealth/internal/sync"
)

// NewFetcher builds the portal client for an entry, loading its password
// from the vault.
func NewFetcher(
	v *credential.Vault,
	cfg model.PortalConfig,
	entry model.Entry,
) (*portal.Client, error) {
	password, err := v.Password(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials for %s: %w", entry.Email, err)
	}
	return portal.NewClient(cfg, portal.Credentials{
		Email:    entry.Email,
		Password: password,
	}), nil
}

// RegisterEntries registers every stored entry with the poller. Entries
// whose password is missing from the vault are skipped. It returns the
// number registered.
func RegisterEntries(
	ctx context.Context,
	s store.Store,
	v *credential.Vault,
	p *appsync.Poller,
	cfg model.PortalConfig,
) (int, error) {
	entries, err := s.GetEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading entries: %w", err)
	}

	registered := 0
	for _, e := range entries {
		client, err := NewFetcher(v, cfg, e)
		if err != nil {
			log.Printf("skipping entry %q (%s): %v", e.Title, e.ID, err)
			continue
		}
		p.RegisterEntry(e.ID, client)
		registered++
	}

	return registered, nil
}
