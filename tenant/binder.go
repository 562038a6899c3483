// Package tenant derives the active organization from the current
// credential and caches it for the lifetime of that credential.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hrdesk/api"
	"hrdesk/domain"
	"hrdesk/errors"
)

// CredentialSource yields the credential of the active session.
// Implemented by session.Manager.
type CredentialSource interface {
	Credential() (domain.Credential, bool)
}

// Binder caches the organization owned by the current credential.
// It implements session.Hook: Bind runs when the session becomes
// Authenticated, Unbind runs synchronously on every other transition so
// no screen observes a stale tenant. A fetch failure is non-fatal to
// authentication: identity and tenant binding are separate concerns
// server-side.
type Binder struct {
	directory api.Directory
	source    CredentialSource
	log       *slog.Logger

	mu    sync.Mutex
	org   *domain.Organization
	err   error
	epoch uint64
}

func NewBinder(directory api.Directory, source CredentialSource, log *slog.Logger) *Binder {
	return &Binder{directory: directory, source: source, log: log}
}

func (b *Binder) OnAuthenticated(ctx context.Context, cred domain.Credential) {
	b.bind(ctx, cred)
}

func (b *Binder) OnUnauthenticated() {
	b.Unbind()
}

// Unbind drops the cached organization. No network call: it must
// complete before any observer sees the session leave Authenticated.
// It also invalidates any in-flight fetch so a slow response cannot
// reinstall an organization after the session left Authenticated.
func (b *Binder) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch++
	b.org = nil
	b.err = nil
}

// Refresh re-fetches the organization on demand without touching the
// session. Returns the fetch error, which is also retained for Current.
func (b *Binder) Refresh(ctx context.Context) error {
	cred, ok := b.source.Credential()
	if !ok {
		return fmt.Errorf("%w: no active session", errors.ErrOrganizationFetch)
	}
	return b.bind(ctx, cred)
}

// Current returns the cached organization, nil outside Authenticated,
// along with the last fetch error if the lookup failed.
func (b *Binder) Current() (*domain.Organization, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.org == nil {
		return nil, b.err
	}
	org := *b.org
	return &org, b.err
}

func (b *Binder) bind(ctx context.Context, cred domain.Credential) error {
	b.mu.Lock()
	b.epoch++
	myEpoch := b.epoch
	b.mu.Unlock()

	org, err := b.directory.MyOrganization(ctx, cred)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.epoch != myEpoch {
		// An unbind (or newer bind) owns the cache now; this response
		// describes a credential that is no longer current.
		b.log.Debug("dropping stale organization response")
		return nil
	}
	if err != nil {
		b.org = nil
		b.err = fmt.Errorf("%w: %w", errors.ErrOrganizationFetch, err)
		b.log.Warn("organization lookup failed", "error", err)
		return b.err
	}
	b.org = &org
	b.err = nil
	return nil
}
