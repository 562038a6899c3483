// Package session owns the client session state machine: credential
// validation on load, sign-in/out/verify/invite transitions, and the
// subscription mechanism screens observe. Consumers receive immutable
// Session snapshots; nobody reaches into shared mutable state.
package session

import (
	"context"
	goerrors "errors"
	"log/slog"
	"sync"

	"hrdesk/api"
	"hrdesk/auth"
	"hrdesk/domain"
	"hrdesk/errors"
	"hrdesk/repositories"
)

// Listener receives a Session snapshot after every transition.
type Listener func(domain.Session)

// Hook observes transitions before any Listener. The tenant binder
// implements it so no subscriber can see Authenticated paired with a
// stale or missing organization.
type Hook interface {
	OnAuthenticated(ctx context.Context, cred domain.Credential)
	OnUnauthenticated()
}

// Manager is the single owner of the process-wide session. It is the
// only writer of the credential store; every other component treats the
// store as read-only.
type Manager struct {
	identity api.Identity
	store    repositories.ICredentialRepository
	log      *slog.Logger

	// notifyMu serializes transitions so observers see them in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	session   domain.Session
	cred      domain.Credential
	seq       uint64
	hook      Hook
	listeners map[int]Listener
	nextID    int
}

func NewManager(identity api.Identity, store repositories.ICredentialRepository, log *slog.Logger) *Manager {
	return &Manager{
		identity:  identity,
		store:     store,
		log:       log,
		session:   domain.Session{State: domain.StateIdle},
		listeners: map[int]Listener{},
	}
}

// SetHook attaches the transition hook. Must be called before the first
// transition; typically right after construction.
func (m *Manager) SetHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

// Subscribe registers a listener and returns its unsubscribe function.
// The listener is immediately called with the current snapshot, under
// the same notification lock transitions use, so the initial snapshot
// cannot interleave with a concurrent transition's notification.
func (m *Manager) Subscribe(fn Listener) func() {
	m.notifyMu.Lock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	current := m.session
	m.mu.Unlock()

	fn(current)
	m.notifyMu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Credential exposes the transient credential copy for components that
// attach it to requests. ok is false outside Authenticated.
func (m *Manager) Credential() (domain.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.session.State == domain.StateAuthenticated && m.cred != ""
}

// CheckSession validates the stored credential on application start.
// No stored credential means Unauthenticated without a network call.
// A stored but unverifiable credential is cleared and discarded: it must
// never be treated as authenticated.
func (m *Manager) CheckSession(ctx context.Context) {
	stored, ok, err := m.store.Load()
	if err != nil {
		m.log.Warn("credential store unreadable, treating as signed out", "error", err)
		m.clearAndSignOut(ctx, nil)
		return
	}
	if !ok {
		m.transition(ctx, domain.Session{State: domain.StateUnauthenticated}, "")
		return
	}

	mySeq := m.beginAttempt()
	m.transitionIf(ctx, domain.Session{State: domain.StateChecking}, "", &mySeq)

	user, err := m.identity.Me(ctx, stored.Token)
	if !m.attemptCurrent(mySeq) {
		// A later operation (sign-out, sign-in) owns the state now.
		m.log.Debug("dropping stale validation response", "seq", mySeq)
		return
	}
	if err != nil {
		m.log.Info("stored credential rejected or unverifiable", "error", err)
		var surfaced error
		if goerrors.Is(err, errors.ErrSessionExpired) {
			surfaced = errors.ErrSessionExpired
		}
		if clearErr := m.store.Clear(); clearErr != nil {
			m.log.Warn("local credential clear failed", "error", clearErr)
		}
		m.transitionIf(ctx, domain.Session{State: domain.StateUnauthenticated, Err: surfaced}, "", &mySeq)
		return
	}

	m.cacheAndAuthenticate(ctx, stored.Token, user, mySeq)
}

// Refresh re-runs the stored-credential validation on demand.
func (m *Manager) Refresh(ctx context.Context) {
	m.CheckSession(ctx)
}

// SignIn exchanges credentials for a bearer token and establishes the
// session. On rejection it returns ErrInvalidCredentials and leaves the
// current session untouched.
func (m *Manager) SignIn(ctx context.Context, emailOrUsername, password string) error {
	if err := auth.ValidateSignIn(auth.SignInRequest{
		EmailOrUsername: emailOrUsername,
		Password:        password,
	}); err != nil {
		return errors.ErrInvalidCredentials
	}

	cred, err := m.identity.SignIn(ctx, emailOrUsername, password)
	if err != nil {
		return err
	}
	return m.establish(ctx, cred)
}

// SignUp creates the account but deliberately establishes no session:
// the email must be verified first, so an unverified account never gains
// access even though the backend hands back a token.
func (m *Manager) SignUp(ctx context.Context, profile auth.SignUpRequest) error {
	if err := auth.ValidateSignUp(profile); err != nil {
		return err
	}
	return m.identity.SignUp(ctx, api.SignUpProfile{
		Email:    profile.Email,
		Password: profile.Password,
		FullName: profile.FullName,
	})
}

// VerifyEmail confirms a freshly created account. One-shot, no session.
func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	return m.identity.VerifyEmail(ctx, token)
}

// AcceptInvitation redeems an invitation token and establishes a session
// exactly like SignIn's success path.
func (m *Manager) AcceptInvitation(ctx context.Context, token, password, fullName string) error {
	cred, err := m.identity.AcceptInvitation(ctx, token, password, fullName)
	if err != nil {
		return err
	}
	return m.establish(ctx, cred)
}

// SignOut clears the local credential and transitions to
// Unauthenticated. The local clear is best-effort: the token is also
// short-lived server-side, so a failed clear is logged, not returned.
// Calling SignOut twice is harmless.
func (m *Manager) SignOut(ctx context.Context) {
	// Invalidate any in-flight validation before anything else; its
	// response no longer reflects the authoritative state.
	m.beginAttempt()

	m.transition(ctx, domain.Session{State: domain.StateSigningOut}, "")
	if err := m.store.Clear(); err != nil {
		m.log.Warn("local credential clear failed", "error", err)
	}
	m.transition(ctx, domain.Session{State: domain.StateUnauthenticated}, "")
}

// Invalidate handles a credential rejection observed mid-use by another
// component (a 401 on a chat or organization call). The credential is
// cleared and every subscriber observes Unauthenticated with a
// SessionExpired error, so active screens can redirect.
func (m *Manager) Invalidate(ctx context.Context) {
	m.beginAttempt()
	m.clearAndSignOut(ctx, errors.ErrSessionExpired)
}

// establish runs the user-fetch-and-cache sequence shared by SignIn and
// AcceptInvitation.
func (m *Manager) establish(ctx context.Context, cred domain.Credential) error {
	mySeq := m.beginAttempt()

	user, err := m.identity.Me(ctx, cred)
	if !m.attemptCurrent(mySeq) {
		m.log.Debug("dropping stale sign-in response", "seq", mySeq)
		return nil
	}
	if err != nil {
		// Token was issued but the identity fetch failed; the session
		// stays as it was and the caller may retry.
		return err
	}

	m.cacheAndAuthenticate(ctx, cred, user, mySeq)
	return nil
}

func (m *Manager) cacheAndAuthenticate(ctx context.Context, cred domain.Credential, user domain.User, seq uint64) {
	tenantID, err := auth.TenantFromCredential(cred)
	if err != nil {
		// The hint is optional; the directory endpoint remains the
		// authority on tenant membership.
		m.log.Debug("credential carries no readable tenant claim")
	}
	if err := m.store.SaveSession(cred, user, tenantID); err != nil {
		m.log.Warn("could not persist session", "error", err)
	}
	m.transitionIf(ctx, domain.Session{State: domain.StateAuthenticated, User: &user}, cred, &seq)
}

func (m *Manager) clearAndSignOut(ctx context.Context, surfaced error) {
	if err := m.store.Clear(); err != nil {
		m.log.Warn("local credential clear failed", "error", err)
	}
	m.transition(ctx, domain.Session{State: domain.StateUnauthenticated, Err: surfaced}, "")
}

func (m *Manager) beginAttempt() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

func (m *Manager) attemptCurrent(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq == seq
}

// transition installs the new snapshot, then notifies the hook and the
// subscribers in that order. notifyMu keeps observers from interleaving
// two transitions.
func (m *Manager) transition(ctx context.Context, next domain.Session, cred domain.Credential) {
	m.transitionIf(ctx, next, cred, nil)
}

// transitionIf is transition guarded by a validation attempt: when seq is
// non-nil the snapshot is installed only while that attempt is still the
// latest. The check and the install happen under the same lock, so a
// sign-out can never be overtaken by a stale validation result.
func (m *Manager) transitionIf(ctx context.Context, next domain.Session, cred domain.Credential, seq *uint64) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if seq != nil && m.seq != *seq {
		m.mu.Unlock()
		return
	}
	m.session = next
	m.cred = cred
	hook := m.hook
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	if hook != nil {
		if next.State == domain.StateAuthenticated {
			hook.OnAuthenticated(ctx, cred)
		} else {
			hook.OnUnauthenticated()
		}
	}
	for _, fn := range listeners {
		fn(next)
	}
}
