package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"hrdesk/auth"
	"hrdesk/domain"
	"hrdesk/errors"
	"hrdesk/mocks"
	"hrdesk/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func openTestStore(t *testing.T) repositories.CredentialRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewCredentialRepository(db, slog.Default())
}

func signUpFixture() auth.SignUpRequest {
	return auth.SignUpRequest{
		Email:    "new@example.com",
		Password: "ComplexPass123!",
		FullName: "New Person",
	}
}

func Test_CheckSession_No_Credential_Skips_Network(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().Me(gomock.Any(), gomock.Any()).Times(0)

	m := NewManager(identity, openTestStore(t), slog.Default())
	m.CheckSession(context.Background())

	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
}

func Test_CheckSession_Unreadable_Store_Signs_Out(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().Me(gomock.Any(), gomock.Any()).Times(0)

	store := mocks.NewMockICredentialRepository(ctrl)
	store.EXPECT().Load().Return(repositories.StoredSession{}, false, fmt.Errorf("value log corrupted"))
	store.EXPECT().Clear().Return(nil)

	m := NewManager(identity, store, slog.Default())
	m.CheckSession(context.Background())

	snap := m.Snapshot()
	req.Equal(domain.StateUnauthenticated, snap.State)
	req.NoError(snap.Err)
}

func Test_CheckSession_Accepted_Credential(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	req.NoError(store.SaveSession("stored-token", domain.User{ID: "u-1", Email: "a@b.c"}, ""))

	user := domain.User{ID: "u-1", Email: "a@b.c", FullName: "Alice Martin"}
	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("stored-token")).
		Return(user, nil)

	m := NewManager(identity, store, slog.Default())
	m.CheckSession(context.Background())

	snap := m.Snapshot()
	req.Equal(domain.StateAuthenticated, snap.State)
	req.NotNil(snap.User)
	req.Equal(user, *snap.User)

	// The fresh snapshot replaced the cached one.
	stored, ok, err := store.Load()
	req.NoError(err)
	req.True(ok)
	req.Equal("Alice Martin", stored.User.FullName)
}

func Test_CheckSession_Rejected_Credential_Leaves_No_Partial_State(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	req.NoError(store.SaveSession("stale-token", domain.User{ID: "u-1", Email: "a@b.c"}, "org-1"))

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("stale-token")).
		Return(domain.User{}, errors.ErrSessionExpired)

	m := NewManager(identity, store, slog.Default())
	m.CheckSession(context.Background())

	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
	_, ok, err := store.Load()
	req.NoError(err)
	req.False(ok)
}

func Test_SignOut_Is_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	req.NoError(store.SaveSession("tok", domain.User{ID: "u-1", Email: "a@b.c"}, ""))

	m := NewManager(mocks.NewMockIdentity(ctrl), store, slog.Default())
	ctx := context.Background()

	m.SignOut(ctx)
	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
	_, ok, err := store.Load()
	req.NoError(err)
	req.False(ok)

	m.SignOut(ctx)
	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
	_, ok, err = store.Load()
	req.NoError(err)
	req.False(ok)
}

func Test_SignOut_During_InFlight_Check_Wins(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	req.NoError(store.SaveSession("tok", domain.User{ID: "u-1", Email: "a@b.c"}, ""))

	inFlight := make(chan struct{})
	release := make(chan struct{})

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("tok")).
		DoAndReturn(func(context.Context, domain.Credential) (domain.User, error) {
			close(inFlight)
			<-release
			// The server would have accepted this credential, but the
			// response arrives after sign-out and must be discarded.
			return domain.User{ID: "u-1", Email: "a@b.c"}, nil
		})

	m := NewManager(identity, store, slog.Default())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.CheckSession(ctx)
	}()

	<-inFlight
	m.SignOut(ctx)
	close(release)
	wg.Wait()

	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
	_, ok, err := store.Load()
	req.NoError(err)
	req.False(ok)
}

func Test_SignIn_Success_Establishes_Session(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	user := domain.User{ID: "u-9", Email: "bob@example.com"}

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		SignIn(gomock.Any(), "bob@example.com", "Pass").
		Return(domain.Credential("fresh-token"), nil)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("fresh-token")).
		Return(user, nil)

	m := NewManager(identity, store, slog.Default())
	err := m.SignIn(context.Background(), "bob@example.com", "Pass")

	req.NoError(err)
	snap := m.Snapshot()
	req.Equal(domain.StateAuthenticated, snap.State)
	req.Equal(user, *snap.User)

	cred, ok := m.Credential()
	req.True(ok)
	req.Equal(domain.Credential("fresh-token"), cred)

	stored, ok, err := store.Load()
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.Credential("fresh-token"), stored.Token)
}

func Test_SignIn_Rejection_Leaves_State_Untouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		SignIn(gomock.Any(), "bob@example.com", "wrong").
		Return(domain.Credential(""), errors.ErrInvalidCredentials)

	m := NewManager(identity, openTestStore(t), slog.Default())
	ctx := context.Background()
	m.CheckSession(ctx) // settle in Unauthenticated first

	err := m.SignIn(ctx, "bob@example.com", "wrong")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
}

func Test_SignUp_Creates_No_Session(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().SignUp(gomock.Any(), gomock.Any()).Return(nil)
	identity.EXPECT().Me(gomock.Any(), gomock.Any()).Times(0)

	store := openTestStore(t)
	m := NewManager(identity, store, slog.Default())
	ctx := context.Background()

	err := m.SignUp(ctx, signUpFixture())
	req.NoError(err)

	m.CheckSession(ctx)
	req.Equal(domain.StateUnauthenticated, m.Snapshot().State)
	_, ok, loadErr := store.Load()
	req.NoError(loadErr)
	req.False(ok)
}

func Test_AcceptInvitation_Establishes_Session(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	user := domain.User{ID: "u-3", Email: "carol@example.com", FullName: "Carol Diaz"}
	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		AcceptInvitation(gomock.Any(), "invite-tok", "ComplexPass123!", "Carol Diaz").
		Return(domain.Credential("invited-token"), nil)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("invited-token")).
		Return(user, nil)

	m := NewManager(identity, openTestStore(t), slog.Default())
	err := m.AcceptInvitation(context.Background(), "invite-tok", "ComplexPass123!", "Carol Diaz")

	req.NoError(err)
	req.Equal(domain.StateAuthenticated, m.Snapshot().State)
}

func Test_Subscribe_Observes_Transitions_In_Order(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	req.NoError(store.SaveSession("tok", domain.User{ID: "u-1", Email: "a@b.c"}, ""))

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("tok")).
		Return(domain.User{ID: "u-1", Email: "a@b.c"}, nil)

	m := NewManager(identity, store, slog.Default())

	var states []domain.SessionState
	unsubscribe := m.Subscribe(func(s domain.Session) {
		states = append(states, s.State)
	})
	defer unsubscribe()

	m.CheckSession(context.Background())

	req.Equal([]domain.SessionState{
		domain.StateIdle,
		domain.StateChecking,
		domain.StateAuthenticated,
	}, states)
}

func Test_Invalidate_On_MidUse_Rejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	store := openTestStore(t)
	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().
		SignIn(gomock.Any(), "a@b.c", "Pass").
		Return(domain.Credential("tok"), nil)
	identity.EXPECT().
		Me(gomock.Any(), domain.Credential("tok")).
		Return(domain.User{ID: "u-1", Email: "a@b.c"}, nil)

	m := NewManager(identity, store, slog.Default())
	ctx := context.Background()
	req.NoError(m.SignIn(ctx, "a@b.c", "Pass"))

	// Some other component got a 401 mid-use.
	m.Invalidate(ctx)

	snap := m.Snapshot()
	req.Equal(domain.StateUnauthenticated, snap.State)
	req.ErrorIs(snap.Err, errors.ErrSessionExpired)
	_, ok, err := store.Load()
	req.NoError(err)
	req.False(ok)
}

func Test_Unsubscribe_Stops_Notifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := require.New(t)

	m := NewManager(mocks.NewMockIdentity(ctrl), openTestStore(t), slog.Default())

	calls := 0
	unsubscribe := m.Subscribe(func(domain.Session) { calls++ })
	unsubscribe()

	m.SignOut(context.Background())
	req.Equal(1, calls) // only the initial snapshot
}
