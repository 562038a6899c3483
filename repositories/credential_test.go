package repositories

import (
	"hrdesk/domain"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_SaveSession_Then_Load(t *testing.T) {
	req := require.New(t)
	repo := NewCredentialRepository(openTestDB(t), slog.Default())

	user := domain.User{
		ID:             "u-1",
		Email:          "alice@example.com",
		FullName:       "Alice Martin",
		OrganizationID: "org-7",
	}
	err := repo.SaveSession("bearer-token-value", user, "org-7")
	req.NoError(err)

	stored, ok, err := repo.Load()
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.Credential("bearer-token-value"), stored.Token)
	req.Equal("org-7", stored.TenantID)
	req.NotNil(stored.User)
	req.Equal(user, *stored.User)
}

func Test_Load_Empty_Store(t *testing.T) {
	req := require.New(t)
	repo := NewCredentialRepository(openTestDB(t), slog.Default())

	_, ok, err := repo.Load()
	req.NoError(err)
	req.False(ok)
}

func Test_Clear_Removes_All_Keys_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := NewCredentialRepository(openTestDB(t), slog.Default())

	err := repo.SaveSession("tok", domain.User{ID: "u-1", Email: "a@b.c"}, "org-1")
	req.NoError(err)

	req.NoError(repo.Clear())
	_, ok, err := repo.Load()
	req.NoError(err)
	req.False(ok)

	// Second clear on an already-empty store must not fail.
	req.NoError(repo.Clear())
}

func Test_SaveSession_Overwrites_Previous(t *testing.T) {
	req := require.New(t)
	repo := NewCredentialRepository(openTestDB(t), slog.Default())

	req.NoError(repo.SaveSession("tok-1", domain.User{ID: "u-1", Email: "a@b.c"}, "org-1"))
	req.NoError(repo.SaveSession("tok-2", domain.User{ID: "u-2", Email: "d@e.f"}, "org-2"))

	stored, ok, err := repo.Load()
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.Credential("tok-2"), stored.Token)
	req.Equal("u-2", stored.User.ID)
	req.Equal("org-2", stored.TenantID)
}
