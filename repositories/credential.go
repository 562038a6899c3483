//go:generate go run go.uber.org/mock/mockgen -source=credential.go -destination=../mocks/mock_credential_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"hrdesk/domain"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Key layout inside the badger store. The three keys live and die
// together: SaveSession and Clear touch all of them in one transaction
// so that no reader can observe a token without its cached snapshots.
const (
	keyToken  = "cred:token"
	keyUser   = "cred:user"
	keyTenant = "cred:tenant"
)

type ICredentialRepository interface {
	SaveSession(token domain.Credential, user domain.User, tenantID string) error
	Load() (StoredSession, bool, error)
	Clear() error
}

// StoredSession is the on-disk snapshot of an established session.
type StoredSession struct {
	Token    domain.Credential
	User     *domain.User
	TenantID string
}

type CredentialRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewCredentialRepository(db *badger.DB, log *slog.Logger) CredentialRepository {
	return CredentialRepository{db: db, log: log}
}

// SaveSession persists the credential, the user snapshot (as a JSON blob)
// and the tenant identifier atomically.
func (r CredentialRepository) SaveSession(token domain.Credential, user domain.User, tenantID string) error {
	blob, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyToken), []byte(token)); err != nil {
			return err
		}
		if err := txn.Set([]byte(keyUser), blob); err != nil {
			return err
		}
		return txn.Set([]byte(keyTenant), []byte(tenantID))
	})
}

// Load reads the stored session. The second return value is false when no
// credential is stored; a token without a readable user blob still loads,
// the snapshot is simply nil until the next validation refreshes it.
func (r CredentialRepository) Load() (StoredSession, bool, error) {
	var stored StoredSession
	found := false

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyToken))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		if err := item.Value(func(val []byte) error {
			stored.Token = domain.Credential(val)
			return nil
		}); err != nil {
			return err
		}
		found = true

		if item, err = txn.Get([]byte(keyUser)); err == nil {
			_ = item.Value(func(val []byte) error {
				var u domain.User
				if err := json.Unmarshal(val, &u); err != nil {
					r.log.Warn("discarding unreadable user snapshot", "error", err)
					return nil
				}
				stored.User = &u
				return nil
			})
		}

		if item, err = txn.Get([]byte(keyTenant)); err == nil {
			_ = item.Value(func(val []byte) error {
				stored.TenantID = string(val)
				return nil
			})
		}
		return nil
	})

	if err != nil {
		return StoredSession{}, false, err
	}
	return stored, found, nil
}

// Clear deletes the credential and both cached snapshots in one
// transaction. Missing keys are not errors, which makes Clear idempotent.
func (r CredentialRepository) Clear() error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{keyToken, keyUser, keyTenant} {
			if err := txn.Delete([]byte(key)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
}
