package credentials

import (
	"database/sql"

	"github.com/desertthunder/apostle/internal/repositories"
)

// SQLiteStore keeps credentials in the application's sqlite database.
//
// The database must have the shared migrations applied.
type SQLiteStore struct {
	kvStore
}

type sqliteKV struct {
	repo *repositories.KeyValueRepository
}

func (k sqliteKV) get(key string) (string, error)       { return k.repo.Get(key) }
func (k sqliteKV) setMany(pairs map[string]string) error { return k.repo.SetMany(pairs) }
func (k sqliteKV) del(keys ...string) error              { return k.repo.Delete(keys...) }

// NewSQLiteStore creates a [SQLiteStore] on db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{kvStore{backend: sqliteKV{repo: repositories.NewKeyValueRepository(db)}}}
}
