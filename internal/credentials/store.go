// Package credentials persists the console's session tokens across process restarts.
//
// Tokens live under fixed, well-known keys. The access token is also mirrored to the
// legacy combined key so installs that predate the access/refresh split keep working;
// [Store.Read] checks the current key first and falls back to the legacy one.
package credentials

import (
	"errors"

	"github.com/desertthunder/apostle/internal/shared"
)

// Well-known storage keys.
const (
	AccessTokenKey  = "apostle_admin_access_token"
	RefreshTokenKey = "apostle_admin_refresh_token"
	LegacyTokenKey  = "apostle_admin_token"
	SnapshotKey     = "apostle-auth"
)

// Tokens is what a [Store] currently holds. Empty strings mean absent.
type Tokens struct {
	Access  string
	Refresh string
}

// Empty reports whether no token is stored.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// Store is durable storage for the session's tokens and its serialized snapshot.
type Store interface {
	// Write stores access and refresh; an empty argument leaves that key untouched.
	Write(access, refresh string) error
	// Read returns the stored tokens, preferring the current access key over the legacy one.
	Read() (Tokens, error)
	// Clear removes every token key unconditionally.
	Clear() error
	// SaveSnapshot stores the serialized session snapshot.
	SaveSnapshot(data []byte) error
	// LoadSnapshot returns the serialized snapshot or [shared.ErrNoSnapshot].
	LoadSnapshot() ([]byte, error)
}

// tokenKeys are removed by Clear.
var tokenKeys = []string{AccessTokenKey, RefreshTokenKey, LegacyTokenKey}

// kv is the minimal key/value surface the stores are built on.
type kv interface {
	get(key string) (string, error)
	setMany(pairs map[string]string) error
	del(keys ...string) error
}

// kvStore implements [Store] on top of any kv backend.
type kvStore struct {
	backend kv
}

func (s kvStore) Write(access, refresh string) error {
	pairs := make(map[string]string, 3)
	if access != "" {
		pairs[AccessTokenKey] = access
		pairs[LegacyTokenKey] = access
	}
	if refresh != "" {
		pairs[RefreshTokenKey] = refresh
	}
	if len(pairs) == 0 {
		return nil
	}
	return s.backend.setMany(pairs)
}

func (s kvStore) Read() (Tokens, error) {
	var t Tokens
	var err error

	if t.Access, err = s.lookup(AccessTokenKey); err != nil {
		return Tokens{}, err
	}
	if t.Access == "" {
		if t.Access, err = s.lookup(LegacyTokenKey); err != nil {
			return Tokens{}, err
		}
	}
	if t.Refresh, err = s.lookup(RefreshTokenKey); err != nil {
		return Tokens{}, err
	}
	return t, nil
}

func (s kvStore) Clear() error {
	return s.backend.del(tokenKeys...)
}

func (s kvStore) SaveSnapshot(data []byte) error {
	return s.backend.setMany(map[string]string{SnapshotKey: string(data)})
}

func (s kvStore) LoadSnapshot() ([]byte, error) {
	v, err := s.lookup(SnapshotKey)
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, shared.ErrNoSnapshot
	}
	return []byte(v), nil
}

// lookup maps a missing key to "".
func (s kvStore) lookup(key string) (string, error) {
	v, err := s.backend.get(key)
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	return v, err
}
