package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/credentials"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/repositories"
	"github.com/desertthunder/apostle/internal/shared"
)

// persisted is the subset of a [Snapshot] written under [credentials.SnapshotKey].
type persisted struct {
	Admin           *models.Principal `json:"admin"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	AccessToken     *string           `json:"accessToken"`
}

func project(s Snapshot) persisted {
	p := persisted{Admin: s.Principal, IsAuthenticated: s.Authenticated}
	if s.AccessCredential != "" {
		tok := s.AccessCredential
		p.AccessToken = &tok
	}
	return p
}

// PersistTo keeps store in line with the session.
//
// Resets clear every token key. New non-empty tokens are written. The snapshot
// projection is saved whenever it changes. Store failures are logged only.
func PersistTo(store credentials.Store, logger *log.Logger) Observer {
	logger = orDiscard(logger)
	return func(ev Event, prev, next Snapshot) {
		switch ev.Kind {
		case LoggedOut, CredentialsCleared:
			if err := store.Clear(); err != nil {
				logger.Error("failed to clear credentials", "error", err)
			}
		default:
			accessChanged := next.AccessCredential != "" && next.AccessCredential != prev.AccessCredential
			refreshChanged := next.RefreshCredential != "" && next.RefreshCredential != prev.RefreshCredential
			if accessChanged || refreshChanged {
				if err := store.Write(next.AccessCredential, next.RefreshCredential); err != nil {
					logger.Error("failed to write credentials", "error", err)
				}
			}
		}

		before, after := project(prev), project(next)
		if reflect.DeepEqual(before, after) && ev.Kind != LoggedOut && ev.Kind != CredentialsCleared {
			return
		}
		data, err := json.Marshal(after)
		if err != nil {
			logger.Error("failed to encode session snapshot", "error", err)
			return
		}
		if err := store.SaveSnapshot(data); err != nil {
			logger.Error("failed to save session snapshot", "error", err)
		}
	}
}

// Rehydrate restores the session from the store.
//
// Tokens in the token keys take precedence over the one in the saved snapshot. An
// unreadable snapshot is ignored.
func (s *Service) Rehydrate() error {
	tokens, err := s.store.Read()
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	var saved persisted
	data, err := s.store.LoadSnapshot()
	switch {
	case errors.Is(err, shared.ErrNoSnapshot):
	case err != nil:
		return fmt.Errorf("failed to load session: %w", err)
	default:
		if err := json.Unmarshal(data, &saved); err != nil {
			s.logger.Warn("ignoring unreadable session snapshot", "error", err)
			saved = persisted{}
		}
	}

	restored := Snapshot{
		Principal:         saved.Admin,
		Authenticated:     saved.IsAuthenticated,
		AccessCredential:  tokens.Access,
		RefreshCredential: tokens.Refresh,
	}
	if restored.AccessCredential == "" && saved.AccessToken != nil {
		restored.AccessCredential = *saved.AccessToken
	}

	s.dispatch(Event{Kind: Rehydrated, Restored: restored})
	s.logger.Debug("session rehydrated", "authenticated", restored.Authenticated, "credential", restored.AccessCredential != "")
	return nil
}

// AuditTo records completed operations in the session history.
func AuditTo(repo *repositories.SessionEventRepository, logger *log.Logger) Observer {
	logger = orDiscard(logger)
	return func(ev Event, prev, next Snapshot) {
		switch ev.Kind {
		case LoginSucceeded, RegisterSucceeded, OperationFailed, LoggedOut, CredentialsCleared:
		default:
			return
		}

		email := ""
		for _, p := range []*models.Principal{next.Principal, prev.Principal} {
			if p != nil && p.Email != "" {
				email = p.Email
				break
			}
		}

		record := &repositories.SessionEvent{
			Kind:           ev.Kind.String(),
			PrincipalEmail: email,
			Message:        ev.Message,
		}
		if err := repo.Create(record); err != nil {
			logger.Warn("failed to record session event", "event", ev.Kind, "error", err)
		}
	}
}

// Flusher drops cached API responses.
type Flusher interface {
	Flush()
}

// FlushOnEnd empties cache when the session ends or its credentials are cleared.
func FlushOnEnd(cache Flusher) Observer {
	return func(ev Event, _, _ Snapshot) {
		switch ev.Kind {
		case LoggedOut, CredentialsCleared:
			cache.Flush()
		}
	}
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
