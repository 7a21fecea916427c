package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/apostle/internal/shared"
)

// SessionEvent is one recorded session transition.
type SessionEvent struct {
	ID             string
	Kind           string
	PrincipalEmail string
	Message        string
	CreatedAt      time.Time
}

// SessionEventRepository persists the local audit trail of session transitions.
type SessionEventRepository struct {
	db *sql.DB
}

// NewSessionEventRepository creates a new [SessionEventRepository] with the given database connection
func NewSessionEventRepository(db *sql.DB) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

// Create inserts an event, assigning its ID and timestamp when unset.
func (r *SessionEventRepository) Create(ev *SessionEvent) error {
	if ev.Kind == "" {
		return fmt.Errorf("%w: event kind is required", shared.ErrInvalidInput)
	}
	if ev.ID == "" {
		ev.ID = shared.GenerateID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO session_events (id, kind, principal_email, message, created_at) VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, ev.ID, ev.Kind, ev.PrincipalEmail, ev.Message, ev.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *SessionEventRepository) Recent(limit int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, kind, principal_email, message, created_at
		FROM session_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.PrincipalEmail, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}
