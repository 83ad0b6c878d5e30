package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shindakun/btweet/internal/models"
)

// ErrSessionNotFound is returned when no session row matches
var ErrSessionNotFound = errors.New("session not found")

// SaveSession stores a session, replacing any earlier session of the same browser client
func SaveSession(db *sql.DB, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, client_id, user_id, username, full_name, user_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			id = excluded.id,
			user_id = excluded.user_id,
			username = excluded.username,
			full_name = excluded.full_name,
			user_json = excluded.user_json,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`

	_, err := db.Exec(query,
		session.ID,
		session.ClientID,
		session.UserID,
		session.Username,
		session.FullName,
		session.UserJSON,
		session.ExpiresAt.UTC(),
		session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id
func GetSession(db *sql.DB, id string) (*models.Session, error) {
	var session models.Session
	var fullName sql.NullString

	query := `
		SELECT id, client_id, user_id, username, full_name, user_json, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`

	err := db.QueryRow(query, id).Scan(
		&session.ID,
		&session.ClientID,
		&session.UserID,
		&session.Username,
		&fullName,
		&session.UserJSON,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}
	session.FullName = fullName.String

	return &session, nil
}

// DeleteSession removes a session by id
func DeleteSession(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now and returns how many
func DeleteExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
