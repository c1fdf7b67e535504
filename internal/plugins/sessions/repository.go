package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/wellnest/internal/apperror"
	"github.com/keyxmakerx/wellnest/internal/database"
)

// SessionRepository defines the data access contract for sessions. Every
// owner-scoped method filters on id AND user_id in the same statement, so a
// session owned by someone else looks exactly like one that does not exist.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	FindOwned(ctx context.Context, id, ownerID string) (*Session, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Session, error)
	ListPublished(ctx context.Context, tag string) ([]Session, error)
	UpdateOwned(ctx context.Context, s *Session) error
	DeleteOwned(ctx context.Context, id, ownerID string) (*Session, error)
}

// sessionRepository implements SessionRepository with MariaDB queries.
type sessionRepository struct {
	db database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, user_id, title, tags, json_file_url, status, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, extra ...any) (*Session, error) {
	s := &Session{}
	dest := append([]any{
		&s.ID, &s.OwnerID, &s.Title, &s.Tags, &s.JSONFileURL,
		&s.Status, &s.CreatedAt, &s.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session.
func (r *sessionRepository) Create(ctx context.Context, s *Session) error {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		s.ID, s.OwnerID, s.Title, s.Tags, s.JSONFileURL,
		s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// FindOwned retrieves a session by id for its owner.
// Returns apperror.NotFound if it does not exist or belongs to someone else.
func (r *sessionRepository) FindOwned(ctx context.Context, id, ownerID string) (*Session, error) {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sessionColumns + `
	          FROM sessions
	          WHERE id = ? AND user_id = ?`

	s, err := scanSession(db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying owned session: %w", err)
	}
	return s, nil
}

// ListByOwner returns every session of an owner, most recently updated first.
func (r *sessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]Session, error) {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sessionColumns + `
	          FROM sessions
	          WHERE user_id = ?
	          ORDER BY updated_at DESC`

	rows, err := db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing owned sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListPublished returns all published sessions with the author's email,
// newest first. A non-empty tag restricts the list to sessions carrying it.
func (r *sessionRepository) ListPublished(ctx context.Context, tag string) ([]Session, error) {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT s.id, s.user_id, s.title, s.tags, s.json_file_url,
	                 s.status, s.created_at, s.updated_at, u.email
	          FROM sessions s
	          INNER JOIN users u ON u.id = s.user_id
	          WHERE s.status = 'published'`
	args := []any{}
	if tag != "" {
		query += ` AND JSON_CONTAINS(s.tags, JSON_QUOTE(?))`
		args = append(args, tag)
	}
	query += ` ORDER BY s.created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing published sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var author string
		s, err := scanSession(rows, &author)
		if err != nil {
			return nil, fmt.Errorf("scanning published session row: %w", err)
		}
		s.Author = author
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateOwned overwrites the editable fields and status of an owned session.
// updated_at never moves backwards, even if the application clock does.
// The pool is opened with ClientFoundRows, so an update that changes nothing
// still reports the matched row.
func (r *sessionRepository) UpdateOwned(ctx context.Context, s *Session) error {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}

	query := `UPDATE sessions SET
	              title = ?, tags = ?, json_file_url = ?, status = ?,
	              updated_at = GREATEST(updated_at, ?)
	          WHERE id = ? AND user_id = ?`

	result, err := db.ExecContext(ctx, query,
		s.Title, s.Tags, s.JSONFileURL, s.Status, s.UpdatedAt,
		s.ID, s.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return apperror.NewNotFound("session not found")
	}
	return nil
}

// DeleteOwned removes an owned session and returns the deleted record.
// MariaDB's DELETE ... RETURNING keeps this a single owner-scoped statement.
func (r *sessionRepository) DeleteOwned(ctx context.Context, id, ownerID string) (*Session, error) {
	db, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `DELETE FROM sessions
	          WHERE id = ? AND user_id = ?
	          RETURNING ` + sessionColumns

	s, err := scanSession(db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("deleting session: %w", err)
	}
	return s, nil
}

// utcNow is the default clock. Timestamps are stored at microsecond
// precision (DATETIME(6)), so values are truncated to match.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
