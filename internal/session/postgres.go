package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qrclass/internal/apperr"
)

// PostgresRepository persists sessions in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo over an open connection.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, s Session) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (session_id, name, instructor_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, s.SessionID, s.Name, s.InstructorID, s.CreatedAt)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, sessionID string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, name, instructor_id, created_at
		FROM sessions WHERE session_id = $1
	`, sessionID)
	return scanSession(row)
}

func (r *PostgresRepository) Latest(ctx context.Context, instructorID string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, name, instructor_id, created_at
		FROM sessions
		WHERE instructor_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, instructorID)
	return scanSession(row)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Session, error) {
	return r.list(ctx, `
		SELECT session_id, name, instructor_id, created_at
		FROM sessions ORDER BY created_at DESC, seq DESC
	`)
}

func (r *PostgresRepository) ListByInstructor(ctx context.Context, instructorID string) ([]Session, error) {
	return r.list(ctx, `
		SELECT session_id, name, instructor_id, created_at
		FROM sessions WHERE instructor_id = $1
		ORDER BY created_at DESC, seq DESC
	`, instructorID)
}

func (r *PostgresRepository) Delete(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.Name, &s.InstructorID, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func scanSession(row *sql.Row) (Session, error) {
	var s Session
	if err := row.Scan(&s.SessionID, &s.Name, &s.InstructorID, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}
