package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"qrclass/internal/apperr"
)

// Postgres error codes. 23505 is the unique-pair violation that carries the
// whole correctness story; 40001/40P01 are transient conflicts worth a retry.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// PostgresRepository persists attendance records in Postgres. Atomicity of
// the check-then-insert rests on the unique constraint over
// (session_id, student_id), not on application-level locking.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo over an open connection.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING recorded_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.RecordedAt)
	if err := row.Scan(&rec.RecordedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Record{}, fmt.Errorf("attendance for (%s,%s): %w",
					rec.SessionID, rec.StudentID, apperr.ErrDuplicate)
			case pgSerializationFailure, pgDeadlockDetected:
				return Record{}, fmt.Errorf("insert conflict: %w", apperr.ErrUnavailable)
			}
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, recordID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, recorded_at
		FROM attendance_records WHERE id = $1
	`, recordID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, apperr.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	return r.list(ctx, `
		SELECT id, session_id, student_id, recorded_at
		FROM attendance_records WHERE session_id = $1
		ORDER BY recorded_at
	`, sessionID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Record, error) {
	return r.list(ctx, `
		SELECT id, session_id, student_id, recorded_at
		FROM attendance_records ORDER BY recorded_at
	`)
}

func (r *PostgresRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE session_id = $1
	`, sessionID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) Delete(ctx context.Context, recordID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, recordID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", recordID, apperr.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
