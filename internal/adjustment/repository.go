package adjustment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Repository provides the PostgreSQL backed submission journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts a submission. A second submitted row for the same
// idempotency key yields ErrDuplicateRequest.
func (r *Repository) Record(ctx context.Context, sub Submission) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO adjustment_submissions
		(id, idempotency_key, account_code, amount_in_cents, quantity, currency, description, accounting_code, status, error, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.IdempotencyKey, sub.AccountCode, sub.AmountInCents, sub.Quantity, sub.Currency,
		sub.Description, sub.AccountingCode, string(sub.Status), sub.Error, sub.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// ListByAccount returns the latest submissions for an account.
func (r *Repository) ListByAccount(ctx context.Context, accountCode string, limit int) ([]Submission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, idempotency_key, account_code, amount_in_cents, quantity, currency,
		description, accounting_code, status, error, submitted_at
		FROM adjustment_submissions
		WHERE account_code = $1
		ORDER BY submitted_at DESC
		LIMIT $2`, accountCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var status string
		if err := rows.Scan(&sub.ID, &sub.IdempotencyKey, &sub.AccountCode, &sub.AmountInCents, &sub.Quantity,
			&sub.Currency, &sub.Description, &sub.AccountingCode, &status, &sub.Error, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		sub.Status = SubmissionStatus(status)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// Prune deletes submissions recorded before the cutoff.
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM adjustment_submissions WHERE submitted_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
