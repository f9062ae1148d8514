package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"boxbook/internal/metrics"
)

var (
	ErrNoCredits          = errors.New("no credits remaining")
	ErrAssignmentNotFound = errors.New("tariff assignment not found")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Ledger {
	return &repository{db: db}
}

func (r *repository) Debit(ctx context.Context, assignmentID, enrollmentID int, reason string) (*int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	remaining, err := lockBalance(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}

	// NULL balance: maxPerDay-governed plan, credit counting does not
	// apply.
	if remaining == nil {
		return nil, tx.Commit()
	}

	if *remaining <= 0 {
		return nil, ErrNoCredits
	}

	newRemaining := *remaining - 1
	if err := applyEntry(ctx, tx, assignmentID, enrollmentID, newRemaining, -1, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordDebit()
	return &newRemaining, nil
}

func (r *repository) Refund(ctx context.Context, assignmentID, enrollmentID int, reason string) (*int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	remaining, err := lockBalance(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}

	if remaining == nil {
		return nil, tx.Commit()
	}

	// A refund that would exceed the enrollment's recorded debits is a
	// retry (or a double cancel); return the current balance untouched.
	// Counting debits against refunds instead of probing one reason lets
	// a reinstated-then-cancelled-again enrollment refund legitimately a
	// second time.
	var refundable bool
	err = tx.GetContext(ctx, &refundable,
		`SELECT COUNT(*) FILTER (WHERE delta = -1) > COUNT(*) FILTER (WHERE delta = 1)
		 FROM credit_transactions
		 WHERE enrollment_id = $1`,
		enrollmentID,
	)
	if err != nil {
		return nil, err
	}
	if !refundable {
		return remaining, tx.Commit()
	}

	newRemaining := *remaining + 1
	if err := applyEntry(ctx, tx, assignmentID, enrollmentID, newRemaining, 1, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordRefund()
	return &newRemaining, nil
}

func (r *repository) RefundEnrollment(ctx context.Context, enrollmentID int, reason string) (bool, int, error) {
	var assignmentID int
	err := r.db.GetContext(ctx, &assignmentID,
		`SELECT tariff_assignment_id
		 FROM credit_transactions
		 WHERE enrollment_id = $1 AND delta = -1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		enrollmentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, err
	}

	if _, err := r.Refund(ctx, assignmentID, enrollmentID, reason); err != nil {
		return false, 0, err
	}

	return true, assignmentID, nil
}

func (r *repository) Peek(ctx context.Context, assignmentID int) (*int, error) {
	var remaining *int
	err := r.db.GetContext(ctx, &remaining,
		`SELECT remaining_credits FROM tariff_assignments WHERE id = $1`,
		assignmentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	return remaining, nil
}

func (r *repository) Transactions(ctx context.Context, assignmentID, limit, offset int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txs []CreditTransaction
	err := r.db.SelectContext(ctx, &txs,
		`SELECT id, tariff_assignment_id, enrollment_id, delta, reason, created_at
		 FROM credit_transactions
		 WHERE tariff_assignment_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		assignmentID, limit, offset,
	)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// lockBalance takes the per-assignment row lock and reads the balance.
func lockBalance(ctx context.Context, tx *sqlx.Tx, assignmentID int) (*int, error) {
	var remaining *int
	err := tx.GetContext(ctx, &remaining,
		`SELECT remaining_credits FROM tariff_assignments WHERE id = $1 FOR UPDATE`,
		assignmentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return remaining, nil
}

func applyEntry(ctx context.Context, tx *sqlx.Tx, assignmentID, enrollmentID, newRemaining, delta int, reason string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tariff_assignments SET remaining_credits = $1 WHERE id = $2`,
		newRemaining, assignmentID,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (tariff_assignment_id, enrollment_id, delta, reason)
		 VALUES ($1, $2, $3, $4)`,
		assignmentID, enrollmentID, delta, reason,
	)
	return err
}
