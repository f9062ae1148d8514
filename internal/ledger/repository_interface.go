package ledger

import "context"

// Ledger owns the remaining-credit balances of tariff assignments.
// Debit and Refund are atomic per assignment; each completes (or fails)
// in its own transaction before the caller commits anything that depends
// on it. A nil remaining value means the assignment is unlimited
// (maxPerDay-governed) and credit counting does not apply.
type Ledger interface {
	// Debit atomically checks remaining > 0 and decrements, appending a
	// ledger entry. Unlimited assignments succeed as a no-op. Returns
	// ErrNoCredits when the balance is exhausted.
	Debit(ctx context.Context, assignmentID, enrollmentID int, reason string) (*int, error)
	// Refund increments the balance and appends an entry. Idempotent per
	// (enrollmentID, reason): a repeated refund returns the current
	// balance without double-crediting.
	Refund(ctx context.Context, assignmentID, enrollmentID int, reason string) (*int, error)
	// RefundEnrollment refunds against whichever assignment the
	// enrollment's original debit was drawn from, returning that
	// assignment's ID. Refunded is false when the enrollment never
	// debited (waitlist entries, unlimited plans).
	RefundEnrollment(ctx context.Context, enrollmentID int, reason string) (refunded bool, assignmentID int, err error)
	// Peek reads the current balance without touching it.
	Peek(ctx context.Context, assignmentID int) (*int, error)
	Transactions(ctx context.Context, assignmentID, limit, offset int) ([]CreditTransaction, error)
}
