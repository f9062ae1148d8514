package ledger

import "time"

// Reasons recorded on credit transactions. The reason only labels the
// entry; refund idempotency compares debit and refund counts per
// enrollment, so a refund credits back only what was actually debited.
const (
	ReasonEnrollDebit    = "enroll"
	ReasonPromotionDebit = "promotion"
	ReasonCancelRefund   = "cancel_refund"
	ReasonVacateRefund   = "vacate_refund"
	ReasonReversal       = "reversal"
)

// CreditTransaction is one append-only ledger entry. Delta is -1 for a
// debit, +1 for a refund. The sum of deltas against an assignment never
// drives its remaining credits negative.
type CreditTransaction struct {
	ID                 int       `db:"id" json:"id"`
	TariffAssignmentID int       `db:"tariff_assignment_id" json:"tariff_assignment_id"`
	EnrollmentID       int       `db:"enrollment_id" json:"enrollment_id"`
	Delta              int       `db:"delta" json:"delta"`
	Reason             string    `db:"reason" json:"reason"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type BalanceResponse struct {
	TariffAssignmentID int  `json:"tariff_assignment_id"`
	Remaining          *int `json:"remaining_credits"`
	Unlimited          bool `json:"unlimited"`
}
