package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalPaid       WithdrawalStatus = "paid"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID            string           `json:"id"`
	TravelerID    string           `json:"traveler_id"`
	Amount        decimal.Decimal  `json:"amount"`
	BankDetails   string           `json:"bank_details"`
	Status        WithdrawalStatus `json:"status"`
	TransactionID *string          `json:"transactionId,omitempty"`
	PaidAt        *time.Time       `json:"paidAt,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Forward-only edges, plus the single compensating processing→completed
// edge used to recover from a failed gateway transfer. Never back to
// pending.
var withdrawalEdges = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalCompleted, WithdrawalRejected},
	WithdrawalCompleted:  {WithdrawalProcessing},
	WithdrawalProcessing: {WithdrawalPaid, WithdrawalCompleted},
}

// CanWithdrawalTransition reports whether from→to is a legal edge.
func CanWithdrawalTransition(from, to WithdrawalStatus) bool {
	for _, s := range withdrawalEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalPaid || s == WithdrawalRejected
}
