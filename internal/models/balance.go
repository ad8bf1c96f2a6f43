package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformAccountID is the reserved account holding escrowed funds and
// accumulated commission.
const PlatformAccountID = "platform"

type Balance struct {
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Version       int64           `json:"version"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// LedgerEntry is one signed delta against an account. Balances are only
// mutated together with an entry, so the ledger replays to the current
// amount.
type LedgerEntry struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Delta     decimal.Decimal `json:"delta"`
	Reason    LedgerReason    `json:"reason"`
	RefID     string          `json:"ref_id"`
	CreatedAt time.Time       `json:"created_at"`
}

type LedgerReason string

const (
	ReasonEscrowCapture    LedgerReason = "escrow_capture"
	ReasonPayoutCredit     LedgerReason = "payout_credit"
	ReasonPayoutDebit      LedgerReason = "payout_debit"
	ReasonWithdrawalDebit  LedgerReason = "withdrawal_debit"
	ReasonWithdrawalRefund LedgerReason = "withdrawal_refund"
)
