package repository

import (
	"context"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

type Bids interface {
	Create(ctx context.Context, b models.Bid) (models.Bid, error)
	GetByID(ctx context.Context, id string) (models.Bid, error)
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]models.Bid, error)

	// UpdateStatus persists from→to only when the bid is still at from;
	// returns ErrConcurrencyConflict when a concurrent writer won.
	UpdateStatus(ctx context.Context, id string, from, to models.BidStatus) (models.Bid, error)
	SetCheckStatus(ctx context.Context, id string, from, to models.CheckStatus) (models.Bid, error)

	// SettlePayout applies the payout as one atomic unit: flips
	// payoutProcessed false→true, stores earnings/fee, debits the
	// platform account and credits the traveler, with ledger entries.
	// Only a bid at received settles; any other status is
	// ErrInvalidTransition. Returns settled=false (no error) when the
	// flag was already set.
	SettlePayout(ctx context.Context, id string, earnings, fee decimal.Decimal) (settled bool, err error)

	// CaptureEscrow credits the platform account with the bid's
	// totalCost and flips escrowCaptured false→true, atomically. The
	// flag is the durable marker the recovery sweep keys on; returns
	// captured=false (no error) when it was already set.
	CaptureEscrow(ctx context.Context, id string) (captured bool, err error)

	// ListUnsettled returns bids at received with payoutProcessed=false,
	// for the recovery sweep.
	ListUnsettled(ctx context.Context, limit int) ([]models.Bid, error)

	// ListUncaptured returns bids past payment confirmation whose escrow
	// credit has not landed yet.
	ListUncaptured(ctx context.Context, limit int) ([]models.Bid, error)
}

type Withdrawals interface {
	// CreateWithDebit inserts the pending withdrawal and debits the
	// traveler's balance atomically. The balance row must still carry
	// expectedVersion and cover the amount; otherwise nothing persists.
	CreateWithDebit(ctx context.Context, w models.Withdrawal, expectedVersion int64) (models.Withdrawal, error)
	GetByID(ctx context.Context, id string) (models.Withdrawal, error)
	ListByTraveler(ctx context.Context, travelerID string, limit, offset int) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error)

	// UpdateStatus is conditional on the current status, like Bids.
	UpdateStatus(ctx context.Context, id string, from, to models.WithdrawalStatus) (models.Withdrawal, error)
	// MarkPaid moves processing→paid and records the gateway reference.
	MarkPaid(ctx context.Context, id, transactionID string) (models.Withdrawal, error)
	// RejectWithRefund moves pending→rejected and credits the reserved
	// amount back, atomically.
	RejectWithRefund(ctx context.Context, id string) (models.Withdrawal, error)
}

type Balances interface {
	GetOrCreate(ctx context.Context, accountID string) (models.Balance, error)
	Get(ctx context.Context, accountID string) (models.Balance, error)

	// ApplyDelta adds delta under optimistic versioning and appends a
	// ledger entry in the same transaction. ErrConcurrencyConflict when
	// the version moved.
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, expectedVersion int64, reason models.LedgerReason, refID string) (models.Balance, error)
	History(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
