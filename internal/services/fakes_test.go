package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Farhad2590/traveltrade-backend/internal/gateway"
	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/Farhad2590/traveltrade-backend/internal/worker"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory store backing all repository fakes. One mutex stands in for
// the database's transactional guarantees.
type fakeStore struct {
	mu          sync.Mutex
	bids        map[string]models.Bid
	withdrawals map[string]models.Withdrawal
	balances    map[string]models.Balance
	ledger      []models.LedgerEntry
	audits      []models.AuditLog

	// failCapture makes the next CaptureEscrow call fail with this error.
	failCapture error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bids:        map[string]models.Bid{},
		withdrawals: map[string]models.Withdrawal{},
		balances:    map[string]models.Balance{},
	}
}

func (s *fakeStore) applyDeltaLocked(accountID string, delta decimal.Decimal, reason models.LedgerReason, refID string) models.Balance {
	b := s.balances[accountID]
	b.AccountID = accountID
	b.Amount = b.Amount.Add(delta)
	b.Version++
	b.LastUpdatedAt = time.Now()
	s.balances[accountID] = b
	s.ledger = append(s.ledger, models.LedgerEntry{
		ID: uuid.NewString(), AccountID: accountID, Delta: delta,
		Reason: reason, RefID: refID, CreatedAt: time.Now(),
	})
	return b
}

func (s *fakeStore) ledgerFor(accountID string) []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeStore) seedBid(b models.Bid) models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	s.bids[b.ID] = b
	return b
}

func (s *fakeStore) seedBalance(accountID string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[accountID] = models.Balance{
		AccountID: accountID, Amount: amount, Version: 1, LastUpdatedAt: time.Now(),
	}
}

// ----------------- Bids -----------------

type fakeBids struct{ s *fakeStore }

func (f fakeBids) Create(_ context.Context, b models.Bid) (models.Bid, error) {
	return f.s.seedBid(b), nil
}

func (f fakeBids) GetByID(_ context.Context, id string) (models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bids[id]
	if !ok {
		return models.Bid{}, models.ErrNotFound
	}
	return b, nil
}

func (f fakeBids) ListByParticipant(_ context.Context, userID string, limit, offset int) ([]models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Bid
	for _, b := range f.s.bids {
		if b.SenderID == userID || b.TravelerID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f fakeBids) UpdateStatus(_ context.Context, id string, from, to models.BidStatus) (models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bids[id]
	if !ok {
		return models.Bid{}, models.ErrNotFound
	}
	if b.Status != from {
		return models.Bid{}, models.ErrConcurrencyConflict
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	f.s.bids[id] = b
	return b, nil
}

func (f fakeBids) SetCheckStatus(_ context.Context, id string, from, to models.CheckStatus) (models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bids[id]
	if !ok {
		return models.Bid{}, models.ErrNotFound
	}
	if b.CheckStatus == nil || *b.CheckStatus != from {
		return models.Bid{}, models.ErrConcurrencyConflict
	}
	b.CheckStatus = &to
	b.UpdatedAt = time.Now()
	f.s.bids[id] = b
	return b, nil
}

func (f fakeBids) SettlePayout(_ context.Context, id string, earnings, fee decimal.Decimal) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bids[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if b.PayoutProcessed {
		return false, nil
	}
	if b.Status != models.BidReceived {
		return false, fmt.Errorf("%w: payout requires received, bid is %s", models.ErrInvalidTransition, b.Status)
	}
	b.PayoutProcessed = true
	b.TravelerEarnings = earnings
	b.PlatformFee = fee
	b.UpdatedAt = time.Now()
	f.s.bids[id] = b
	f.s.applyDeltaLocked(models.PlatformAccountID, earnings.Neg(), models.ReasonPayoutDebit, id)
	f.s.applyDeltaLocked(b.TravelerID, earnings, models.ReasonPayoutCredit, id)
	return true, nil
}

func (f fakeBids) CaptureEscrow(_ context.Context, id string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.failCapture; err != nil {
		f.s.failCapture = nil
		return false, err
	}
	b, ok := f.s.bids[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if b.EscrowCaptured {
		return false, nil
	}
	b.EscrowCaptured = true
	b.UpdatedAt = time.Now()
	f.s.bids[id] = b
	f.s.applyDeltaLocked(models.PlatformAccountID, b.TotalCost, models.ReasonEscrowCapture, id)
	return true, nil
}

func (f fakeBids) ListUncaptured(_ context.Context, limit int) ([]models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Bid
	for _, b := range f.s.bids {
		switch b.Status {
		case models.BidPending, models.BidAwaitingPayment, models.BidRejected:
			continue
		}
		if !b.EscrowCaptured {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f fakeBids) ListUnsettled(_ context.Context, limit int) ([]models.Bid, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Bid
	for _, b := range f.s.bids {
		if b.Status == models.BidReceived && !b.PayoutProcessed {
			out = append(out, b)
		}
	}
	return out, nil
}

// ----------------- Withdrawals -----------------

type fakeWithdrawals struct{ s *fakeStore }

func (f fakeWithdrawals) CreateWithDebit(_ context.Context, w models.Withdrawal, expectedVersion int64) (models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.balances[w.TravelerID]
	if !ok {
		return models.Withdrawal{}, models.ErrNotFound
	}
	if b.Version != expectedVersion {
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	if w.Amount.GreaterThan(b.Amount) {
		return models.Withdrawal{}, models.ErrInsufficientBalance
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	f.s.applyDeltaLocked(w.TravelerID, w.Amount.Neg(), models.ReasonWithdrawalDebit, w.ID)
	f.s.withdrawals[w.ID] = w
	return w, nil
}

func (f fakeWithdrawals) GetByID(_ context.Context, id string) (models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrNotFound
	}
	return w, nil
}

func (f fakeWithdrawals) ListByTraveler(_ context.Context, travelerID string, limit, offset int) ([]models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.s.withdrawals {
		if w.TravelerID == travelerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f fakeWithdrawals) ListByStatus(_ context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.s.withdrawals {
		if w.Status == status {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f fakeWithdrawals) UpdateStatus(_ context.Context, id string, from, to models.WithdrawalStatus) (models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrNotFound
	}
	if w.Status != from {
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	w.Status = to
	w.UpdatedAt = time.Now()
	f.s.withdrawals[id] = w
	return w, nil
}

func (f fakeWithdrawals) MarkPaid(_ context.Context, id, transactionID string) (models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrNotFound
	}
	if w.Status != models.WithdrawalProcessing {
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	now := time.Now()
	w.Status = models.WithdrawalPaid
	w.TransactionID = &transactionID
	w.PaidAt = &now
	w.UpdatedAt = now
	f.s.withdrawals[id] = w
	return w, nil
}

func (f fakeWithdrawals) RejectWithRefund(_ context.Context, id string) (models.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrNotFound
	}
	if w.Status != models.WithdrawalPending {
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	w.Status = models.WithdrawalRejected
	w.UpdatedAt = time.Now()
	f.s.withdrawals[id] = w
	f.s.applyDeltaLocked(w.TravelerID, w.Amount, models.ReasonWithdrawalRefund, w.ID)
	return w, nil
}

// ----------------- Balances -----------------

type fakeBalances struct{ s *fakeStore }

func (f fakeBalances) GetOrCreate(_ context.Context, accountID string) (models.Balance, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.balances[accountID]
	if !ok {
		b = models.Balance{AccountID: accountID, LastUpdatedAt: time.Now()}
		f.s.balances[accountID] = b
	}
	return b, nil
}

func (f fakeBalances) Get(_ context.Context, accountID string) (models.Balance, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.balances[accountID]
	if !ok {
		return models.Balance{}, models.ErrNotFound
	}
	return b, nil
}

func (f fakeBalances) ApplyDelta(_ context.Context, accountID string, delta decimal.Decimal, expectedVersion int64, reason models.LedgerReason, refID string) (models.Balance, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.balances[accountID]
	if !ok {
		return models.Balance{}, models.ErrNotFound
	}
	if b.Version != expectedVersion {
		return models.Balance{}, models.ErrConcurrencyConflict
	}
	return f.s.applyDeltaLocked(accountID, delta, reason, refID), nil
}

func (f fakeBalances) History(_ context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	return f.s.ledgerFor(accountID), nil
}

// ----------------- Audit logs -----------------

type fakeAudits struct{ s *fakeStore }

func (f fakeAudits) Create(_ context.Context, l models.AuditLog) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.audits = append(f.s.audits, l)
	return nil
}

// ----------------- Gateway -----------------

// fakeGateway scripts one outcome per call: a non-nil error fails that
// call, otherwise it succeeds with a generated transaction id. Calls
// past the script succeed.
type fakeGateway struct {
	mu    sync.Mutex
	fails []error
	calls int
}

func (g *fakeGateway) Transfer(ctx context.Context, req gateway.TransferRequest) (gateway.TransferResult, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	g.mu.Unlock()
	if idx < len(g.fails) && g.fails[idx] != nil {
		return gateway.TransferResult{}, g.fails[idx]
	}
	return gateway.TransferResult{TransactionID: fmt.Sprintf("txn-%d", idx+1)}, nil
}

// hangGateway blocks until the caller's deadline fires.
type hangGateway struct{}

func (hangGateway) Transfer(ctx context.Context, req gateway.TransferRequest) (gateway.TransferResult, error) {
	<-ctx.Done()
	return gateway.TransferResult{}, ctx.Err()
}

// ----------------- Test harness -----------------

type testEnv struct {
	store       *fakeStore
	bids        *BidService
	payouts     *PayoutService
	withdrawals *WithdrawalService
	balances    *BalanceService
	gw          *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	wp := worker.NewPool(1)
	t.Cleanup(wp.Stop)

	gw := &fakeGateway{}
	payouts := NewPayoutService(fakeBids{store}, fakeAudits{store}, wp)
	return &testEnv{
		store:       store,
		bids:        NewBidService(fakeBids{store}, fakeAudits{store}, payouts, wp),
		payouts:     payouts,
		withdrawals: NewWithdrawalService(fakeWithdrawals{store}, fakeBalances{store}, fakeAudits{store}, gw, 50*time.Millisecond, wp),
		balances:    NewBalanceService(fakeBalances{store}),
		gw:          gw,
	}
}
