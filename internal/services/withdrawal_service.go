package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Farhad2590/traveltrade-backend/internal/gateway"
	"github.com/Farhad2590/traveltrade-backend/internal/metrics"
	"github.com/Farhad2590/traveltrade-backend/internal/models"
	repo "github.com/Farhad2590/traveltrade-backend/internal/repository"
	"github.com/Farhad2590/traveltrade-backend/internal/worker"
	"github.com/shopspring/decimal"
)

type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

type WithdrawalService struct {
	wds       repo.Withdrawals
	bal       repo.Balances
	log       repo.AuditLogs
	gw        gateway.Gateway
	gwTimeout time.Duration
	wp        *worker.Pool
}

func NewWithdrawalService(w repo.Withdrawals, bal repo.Balances, l repo.AuditLogs, gw gateway.Gateway, gwTimeout time.Duration, wp *worker.Pool) *WithdrawalService {
	return &WithdrawalService{wds: w, bal: bal, log: l, gw: gw, gwTimeout: gwTimeout, wp: wp}
}

// Create reserves the funds immediately: the balance debit and the
// pending record commit atomically, so two racing creates cannot both
// pass the balance check. Nothing persists on failure.
func (s *WithdrawalService) Create(ctx context.Context, travelerID string, amount decimal.Decimal, bankDetails string) (models.Withdrawal, error) {
	if !amount.IsPositive() {
		return models.Withdrawal{}, fmt.Errorf("amount must be > 0")
	}

	var last error
	for i := 0; i < applyDeltaAttempts; i++ {
		b, err := s.bal.GetOrCreate(ctx, travelerID)
		if err != nil {
			return models.Withdrawal{}, err
		}
		if amount.GreaterThan(b.Amount) {
			return models.Withdrawal{}, models.ErrInsufficientBalance
		}
		w, err := s.wds.CreateWithDebit(ctx, models.Withdrawal{
			TravelerID:  travelerID,
			Amount:      amount,
			BankDetails: bankDetails,
			Status:      models.WithdrawalPending,
		}, b.Version)
		if err == nil {
			metrics.Withdrawals.WithLabelValues(string(models.WithdrawalPending)).Inc()
			auditAsync(s.wp, s.log, "withdrawal", w.ID, "created", travelerID, map[string]any{
				"amount": amount.String(),
			})
			return w, nil
		}
		if !errors.Is(err, models.ErrConcurrencyConflict) {
			return models.Withdrawal{}, err
		}
		last = err
	}
	return models.Withdrawal{}, last
}

func (s *WithdrawalService) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	return s.wds.GetByID(ctx, id)
}

func (s *WithdrawalService) ListByTraveler(ctx context.Context, travelerID string, limit, offset int) ([]models.Withdrawal, error) {
	return s.wds.ListByTraveler(ctx, travelerID, limit, offset)
}

func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	return s.wds.ListByStatus(ctx, models.WithdrawalPending, limit)
}

// Review resolves a pending withdrawal. Approval only marks it ready for
// payment; the funds were already reserved at creation. Rejection
// refunds the reservation in the same transaction.
func (s *WithdrawalService) Review(ctx context.Context, id string, decision ReviewDecision, actor string) (models.Withdrawal, error) {
	w, err := s.wds.GetByID(ctx, id)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if w.Status != models.WithdrawalPending {
		return models.Withdrawal{}, fmt.Errorf("%w: withdrawal is %s", models.ErrInvalidTransition, w.Status)
	}

	switch decision {
	case ReviewApprove:
		w, err = s.wds.UpdateStatus(ctx, id, models.WithdrawalPending, models.WithdrawalCompleted)
	case ReviewReject:
		w, err = s.wds.RejectWithRefund(ctx, id)
	default:
		return models.Withdrawal{}, fmt.Errorf("%w: unknown decision %q", models.ErrInvalidTransition, decision)
	}
	if err != nil {
		return models.Withdrawal{}, err
	}
	metrics.Withdrawals.WithLabelValues(string(w.Status)).Inc()
	auditAsync(s.wp, s.log, "withdrawal", id, "review_"+string(decision), actor, nil)
	return w, nil
}

// ProcessPayment pushes an approved withdrawal through the external
// gateway. Failure or timeout rolls back to completed (never pending),
// so the admin can retry without re-approving. No balance mutation
// happens here in either direction.
func (s *WithdrawalService) ProcessPayment(ctx context.Context, id string) (models.Withdrawal, error) {
	w, err := s.wds.GetByID(ctx, id)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if w.Status != models.WithdrawalCompleted {
		return models.Withdrawal{}, fmt.Errorf("%w: withdrawal is %s", models.ErrInvalidTransition, w.Status)
	}
	if _, err := s.wds.UpdateStatus(ctx, id, models.WithdrawalCompleted, models.WithdrawalProcessing); err != nil {
		return models.Withdrawal{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()
	res, err := s.gw.Transfer(gctx, gateway.TransferRequest{
		TravelerID:  w.TravelerID,
		Amount:      w.Amount,
		BankDetails: w.BankDetails,
	})
	if err != nil {
		metrics.GatewayFailures.Inc()
		// Compensating edge. Run it even when the caller's ctx is done:
		// the processing state must not outlive the request.
		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer rcancel()
		if _, rerr := s.wds.UpdateStatus(rctx, id, models.WithdrawalProcessing, models.WithdrawalCompleted); rerr != nil {
			slog.Error("withdrawal rollback", "withdrawal_id", id, "err", rerr)
		}
		auditAsync(s.wp, s.log, "withdrawal", id, "transfer_failed", "", map[string]any{"err": err.Error()})
		return models.Withdrawal{}, fmt.Errorf("%w: %v", models.ErrPaymentGateway, err)
	}

	paid, err := s.wds.MarkPaid(ctx, id, res.TransactionID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	metrics.Withdrawals.WithLabelValues(string(models.WithdrawalPaid)).Inc()
	auditAsync(s.wp, s.log, "withdrawal", id, "paid", "", map[string]any{
		"transaction_id": res.TransactionID,
	})
	return paid, nil
}
