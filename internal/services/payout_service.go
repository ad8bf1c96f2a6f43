package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Farhad2590/traveltrade-backend/internal/metrics"
	"github.com/Farhad2590/traveltrade-backend/internal/models"
	repo "github.com/Farhad2590/traveltrade-backend/internal/repository"
	"github.com/Farhad2590/traveltrade-backend/internal/worker"
	"github.com/shopspring/decimal"
)

// Commission split applied when a bid reaches received. The traveler
// gets TravelerShare of totalCost; the platform keeps the remainder.
var (
	TravelerShare = decimal.NewFromFloat(0.90)
	PlatformShare = decimal.NewFromFloat(0.10)
)

// Split computes the payout amounts. Earnings round to 2 places; the fee
// is the exact remainder so the two always sum to totalCost.
func Split(totalCost decimal.Decimal) (earnings, fee decimal.Decimal) {
	earnings = totalCost.Mul(TravelerShare).Round(2)
	fee = totalCost.Sub(earnings)
	return earnings, fee
}

type PayoutService struct {
	bids repo.Bids
	log  repo.AuditLogs
	wp   *worker.Pool
}

func NewPayoutService(b repo.Bids, l repo.AuditLogs, wp *worker.Pool) *PayoutService {
	return &PayoutService{bids: b, log: l, wp: wp}
}

// TriggerPayout settles the 90/10 split for a bid at received, exactly
// once. A bid whose payout already processed returns as a no-op; a bid
// anywhere else in the lifecycle is ErrInvalidTransition. Safe to call
// repeatedly with the same id.
func (s *PayoutService) TriggerPayout(ctx context.Context, bidID string) (models.Bid, error) {
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return models.Bid{}, err
	}
	if b.PayoutProcessed {
		return b, nil
	}
	if b.Status != models.BidReceived {
		return models.Bid{}, fmt.Errorf("%w: payout requires received, bid is %s", models.ErrInvalidTransition, b.Status)
	}

	earnings, fee := Split(b.TotalCost)
	settled, err := s.bids.SettlePayout(ctx, bidID, earnings, fee)
	if err != nil {
		metrics.PayoutsFailed.Inc()
		return models.Bid{}, err
	}
	if settled {
		metrics.PayoutsTotal.Inc()
		auditAsync(s.wp, s.log, "bid", bidID, "payout_settled", "", map[string]any{
			"traveler_earnings": earnings.String(),
			"platform_fee":      fee.String(),
		})
	}
	return s.bids.GetByID(ctx, bidID)
}

// RecoverUnsettled re-triggers payouts for bids that reached received
// without a processed payout (e.g. a crash between the status write and
// the settle). Settle idempotency makes re-runs harmless.
func (s *PayoutService) RecoverUnsettled(ctx context.Context) (int, error) {
	bids, err := s.bids.ListUnsettled(ctx, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range bids {
		if _, err := s.TriggerPayout(ctx, b.ID); err != nil {
			slog.Error("payout recovery", "bid_id", b.ID, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

// RecoverUncapturedEscrow retries the platform escrow credit for bids
// whose payment was confirmed but whose capture failed mid-flight.
// Capture idempotency makes overlap with live traffic harmless.
func (s *PayoutService) RecoverUncapturedEscrow(ctx context.Context) (int, error) {
	bids, err := s.bids.ListUncaptured(ctx, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range bids {
		captured, err := s.bids.CaptureEscrow(ctx, b.ID)
		if err != nil {
			slog.Error("escrow recovery", "bid_id", b.ID, "err", err)
			continue
		}
		if captured {
			auditAsync(s.wp, s.log, "bid", b.ID, "escrow_captured", "", nil)
			n++
		}
	}
	return n, nil
}
