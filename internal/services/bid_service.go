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

type BidService struct {
	bids    repo.Bids
	log     repo.AuditLogs
	payouts *PayoutService
	wp      *worker.Pool
}

func NewBidService(b repo.Bids, l repo.AuditLogs, p *PayoutService, wp *worker.Pool) *BidService {
	return &BidService{bids: b, log: l, payouts: p, wp: wp}
}

type CreateBidInput struct {
	SenderID          string
	TravelerID        string
	PostID            string
	RequestType       models.RequestType
	ParcelType        string
	ParcelWeight      decimal.Decimal
	ParcelDescription string
	IsImportantParcel bool
	TotalCost         decimal.Decimal
}

func (s *BidService) Create(ctx context.Context, in CreateBidInput) (models.Bid, error) {
	if !in.RequestType.Valid() {
		return models.Bid{}, fmt.Errorf("invalid request type %q", in.RequestType)
	}
	if !in.TotalCost.IsPositive() {
		return models.Bid{}, fmt.Errorf("total cost must be > 0")
	}
	b := models.Bid{
		SenderID:          in.SenderID,
		TravelerID:        in.TravelerID,
		PostID:            in.PostID,
		RequestType:       in.RequestType,
		ParcelType:        in.ParcelType,
		ParcelWeight:      in.ParcelWeight,
		ParcelDescription: in.ParcelDescription,
		IsImportantParcel: in.IsImportantParcel,
		TotalCost:         in.TotalCost,
		Status:            models.BidPending,
	}
	if in.IsImportantParcel {
		cs := models.CheckPending
		b.CheckStatus = &cs
	}
	b, err := s.bids.Create(ctx, b)
	if err != nil {
		return models.Bid{}, err
	}
	auditAsync(s.wp, s.log, "bid", b.ID, "created", in.SenderID, nil)
	return b, nil
}

func (s *BidService) GetByID(ctx context.Context, id string) (models.Bid, error) {
	return s.bids.GetByID(ctx, id)
}

func (s *BidService) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]models.Bid, error) {
	return s.bids.ListByParticipant(ctx, userID, limit, offset)
}

// RequestTransition validates and applies one status step. Validation
// fully precedes mutation; the conditional store update closes the gap
// against a concurrent racer.
func (s *BidService) RequestTransition(ctx context.Context, bidID string, target models.BidStatus, actor string) (models.Bid, error) {
	if !target.Valid() {
		return models.Bid{}, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, target)
	}
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return models.Bid{}, err
	}
	if !models.CanTransition(b.RequestType, b.Status, target) {
		return models.Bid{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, b.Status, target)
	}
	if b.IsImportantParcel && models.RequiresCheckApproval(b.RequestType, target) && !b.CheckApproved() {
		return models.Bid{}, models.ErrCheckNotApproved
	}

	updated, err := s.bids.UpdateStatus(ctx, bidID, b.Status, target)
	if err != nil {
		return models.Bid{}, err
	}
	metrics.BidTransitions.WithLabelValues(string(target)).Inc()
	auditAsync(s.wp, s.log, "bid", bidID, "status_change", actor, map[string]any{
		"from": string(b.Status), "to": string(target),
	})

	switch target {
	case models.BidPaymentConfirmed:
		// Escrow capture: the sender's payment lands on the platform
		// account until delivery confirmation. The capture flips a
		// durable flag with the credit in one transaction; if it fails
		// here the recovery sweep retries until it lands.
		if _, err := s.bids.CaptureEscrow(ctx, bidID); err != nil {
			slog.Error("escrow capture", "bid_id", bidID, "err", err)
		}
	case models.BidReceived:
		return s.payouts.TriggerPayout(ctx, bidID)
	}
	return updated, nil
}

// SetCheckStatus resolves the important-parcel verification gate. Only
// checkPending may resolve, and only to approved or unapproved.
func (s *BidService) SetCheckStatus(ctx context.Context, bidID string, decision models.CheckStatus, actor string) (models.Bid, error) {
	if decision != models.CheckApproved && decision != models.CheckUnapproved {
		return models.Bid{}, fmt.Errorf("%w: unknown check decision %q", models.ErrInvalidTransition, decision)
	}
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return models.Bid{}, err
	}
	if !b.IsImportantParcel || b.CheckStatus == nil {
		return models.Bid{}, fmt.Errorf("%w: bid has no parcel check", models.ErrInvalidTransition)
	}
	if *b.CheckStatus != models.CheckPending {
		return models.Bid{}, fmt.Errorf("%w: check already %s", models.ErrInvalidTransition, *b.CheckStatus)
	}
	updated, err := s.bids.SetCheckStatus(ctx, bidID, models.CheckPending, decision)
	if err != nil {
		return models.Bid{}, err
	}
	auditAsync(s.wp, s.log, "bid", bidID, "check_"+string(decision), actor, nil)
	return updated, nil
}
