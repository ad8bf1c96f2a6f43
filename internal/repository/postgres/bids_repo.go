package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type bidsRepo struct{ pool *pgxpool.Pool }

const bidColumns = `id, sender_id, traveler_id, post_id, request_type,
	parcel_type, parcel_weight, parcel_description, is_important_parcel,
	total_cost, status, check_status, payout_processed, escrow_captured,
	traveler_earnings, platform_fee, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanBid(row rowScanner) (models.Bid, error) {
	var b models.Bid
	var check *string
	err := row.Scan(
		&b.ID, &b.SenderID, &b.TravelerID, &b.PostID, &b.RequestType,
		&b.ParcelType, &b.ParcelWeight, &b.ParcelDescription, &b.IsImportantParcel,
		&b.TotalCost, &b.Status, &check, &b.PayoutProcessed, &b.EscrowCaptured,
		&b.TravelerEarnings, &b.PlatformFee, &b.CreatedAt, &b.UpdatedAt,
	)
	if check != nil {
		cs := models.CheckStatus(*check)
		b.CheckStatus = &cs
	}
	return b, err
}

func (r *bidsRepo) Create(ctx context.Context, b models.Bid) (models.Bid, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	var check *string
	if b.CheckStatus != nil {
		s := string(*b.CheckStatus)
		check = &s
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO bids (
		   id, sender_id, traveler_id, post_id, request_type,
		   parcel_type, parcel_weight, parcel_description, is_important_parcel,
		   total_cost, status, check_status
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 RETURNING `+bidColumns,
		b.ID, b.SenderID, b.TravelerID, b.PostID, b.RequestType,
		b.ParcelType, b.ParcelWeight, b.ParcelDescription, b.IsImportantParcel,
		b.TotalCost, b.Status, check,
	)
	return scanBid(row)
}

func (r *bidsRepo) GetByID(ctx context.Context, id string) (models.Bid, error) {
	b, err := scanBid(r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Bid{}, models.ErrNotFound
	}
	return b, err
}

func (r *bidsRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bidColumns+`
		   FROM bids
		  WHERE sender_id=$1 OR traveler_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *bidsRepo) UpdateStatus(ctx context.Context, id string, from, to models.BidStatus) (models.Bid, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE bids SET status=$3, updated_at=now()
		  WHERE id=$1 AND status=$2
		  RETURNING `+bidColumns,
		id, from, to,
	)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return models.Bid{}, models.ErrNotFound
		}
		return models.Bid{}, models.ErrConcurrencyConflict
	}
	return b, err
}

func (r *bidsRepo) SetCheckStatus(ctx context.Context, id string, from, to models.CheckStatus) (models.Bid, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE bids SET check_status=$3, updated_at=now()
		  WHERE id=$1 AND check_status=$2
		  RETURNING `+bidColumns,
		id, from, to,
	)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return models.Bid{}, models.ErrNotFound
		}
		return models.Bid{}, models.ErrConcurrencyConflict
	}
	return b, err
}

// SettlePayout runs the whole split as one serializable transaction. The
// conditional update on payout_processed is the idempotency guard, and
// the status condition keeps money from moving for a bid that never
// reached received: the losing call of a duplicate pair sees zero rows
// and settles nothing.
func (r *bidsRepo) SettlePayout(ctx context.Context, id string, earnings, fee decimal.Decimal) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var travelerID string
	err = tx.QueryRow(ctx,
		`UPDATE bids
		    SET payout_processed=true, traveler_earnings=$2, platform_fee=$3, updated_at=now()
		  WHERE id=$1 AND payout_processed=false AND status=$4
		  RETURNING traveler_id`,
		id, earnings, fee, models.BidReceived,
	).Scan(&travelerID)
	if errors.Is(err, pgx.ErrNoRows) {
		b, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return false, gerr
		}
		if b.PayoutProcessed {
			return false, nil
		}
		return false, fmt.Errorf("%w: payout requires received, bid is %s", models.ErrInvalidTransition, b.Status)
	}
	if err != nil {
		return false, err
	}

	if _, err := applyDeltaTx(ctx, tx, models.PlatformAccountID, earnings.Neg(), models.ReasonPayoutDebit, id); err != nil {
		return false, err
	}
	if _, err := applyDeltaTx(ctx, tx, travelerID, earnings, models.ReasonPayoutCredit, id); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// CaptureEscrow flips escrow_captured and credits the platform with
// total_cost in one transaction. escrow_captured=false is the durable
// marker: if the credit never committed, the sweep finds the bid again.
func (r *bidsRepo) CaptureEscrow(ctx context.Context, id string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var totalCost decimal.Decimal
	err = tx.QueryRow(ctx,
		`UPDATE bids SET escrow_captured=true, updated_at=now()
		  WHERE id=$1 AND escrow_captured=false
		  RETURNING total_cost`,
		id,
	).Scan(&totalCost)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return false, models.ErrNotFound
		}
		return false, nil // already captured
	}
	if err != nil {
		return false, err
	}

	if _, err := applyDeltaTx(ctx, tx, models.PlatformAccountID, totalCost, models.ReasonEscrowCapture, id); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *bidsRepo) ListUncaptured(ctx context.Context, limit int) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bidColumns+`
		   FROM bids
		  WHERE escrow_captured=false AND status NOT IN ($1,$2,$3)
		  ORDER BY updated_at ASC
		  LIMIT $4`,
		models.BidPending, models.BidAwaitingPayment, models.BidRejected, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *bidsRepo) ListUnsettled(ctx context.Context, limit int) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bidColumns+`
		   FROM bids
		  WHERE status=$1 AND payout_processed=false
		  ORDER BY updated_at ASC
		  LIMIT $2`,
		models.BidReceived, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
