package postgres

import (
	"context"
	"errors"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type withdrawalsRepo struct{ pool *pgxpool.Pool }

const withdrawalColumns = `id, traveler_id, amount, bank_details, status,
	transaction_id, paid_at, created_at, updated_at`

func scanWithdrawal(row rowScanner) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID, &w.TravelerID, &w.Amount, &w.BankDetails, &w.Status,
		&w.TransactionID, &w.PaidAt, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

// CreateWithDebit reserves the funds at creation: the conditional debit
// and the insert commit together or not at all, so two racing creates
// cannot both pass the balance check.
func (r *withdrawalsRepo) CreateWithDebit(ctx context.Context, w models.Withdrawal, expectedVersion int64) (models.Withdrawal, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.Withdrawal{}, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE balances
		    SET amount = amount - $2,
		        version = version + 1,
		        last_updated_at = now()
		  WHERE account_id = $1 AND version = $3 AND amount >= $2`,
		w.TravelerID, w.Amount, expectedVersion,
	)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if tag.RowsAffected() == 0 {
		var version int64
		err := r.pool.QueryRow(ctx,
			`SELECT version FROM balances WHERE account_id=$1`, w.TravelerID,
		).Scan(&version)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Withdrawal{}, models.ErrNotFound
		case err != nil:
			return models.Withdrawal{}, err
		case version != expectedVersion:
			return models.Withdrawal{}, models.ErrConcurrencyConflict
		default:
			return models.Withdrawal{}, models.ErrInsufficientBalance
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries(id, account_id, delta, reason, ref_id)
		 VALUES(gen_random_uuid(), $1, $2, $3, $4)`,
		w.TravelerID, w.Amount.Neg(), models.ReasonWithdrawalDebit, w.ID,
	)
	if err != nil {
		return models.Withdrawal{}, err
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO withdrawals (id, traveler_id, amount, bank_details, status)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING `+withdrawalColumns,
		w.ID, w.TravelerID, w.Amount, w.BankDetails, w.Status,
	)
	out, err := scanWithdrawal(row)
	if err != nil {
		return models.Withdrawal{}, err
	}
	return out, tx.Commit(ctx)
}

func (r *withdrawalsRepo) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Withdrawal{}, models.ErrNotFound
	}
	return w, err
}

func (r *withdrawalsRepo) ListByTraveler(ctx context.Context, travelerID string, limit, offset int) ([]models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+`
		   FROM withdrawals
		  WHERE traveler_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		travelerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (r *withdrawalsRepo) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+`
		   FROM withdrawals
		  WHERE status=$1
		  ORDER BY created_at ASC
		  LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func collectWithdrawals(rows pgx.Rows) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *withdrawalsRepo) UpdateStatus(ctx context.Context, id string, from, to models.WithdrawalStatus) (models.Withdrawal, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE withdrawals SET status=$3, updated_at=now()
		  WHERE id=$1 AND status=$2
		  RETURNING `+withdrawalColumns,
		id, from, to,
	)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return models.Withdrawal{}, models.ErrNotFound
		}
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	return w, err
}

func (r *withdrawalsRepo) MarkPaid(ctx context.Context, id, transactionID string) (models.Withdrawal, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE withdrawals
		    SET status=$3, transaction_id=$2, paid_at=now(), updated_at=now()
		  WHERE id=$1 AND status=$4
		  RETURNING `+withdrawalColumns,
		id, transactionID, models.WithdrawalPaid, models.WithdrawalProcessing,
	)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return models.Withdrawal{}, models.ErrNotFound
		}
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	return w, err
}

// RejectWithRefund undoes the reservation made at creation: the status
// flip and the compensating credit commit together.
func (r *withdrawalsRepo) RejectWithRefund(ctx context.Context, id string) (models.Withdrawal, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.Withdrawal{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE withdrawals SET status=$2, updated_at=now()
		  WHERE id=$1 AND status=$3
		  RETURNING `+withdrawalColumns,
		id, models.WithdrawalRejected, models.WithdrawalPending,
	)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
			return models.Withdrawal{}, models.ErrNotFound
		}
		return models.Withdrawal{}, models.ErrConcurrencyConflict
	}
	if err != nil {
		return models.Withdrawal{}, err
	}

	if _, err := applyDeltaTx(ctx, tx, w.TravelerID, w.Amount, models.ReasonWithdrawalRefund, w.ID); err != nil {
		return models.Withdrawal{}, err
	}
	return w, tx.Commit(ctx)
}
