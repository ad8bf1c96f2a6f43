package postgres

import (
	"context"
	"errors"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type balancesRepo struct{ pool *pgxpool.Pool }

func (r *balancesRepo) GetOrCreate(ctx context.Context, accountID string) (models.Balance, error) {
	if b, err := r.Get(ctx, accountID); err == nil {
		return b, nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balances(account_id, amount, version, last_updated_at)
		 VALUES($1, 0, 0, now())
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return models.Balance{}, err
	}
	return r.Get(ctx, accountID)
}

func (r *balancesRepo) Get(ctx context.Context, accountID string) (models.Balance, error) {
	var b models.Balance
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, amount, version, last_updated_at
		   FROM balances
		  WHERE account_id=$1`,
		accountID,
	).Scan(&b.AccountID, &b.Amount, &b.Version, &b.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Balance{}, models.ErrNotFound
	}
	return b, err
}

func (r *balancesRepo) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, expectedVersion int64, reason models.LedgerReason, refID string) (models.Balance, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.Balance{}, err
	}
	defer tx.Rollback(ctx)

	var b models.Balance
	err = tx.QueryRow(ctx,
		`UPDATE balances
		    SET amount = amount + $2,
		        version = version + 1,
		        last_updated_at = now()
		  WHERE account_id = $1 AND version = $3
		  RETURNING account_id, amount, version, last_updated_at`,
		accountID, delta, expectedVersion,
	).Scan(&b.AccountID, &b.Amount, &b.Version, &b.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.Get(ctx, accountID); errors.Is(gerr, models.ErrNotFound) {
			return models.Balance{}, models.ErrNotFound
		}
		return models.Balance{}, models.ErrConcurrencyConflict
	}
	if err != nil {
		return models.Balance{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries(id, account_id, delta, reason, ref_id)
		 VALUES(gen_random_uuid(), $1, $2, $3, $4)`,
		accountID, delta, reason, refID,
	)
	if err != nil {
		return models.Balance{}, err
	}
	return b, tx.Commit(ctx)
}

func (r *balancesRepo) History(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, delta, reason, ref_id, created_at
		   FROM ledger_entries
		  WHERE account_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Delta, &e.Reason, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
