package postgres

import (
	"context"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// applyDeltaTx upserts the account row, adds delta and bumps the version,
// then appends the matching ledger entry. Callers hold the surrounding
// transaction; the row lock taken by the UPDATE serializes concurrent
// writers.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, accountID string, delta decimal.Decimal, reason models.LedgerReason, refID string) (models.Balance, error) {
	var b models.Balance
	err := tx.QueryRow(ctx,
		`INSERT INTO balances(account_id, amount, version, last_updated_at)
		 VALUES($1, $2, 1, now())
		 ON CONFLICT (account_id) DO UPDATE
		    SET amount = balances.amount + EXCLUDED.amount,
		        version = balances.version + 1,
		        last_updated_at = now()
		 RETURNING account_id, amount, version, last_updated_at`,
		accountID, delta,
	).Scan(&b.AccountID, &b.Amount, &b.Version, &b.LastUpdatedAt)
	if err != nil {
		return models.Balance{}, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries(id, account_id, delta, reason, ref_id)
		 VALUES($1,$2,$3,$4,$5)`,
		uuid.NewString(), accountID, delta, reason, refID,
	)
	return b, err
}
