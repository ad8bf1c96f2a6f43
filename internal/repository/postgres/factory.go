package postgres

import (
	repo "github.com/Farhad2590/traveltrade-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Bids        repo.Bids
	Withdrawals repo.Withdrawals
	Balances    repo.Balances
	AuditLogs   repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Bids:        &bidsRepo{pool},
		Withdrawals: &withdrawalsRepo{pool},
		Balances:    &balancesRepo{pool},
		AuditLogs:   &auditLogsRepo{pool},
	}
}
