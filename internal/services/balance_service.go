package services

import (
	"context"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	repo "github.com/Farhad2590/traveltrade-backend/internal/repository"
)

type BalanceService struct{ r repo.Balances }

func NewBalanceService(r repo.Balances) *BalanceService { return &BalanceService{r: r} }

func (s *BalanceService) Current(ctx context.Context, accountID string) (models.Balance, error) {
	return s.r.GetOrCreate(ctx, accountID)
}

func (s *BalanceService) History(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.r.History(ctx, accountID, limit, offset)
}
