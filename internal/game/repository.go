package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"raspadinha-backend/internal/ledger"
)

type Repository interface {
	// SettleRound persists one play atomically: funds check, balance change,
	// game record, bet debit and optional prize credit all commit together or
	// not at all. Returns the resulting balance.
	SettleRound(ctx context.Context, g *Game, betEntry, prizeEntry *ledger.Entry) (decimal.Decimal, error)

	RecentByUser(ctx context.Context, tenantID, userID string, limit, offset int) ([]Game, int64, error)
	StatsByTenant(ctx context.Context, tenantID string, from, to *time.Time) (*TenantStats, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) SettleRound(ctx context.Context, g *Game, betEntry, prizeEntry *ledger.Entry) (decimal.Decimal, error) {
	finalBalance := decimal.Zero
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b ledger.Balance
		err := tx.Where("tenant_id = ? AND user_id = ?", g.TenantID, g.UserID).First(&b).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrInsufficientFunds
			}
			return err
		}
		if b.Amount.LessThan(g.BetAmount) {
			return ledger.ErrInsufficientFunds
		}

		afterBet := b.Amount.Sub(g.BetAmount)
		final := afterBet
		if prizeEntry != nil {
			final = afterBet.Add(prizeEntry.Amount)
		}

		result := tx.Model(&ledger.Balance{}).
			Where("balance_id = ? AND version = ?", b.BalanceID, b.Version).
			Updates(map[string]interface{}{
				"amount":     final,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledger.ErrOptimisticLock
		}

		if g.GameID == "" {
			g.GameID = uuid.NewString()
		}
		if err := tx.Create(g).Error; err != nil {
			return err
		}

		betEntry.EntryID = uuid.NewString()
		betEntry.GameID = &g.GameID
		betEntry.BalanceAfter = afterBet
		if err := tx.Create(betEntry).Error; err != nil {
			return err
		}

		if prizeEntry != nil {
			prizeEntry.EntryID = uuid.NewString()
			prizeEntry.GameID = &g.GameID
			prizeEntry.BalanceAfter = final
			if err := tx.Create(prizeEntry).Error; err != nil {
				return err
			}
		}

		finalBalance = final
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return finalBalance, nil
}

func (r *RepositoryImpl) RecentByUser(ctx context.Context, tenantID, userID string, limit, offset int) ([]Game, int64, error) {
	var games []Game
	q := r.db.WithContext(ctx).Model(&Game{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("played_at DESC").Limit(limit).Offset(offset).Find(&games).Error
	if err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

func (r *RepositoryImpl) StatsByTenant(ctx context.Context, tenantID string, from, to *time.Time) (*TenantStats, error) {
	q := r.db.WithContext(ctx).Model(&Game{}).Where("tenant_id = ?", tenantID)
	if from != nil && to != nil {
		q = q.Where("played_at BETWEEN ? AND ?", *from, *to)
	}

	var totals struct {
		TotalGames int64
		TotalBet   decimal.Decimal
		TotalPrize decimal.Decimal
	}
	err := q.Select("COUNT(*) AS total_games, COALESCE(SUM(bet_amount), 0) AS total_bet, COALESCE(SUM(prize_amount), 0) AS total_prize").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats := &TenantStats{
		TotalGames:             totals.TotalGames,
		TotalBet:               totals.TotalBet,
		TotalPrize:             totals.TotalPrize,
		ObservedRTP:            decimal.Zero,
		MultiplierDistribution: make(map[string]int64),
	}
	if totals.TotalBet.IsPositive() {
		stats.ObservedRTP = totals.TotalPrize.Div(totals.TotalBet).Round(4)
	}

	var rows []struct {
		Multiplier decimal.Decimal
		Count      int64
	}
	err = r.db.WithContext(ctx).Model(&Game{}).
		Where("tenant_id = ?", tenantID).
		Select("multiplier, COUNT(*) AS count").
		Group("multiplier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.MultiplierDistribution[row.Multiplier.String()] = row.Count
	}
	return stats, nil
}
