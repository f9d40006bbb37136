package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"raspadinha-backend/internal/ledger"
)

// MemoryRepository settles rounds against an in-memory ledger. Used by tests
// and local runs without a database.
type MemoryRepository struct {
	mu     sync.Mutex
	games  []Game
	ledger *ledger.MemoryRepository
}

func NewMemoryRepository(led *ledger.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{ledger: led}
}

func (r *MemoryRepository) SettleRound(_ context.Context, g *Game, betEntry, prizeEntry *ledger.Entry) (decimal.Decimal, error) {
	if g.GameID == "" {
		g.GameID = uuid.NewString()
	}
	betEntry.GameID = &g.GameID
	if prizeEntry != nil {
		prizeEntry.GameID = &g.GameID
	}
	newBalance, err := r.ledger.ApplyRound(betEntry, prizeEntry)
	if err != nil {
		return decimal.Zero, err
	}
	r.mu.Lock()
	r.games = append(r.games, *g)
	r.mu.Unlock()
	return newBalance, nil
}

func (r *MemoryRepository) RecentByUser(_ context.Context, tenantID, userID string, limit, offset int) ([]Game, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Game
	for i := len(r.games) - 1; i >= 0; i-- {
		g := r.games[i]
		if g.TenantID == tenantID && g.UserID == userID {
			matched = append(matched, g)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) StatsByTenant(_ context.Context, tenantID string, from, to *time.Time) (*TenantStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &TenantStats{
		TotalBet:               decimal.Zero,
		TotalPrize:             decimal.Zero,
		ObservedRTP:            decimal.Zero,
		MultiplierDistribution: make(map[string]int64),
	}
	for i := range r.games {
		g := &r.games[i]
		if g.TenantID != tenantID {
			continue
		}
		if from != nil && to != nil && (g.PlayedAt.Before(*from) || g.PlayedAt.After(*to)) {
			continue
		}
		stats.TotalGames++
		stats.TotalBet = stats.TotalBet.Add(g.BetAmount)
		stats.TotalPrize = stats.TotalPrize.Add(g.PrizeAmount)
		stats.MultiplierDistribution[g.Multiplier.String()]++
	}
	if stats.TotalBet.IsPositive() {
		stats.ObservedRTP = stats.TotalPrize.Div(stats.TotalBet).Round(4)
	}
	return stats, nil
}

// GameCount reports the number of settled plays. Test helper.
func (r *MemoryRepository) GameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}
