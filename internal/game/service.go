package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"raspadinha-backend/internal/ledger"
	"raspadinha-backend/internal/outcome"
	"raspadinha-backend/internal/paytable"
	"raspadinha-backend/internal/tenant"
)

var (
	ErrInvalidBetAmount     = errors.New("bet amount not in tenant's allowed set")
	ErrTenantOrUserNotFound = errors.New("tenant or user not found")
)

const (
	MaxRetries = 3
	RetryDelay = 10 * time.Millisecond
)

// Service orchestrates one play: validate the bet, load the tenant's paytable,
// draw an outcome and settle the round atomically.
type Service struct {
	tenants tenant.Repository
	tables  *paytable.Service
	repo    Repository
	src     outcome.Source
}

func NewService(tenants tenant.Repository, tables *paytable.Service, repo Repository, src outcome.Source) *Service {
	if src == nil {
		src = outcome.CryptoSource()
	}
	return &Service{
		tenants: tenants,
		tables:  tables,
		repo:    repo,
		src:     src,
	}
}

// Play runs one wagering event for the already-authenticated (tenant, user)
// pair. All persisted effects commit atomically; on failure nothing is written.
func (s *Service) Play(ctx context.Context, tenantID, userID string, betAmount decimal.Decimal, audit Audit) (*Result, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, ErrTenantOrUserNotFound
		}
		return nil, fmt.Errorf("resolving tenant: %w", err)
	}
	if !t.Active {
		return nil, ErrTenantOrUserNotFound
	}
	u, err := s.tenants.FindUser(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, tenant.ErrUserNotFound) {
			return nil, ErrTenantOrUserNotFound
		}
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	if !u.Active {
		return nil, ErrTenantOrUserNotFound
	}

	if !t.BetAllowed(betAmount) {
		return nil, ErrInvalidBetAmount
	}

	table, err := s.tables.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < MaxRetries; i++ {
		multiplier, err := outcome.Draw(table, s.src)
		if err != nil {
			return nil, err
		}
		prize := betAmount.Mul(multiplier).Round(2)
		symbols, winSym := generateSymbols(s.src, prize.IsPositive())

		g := &Game{
			TenantID:      tenantID,
			UserID:        userID,
			BetAmount:     betAmount,
			Multiplier:    multiplier,
			PrizeAmount:   prize,
			Symbols:       symbols,
			WinningSymbol: winSym,
			IPAddress:     audit.IPAddress,
			UserAgent:     audit.UserAgent,
			PlayedAt:      time.Now(),
		}
		betEntry := &ledger.Entry{
			TenantID:    tenantID,
			UserID:      userID,
			Kind:        ledger.KindDebit,
			Amount:      betAmount,
			Description: fmt.Sprintf("scratch card bet of %s", betAmount.StringFixed(2)),
		}
		var prizeEntry *ledger.Entry
		if prize.IsPositive() {
			prizeEntry = &ledger.Entry{
				TenantID:    tenantID,
				UserID:      userID,
				Kind:        ledger.KindCredit,
				Amount:      prize,
				Description: fmt.Sprintf("scratch card prize %sx", multiplier.String()),
			}
		}

		newBalance, err := s.repo.SettleRound(ctx, g, betEntry, prizeEntry)
		if err == nil {
			return &Result{Game: g, NewBalance: newBalance}, nil
		}
		if errors.Is(err, ledger.ErrOptimisticLock) {
			lastErr = err
			time.Sleep(RetryDelay)
			continue
		}
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, ledger.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("settling round: %w", err)
	}
	return nil, fmt.Errorf("settling round: %w", lastErr)
}

// History returns the user's recent plays, newest first.
func (s *Service) History(ctx context.Context, tenantID, userID string, limit, offset int) ([]Game, int64, error) {
	return s.repo.RecentByUser(ctx, tenantID, userID, limit, offset)
}

// Stats aggregates the tenant's settled plays for the admin surface.
func (s *Service) Stats(ctx context.Context, tenantID string, from, to *time.Time) (*TenantStats, error) {
	return s.repo.StatsByTenant(ctx, tenantID, from, to)
}
