package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxRetries = 3
	RetryDelay = 10 * time.Millisecond
)

// Service exposes balance reads and administrative adjustments. Play-driven
// entries go through the game orchestrator instead.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CurrentBalance returns the user's spendable balance, zero when no entry has
// ever been written for the pair.
func (s *Service) CurrentBalance(ctx context.Context, tenantID, userID string) (decimal.Decimal, error) {
	b, err := s.repo.GetBalance(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return b.Amount, nil
}

// BalanceAsOf replays the full entry history for the pair.
func (s *Service) BalanceAsOf(ctx context.Context, tenantID, userID string) (decimal.Decimal, error) {
	return s.repo.BalanceAsOf(ctx, tenantID, userID)
}

func (s *Service) History(ctx context.Context, tenantID, userID string, limit, offset int) ([]Entry, int64, error) {
	return s.repo.ListByUser(ctx, tenantID, userID, limit, offset)
}

// ManualCredit appends an administrative credit processed by adminID.
func (s *Service) ManualCredit(ctx context.Context, tenantID, userID string, amount decimal.Decimal, description, adminID string) (*Entry, error) {
	return s.manualEntry(ctx, KindManualCredit, tenantID, userID, amount, description, adminID)
}

// ManualDebit appends an administrative debit processed by adminID. Fails with
// ErrInsufficientFunds when the balance does not cover the amount.
func (s *Service) ManualDebit(ctx context.Context, tenantID, userID string, amount decimal.Decimal, description, adminID string) (*Entry, error) {
	return s.manualEntry(ctx, KindManualDebit, tenantID, userID, amount, description, adminID)
}

func (s *Service) manualEntry(ctx context.Context, kind, tenantID, userID string, amount decimal.Decimal, description, adminID string) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		verb := "credit"
		if kind == KindManualDebit {
			verb = "debit"
		}
		description = fmt.Sprintf("manual %s of %s", verb, amount.StringFixed(2))
	}
	var lastErr error
	for i := 0; i < MaxRetries; i++ {
		e := &Entry{
			TenantID:    tenantID,
			UserID:      userID,
			Kind:        kind,
			Amount:      amount,
			Description: description,
			ProcessedBy: &adminID,
		}
		lastErr = s.repo.Append(ctx, e)
		if lastErr == nil {
			return e, nil
		}
		if errors.Is(lastErr, ErrOptimisticLock) {
			time.Sleep(RetryDelay)
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}
