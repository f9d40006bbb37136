package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceNotFound   = errors.New("balance not found")
	ErrInvalidAmount     = errors.New("entry amount must be positive")
	ErrInvalidKind       = errors.New("invalid entry kind")
	ErrOptimisticLock    = errors.New("optimistic lock error")
)

type Repository interface {
	GetBalance(ctx context.Context, tenantID, userID string) (*Balance, error)
	CreateBalance(ctx context.Context, tenantID, userID string) (*Balance, error)

	// Append writes one entry and adjusts the cached balance in a single
	// transaction. Debit kinds fail with ErrInsufficientFunds before anything
	// is written when the balance does not cover the amount.
	Append(ctx context.Context, e *Entry) error

	// BalanceAsOf replays all entries for the pair. It must agree with the
	// cached balance after every append.
	BalanceAsOf(ctx context.Context, tenantID, userID string) (decimal.Decimal, error)

	ListByUser(ctx context.Context, tenantID, userID string, limit, offset int) ([]Entry, int64, error)
}

// validateEntry enforces the append contract shared by all implementations.
func validateEntry(e *Entry) error {
	if e == nil || !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !ValidKind(e.Kind) {
		return ErrInvalidKind
	}
	if e.TenantID == "" || e.UserID == "" {
		return ErrBalanceNotFound
	}
	return nil
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetBalance(ctx context.Context, tenantID, userID string) (*Balance, error) {
	var b Balance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *RepositoryImpl) CreateBalance(ctx context.Context, tenantID, userID string) (*Balance, error) {
	b := Balance{
		BalanceID: uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Amount:    decimal.Zero,
		Version:   1,
	}
	if err := r.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *RepositoryImpl) Append(ctx context.Context, e *Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Balance
		err := tx.Where("tenant_id = ? AND user_id = ?", e.TenantID, e.UserID).First(&b).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if !IsCreditKind(e.Kind) {
				return ErrInsufficientFunds
			}
			b = Balance{
				BalanceID: uuid.NewString(),
				TenantID:  e.TenantID,
				UserID:    e.UserID,
				Amount:    decimal.Zero,
				Version:   1,
			}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
		}

		newBalance := b.Amount.Add(e.Signed())
		if newBalance.IsNegative() {
			return ErrInsufficientFunds
		}

		result := tx.Model(&Balance{}).
			Where("balance_id = ? AND version = ?", b.BalanceID, b.Version).
			Updates(map[string]interface{}{
				"amount":     newBalance,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOptimisticLock
		}

		if e.EntryID == "" {
			e.EntryID = uuid.NewString()
		}
		e.BalanceAfter = newBalance
		return tx.Create(e).Error
	})
}

func (r *RepositoryImpl) BalanceAsOf(ctx context.Context, tenantID, userID string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&Entry{}).
		Select("COALESCE(SUM(CASE WHEN kind IN ('credit', 'manual_credit') THEN amount ELSE -amount END), 0) AS total").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, tenantID, userID string, limit, offset int) ([]Entry, int64, error) {
	var entries []Entry
	q := r.db.WithContext(ctx).Model(&Entry{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
