package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry kinds. Manual kinds are administrative adjustments and carry the
// processing admin's id; play-driven kinds reference a game.
const (
	KindDebit        = "debit"
	KindCredit       = "credit"
	KindManualCredit = "manual_credit"
	KindManualDebit  = "manual_debit"
)

// Entry is one monetary movement. Entries are write-once: corrections are new
// entries, never updates or deletes.
type Entry struct {
	EntryID      string          `gorm:"column:entry_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	TenantID     string          `gorm:"column:tenant_id;type:uuid;not null;index:idx_ledger_tenant_user"`
	UserID       string          `gorm:"column:user_id;type:uuid;not null;index:idx_ledger_tenant_user"`
	Kind         string          `gorm:"column:kind;type:varchar(20);not null"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Description  string          `gorm:"column:description;type:varchar(255);not null"`
	GameID       *string         `gorm:"column:game_id;type:uuid;index"`
	ProcessedBy  *string         `gorm:"column:processed_by;type:uuid"`
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(10,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;default:now()"`
}

func (Entry) TableName() string { return "ledger_entries" }

// Balance is the cached spendable balance per (tenant, user), maintained in the
// same transaction as every entry write. Version drives optimistic locking.
type Balance struct {
	BalanceID string          `gorm:"column:balance_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	TenantID  string          `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_balances_tenant_user"`
	UserID    string          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_balances_tenant_user"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null;default:0"`
	Version   int             `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null;default:now()"`
}

func (Balance) TableName() string { return "balances" }

// IsCreditKind reports whether the kind increases the balance.
func IsCreditKind(kind string) bool {
	return kind == KindCredit || kind == KindManualCredit
}

// ValidKind reports whether kind is one of the four entry kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindDebit, KindCredit, KindManualCredit, KindManualDebit:
		return true
	}
	return false
}

// Signed returns the entry amount with its balance effect sign applied.
func (e *Entry) Signed() decimal.Decimal {
	if IsCreditKind(e.Kind) {
		return e.Amount
	}
	return e.Amount.Neg()
}
