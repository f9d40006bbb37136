package paytable

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoTable means no active entries exist for the tenant and no default is
	// seeded. Play must refuse to run rather than fall back to an unvalidated table.
	ErrNoTable = errors.New("no paytable configured")

	ErrInvalidWeight     = errors.New("paytable weight must be positive")
	ErrInvalidMultiplier = errors.New("paytable multiplier must be non-negative")
	ErrZeroTotalWeight   = errors.New("paytable total weight must be positive")
	ErrRTPOutOfRange     = errors.New("paytable RTP outside configured band")
)

// Entry is one (multiplier, weight) row. TenantID nil marks the global default
// table used by tenants without their own configuration.
type Entry struct {
	EntryID    string          `gorm:"column:entry_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	TenantID   *string         `gorm:"column:tenant_id;type:uuid;index"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:numeric(8,2);not null"`
	Weight     int64           `gorm:"column:weight;not null"`
	Active     bool            `gorm:"column:active;not null;default:true;index"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null;default:now()"`
}

func (Entry) TableName() string { return "paytable_entries" }

// Table is a validated, ordered paytable ready for drawing. Entries are sorted
// by descending weight then ascending multiplier so the same set of rows always
// partitions the draw interval identically.
type Table struct {
	TenantID    string          `json:"tenant_id"`
	Entries     []Entry         `json:"entries"`
	TotalWeight int64           `json:"total_weight"`
	RTP         decimal.Decimal `json:"rtp"`
}

// NewTable sorts and validates entries against the target RTP band and returns
// a Table usable by the outcome generator. Fails closed on any invalid row.
func NewTable(tenantID string, entries []Entry, target, tolerance decimal.Decimal) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrNoTable
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].Multiplier.LessThan(sorted[j].Multiplier)
	})

	var total int64
	weighted := decimal.Zero
	for _, e := range sorted {
		if e.Weight <= 0 {
			return nil, ErrInvalidWeight
		}
		if e.Multiplier.IsNegative() {
			return nil, ErrInvalidMultiplier
		}
		total += e.Weight
		weighted = weighted.Add(e.Multiplier.Mul(decimal.NewFromInt(e.Weight)))
	}
	if total <= 0 {
		return nil, ErrZeroTotalWeight
	}

	rtp := weighted.Div(decimal.NewFromInt(total))
	if rtp.Sub(target).Abs().GreaterThan(tolerance) {
		return nil, ErrRTPOutOfRange
	}

	return &Table{
		TenantID:    tenantID,
		Entries:     sorted,
		TotalWeight: total,
		RTP:         rtp,
	}, nil
}

// Contains reports whether m is one of the table's multipliers.
func (t *Table) Contains(m decimal.Decimal) bool {
	for _, e := range t.Entries {
		if e.Multiplier.Equal(m) {
			return true
		}
	}
	return false
}

// DefaultEntries is the seed table (effective RTP 94.99964%, max prize 5000x).
// Weights are probabilities scaled by 1e8 so every row stays integral.
func DefaultEntries() []Entry {
	rows := []struct {
		mult   string
		weight int64
	}{
		{"0", 40000000},
		{"0.7", 25000000},
		{"1.4", 20000000},
		{"2", 8000000},
		{"3", 4000000},
		{"4", 1800000},
		{"5", 800000},
		{"12", 250000},
		{"25", 100000},
		{"70", 40000},
		{"140", 8000},
		{"320", 1500},
		{"650", 400},
		{"1360", 99},
		{"5000", 1},
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			Multiplier: decimal.RequireFromString(r.mult),
			Weight:     r.weight,
			Active:     true,
		})
	}
	return entries
}
