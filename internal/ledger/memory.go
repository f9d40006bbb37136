package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-memory ledger for tests and local runs. One mutex
// serializes all balance mutation, which satisfies the per-user atomicity the
// durable implementation gets from transactions plus optimistic locking.
type MemoryRepository struct {
	mu       sync.Mutex
	balances map[string]*Balance
	entries  []Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{balances: make(map[string]*Balance)}
}

func balanceKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (r *MemoryRepository) GetBalance(_ context.Context, tenantID, userID string) (*Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[balanceKey(tenantID, userID)]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) CreateBalance(_ context.Context, tenantID, userID string) (*Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &Balance{
		BalanceID: uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Amount:    decimal.Zero,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.balances[balanceKey(tenantID, userID)] = b
	cp := *b
	return &cp, nil
}

// applyLocked mutates the balance and appends the entry. Caller holds r.mu.
func (r *MemoryRepository) applyLocked(e *Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	key := balanceKey(e.TenantID, e.UserID)
	b, ok := r.balances[key]
	if !ok {
		if !IsCreditKind(e.Kind) {
			return ErrInsufficientFunds
		}
		b = &Balance{
			BalanceID: uuid.NewString(),
			TenantID:  e.TenantID,
			UserID:    e.UserID,
			Amount:    decimal.Zero,
			Version:   1,
			CreatedAt: time.Now(),
		}
		r.balances[key] = b
	}
	newBalance := b.Amount.Add(e.Signed())
	if newBalance.IsNegative() {
		return ErrInsufficientFunds
	}
	b.Amount = newBalance
	b.Version++
	b.UpdatedAt = time.Now()
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	e.BalanceAfter = newBalance
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) Append(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(e)
}

// ApplyRound appends a bet debit and an optional prize credit as one atomic
// unit: either both entries land with the combined balance change, or nothing
// is recorded. Returns the resulting balance.
func (r *MemoryRepository) ApplyRound(bet, prize *Entry) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := balanceKey(bet.TenantID, bet.UserID)
	b, ok := r.balances[key]
	if !ok || b.Amount.LessThan(bet.Amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if err := r.applyLocked(bet); err != nil {
		return decimal.Zero, err
	}
	if prize != nil {
		if err := r.applyLocked(prize); err != nil {
			// Cannot happen for a positive credit; keep the ledger coherent anyway.
			return decimal.Zero, err
		}
	}
	return r.balances[key].Amount, nil
}

func (r *MemoryRepository) BalanceAsOf(_ context.Context, tenantID, userID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for i := range r.entries {
		e := &r.entries[i]
		if e.TenantID == tenantID && e.UserID == userID {
			total = total.Add(e.Signed())
		}
	}
	return total, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, tenantID, userID string, limit, offset int) ([]Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TenantID == tenantID && e.UserID == userID {
			matched = append(matched, e)
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
