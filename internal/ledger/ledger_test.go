package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func creditEntry(tenantID, userID, amount string) *Entry {
	return &Entry{
		TenantID:    tenantID,
		UserID:      userID,
		Kind:        KindCredit,
		Amount:      d(amount),
		Description: "test credit",
	}
}

func debitEntry(tenantID, userID, amount string) *Entry {
	return &Entry{
		TenantID:    tenantID,
		UserID:      userID,
		Kind:        KindDebit,
		Amount:      d(amount),
		Description: "test debit",
	}
}

func TestAppendKeepsReplayInAgreement(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tenantID, userID := uuid.NewString(), uuid.NewString()

	entries := []*Entry{
		creditEntry(tenantID, userID, "50"),
		debitEntry(tenantID, userID, "10"),
		creditEntry(tenantID, userID, "3.30"),
		debitEntry(tenantID, userID, "0.50"),
		creditEntry(tenantID, userID, "100"),
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))

		// The cached balance and a full replay must agree after every append.
		b, err := repo.GetBalance(ctx, tenantID, userID)
		require.NoError(t, err)
		replayed, err := repo.BalanceAsOf(ctx, tenantID, userID)
		require.NoError(t, err)
		require.True(t, b.Amount.Equal(replayed),
			"cached %s != replayed %s", b.Amount, replayed)
		require.True(t, e.BalanceAfter.Equal(b.Amount))
	}

	final, err := repo.BalanceAsOf(ctx, tenantID, userID)
	require.NoError(t, err)
	require.True(t, final.Equal(d("142.80")))
}

func TestAppendValidation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tenantID, userID := uuid.NewString(), uuid.NewString()

	err := repo.Append(ctx, &Entry{TenantID: tenantID, UserID: userID, Kind: KindCredit, Amount: d("0")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = repo.Append(ctx, &Entry{TenantID: tenantID, UserID: userID, Kind: KindCredit, Amount: d("-5")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = repo.Append(ctx, &Entry{TenantID: tenantID, UserID: userID, Kind: "refund", Amount: d("5")})
	require.ErrorIs(t, err, ErrInvalidKind)

	_, total, err := repo.ListByUser(ctx, tenantID, userID, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total, "rejected appends must write nothing")
}

func TestDebitNeverDrivesBalanceNegative(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tenantID, userID := uuid.NewString(), uuid.NewString()

	require.NoError(t, repo.Append(ctx, creditEntry(tenantID, userID, "10")))

	err := repo.Append(ctx, debitEntry(tenantID, userID, "10.01"))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	b, err := repo.GetBalance(ctx, tenantID, userID)
	require.NoError(t, err)
	require.True(t, b.Amount.Equal(d("10")))

	_, total, err := repo.ListByUser(ctx, tenantID, userID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestDebitWithoutBalanceRow(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.Append(context.Background(), debitEntry(uuid.NewString(), uuid.NewString(), "1"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestManualAdjustments(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	tenantID, userID, adminID := uuid.NewString(), uuid.NewString(), uuid.NewString()

	e, err := svc.ManualCredit(ctx, tenantID, userID, d("25"), "", adminID)
	require.NoError(t, err)
	require.Equal(t, KindManualCredit, e.Kind)
	require.NotNil(t, e.ProcessedBy)
	require.Equal(t, adminID, *e.ProcessedBy)

	_, err = svc.ManualDebit(ctx, tenantID, userID, d("30"), "", adminID)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.ManualDebit(ctx, tenantID, userID, d("-1"), "", adminID)
	require.ErrorIs(t, err, ErrInvalidAmount)

	balance, err := svc.CurrentBalance(ctx, tenantID, userID)
	require.NoError(t, err)
	require.True(t, balance.Equal(d("25")))
}

func TestCurrentBalanceZeroWithoutHistory(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	balance, err := svc.CurrentBalance(context.Background(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestConcurrentMixedAppends(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tenantID, userID := uuid.NewString(), uuid.NewString()
	require.NoError(t, repo.Append(ctx, creditEntry(tenantID, userID, "50")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successDebits := 0
	successCredits := 0

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := repo.Append(ctx, debitEntry(tenantID, userID, "1"))
			mu.Lock()
			if err == nil {
				successDebits++
			}
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			err := repo.Append(ctx, creditEntry(tenantID, userID, "1"))
			mu.Lock()
			if err == nil {
				successCredits++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	b, err := repo.GetBalance(ctx, tenantID, userID)
	require.NoError(t, err)
	expected := d("50").Add(decimal.NewFromInt(int64(successCredits - successDebits)))
	require.True(t, b.Amount.Equal(expected), "balance %s != expected %s", b.Amount, expected)

	replayed, err := repo.BalanceAsOf(ctx, tenantID, userID)
	require.NoError(t, err)
	require.True(t, replayed.Equal(b.Amount))
}
