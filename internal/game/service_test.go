package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"raspadinha-backend/internal/ledger"
	"raspadinha-backend/internal/outcome"
	"raspadinha-backend/internal/paytable"
	"raspadinha-backend/internal/tenant"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(mult string, weight int64) paytable.Entry {
	return paytable.Entry{Multiplier: decimal.RequireFromString(mult), Weight: weight, Active: true}
}

type fixture struct {
	tenants  *tenant.MemoryRepository
	ledger   *ledger.MemoryRepository
	games    *MemoryRepository
	service  *Service
	tenantID string
	userID   string
}

// newFixture wires the orchestrator against memory repositories with the given
// paytable and RTP band, funds the user and returns the assembled parts.
func newFixture(t *testing.T, seed int64, target, tolerance string, balance string, entries ...paytable.Entry) *fixture {
	t.Helper()
	ctx := context.Background()

	tenants := tenant.NewMemoryRepository()
	tn := &tenant.Tenant{Subdomain: "acme", Name: "Acme", Active: true}
	require.NoError(t, tenants.CreateTenant(ctx, tn))
	u := &tenant.User{TenantID: tn.TenantID, Email: "player@acme.test", PasswordHash: "x", Active: true}
	require.NoError(t, tenants.CreateUser(ctx, u))

	tableRepo := paytable.NewMemoryRepository()
	require.NoError(t, tableRepo.ReplaceTable(ctx, tn.TenantID, entries))
	tables := paytable.NewService(tableRepo, paytable.NewMemoryCache(time.Minute), d(target), d(tolerance))

	led := ledger.NewMemoryRepository()
	if balance != "" && balance != "0" {
		adminID := uuid.NewString()
		require.NoError(t, led.Append(ctx, &ledger.Entry{
			TenantID:    tn.TenantID,
			UserID:      u.UserID,
			Kind:        ledger.KindManualCredit,
			Amount:      d(balance),
			Description: "test funding",
			ProcessedBy: &adminID,
		}))
	}

	games := NewMemoryRepository(led)
	svc := NewService(tenants, tables, games, outcome.NewSeededSource(seed))
	return &fixture{
		tenants:  tenants,
		ledger:   led,
		games:    games,
		service:  svc,
		tenantID: tn.TenantID,
		userID:   u.UserID,
	}
}

func (f *fixture) entryCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := f.ledger.ListByUser(context.Background(), f.tenantID, f.userID, 1000, 0)
	require.NoError(t, err)
	return total
}

func TestPlayInvalidBetAmount(t *testing.T) {
	f := newFixture(t, 1, "0.95", "0.01", "100",
		entry("0", 10), entry("1", 85), entry("2", 5))
	before := f.entryCount(t)

	_, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("0.33"), Audit{})
	require.ErrorIs(t, err, ErrInvalidBetAmount)

	require.Equal(t, before, f.entryCount(t), "invalid bet must write no ledger entries")
	require.Zero(t, f.games.GameCount())
}

func TestPlayInsufficientFunds(t *testing.T) {
	f := newFixture(t, 1, "0.95", "0.01", "0.50",
		entry("0", 10), entry("1", 85), entry("2", 5))
	before := f.entryCount(t)

	_, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.Equal(t, before, f.entryCount(t), "failed play must write no ledger entries")
	require.Zero(t, f.games.GameCount(), "failed play must create no play record")

	balance, err := f.ledger.GetBalance(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(d("0.50")))
}

func TestPlayUnknownTenantOrUser(t *testing.T) {
	f := newFixture(t, 1, "0.95", "0.01", "100",
		entry("0", 10), entry("1", 85), entry("2", 5))

	_, err := f.service.Play(context.Background(), uuid.NewString(), f.userID, d("1"), Audit{})
	require.ErrorIs(t, err, ErrTenantOrUserNotFound)

	_, err = f.service.Play(context.Background(), f.tenantID, uuid.NewString(), d("1"), Audit{})
	require.ErrorIs(t, err, ErrTenantOrUserNotFound)
}

func TestPlayInactiveTenant(t *testing.T) {
	f := newFixture(t, 1, "0.95", "0.01", "100",
		entry("0", 10), entry("1", 85), entry("2", 5))
	tn, err := f.tenants.FindByID(context.Background(), f.tenantID)
	require.NoError(t, err)
	tn.Active = false
	require.NoError(t, f.tenants.CreateTenant(context.Background(), tn))

	_, err = f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
	require.ErrorIs(t, err, ErrTenantOrUserNotFound)
}

func TestPlayFailsClosedWithoutPaytable(t *testing.T) {
	ctx := context.Background()
	tenants := tenant.NewMemoryRepository()
	tn := &tenant.Tenant{Subdomain: "acme", Name: "Acme", Active: true}
	require.NoError(t, tenants.CreateTenant(ctx, tn))
	u := &tenant.User{TenantID: tn.TenantID, Email: "p@acme.test", PasswordHash: "x", Active: true}
	require.NoError(t, tenants.CreateUser(ctx, u))

	tables := paytable.NewService(paytable.NewMemoryRepository(), paytable.NewMemoryCache(time.Minute), d("0.95"), d("0.01"))
	led := ledger.NewMemoryRepository()
	svc := NewService(tenants, tables, NewMemoryRepository(led), outcome.NewSeededSource(1))

	_, err := svc.Play(ctx, tn.TenantID, u.UserID, d("1"), Audit{})
	require.ErrorIs(t, err, paytable.ErrNoTable)
}

func TestPlayZeroMultiplierTable(t *testing.T) {
	// {0x, w=1}: every play loses and the balance drops by exactly the bet.
	f := newFixture(t, 5, "0", "0", "10", entry("0", 1))

	for i := 1; i <= 5; i++ {
		result, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
		require.NoError(t, err)
		require.True(t, result.Game.Multiplier.IsZero())
		require.True(t, result.Game.PrizeAmount.IsZero())
		expected := d("10").Sub(decimal.NewFromInt(int64(i)))
		require.True(t, result.NewBalance.Equal(expected),
			"play %d: balance %s != %s", i, result.NewBalance, expected)
	}
}

func TestPlaySingleOutcomeSet(t *testing.T) {
	// Table [{0.7, w250}, {1.4, w200}, {0, w400}], balance 10.00, bet 1.00:
	// the only reachable balances after one play are 9.00, 9.70 and 10.40.
	allowed := map[string]bool{"9": true, "9.7": true, "10.4": true}
	seen := map[string]bool{}
	for seed := int64(0); seed < 30; seed++ {
		f := newFixture(t, seed, "0.5353", "0.01", "10",
			entry("0.7", 250), entry("1.4", 200), entry("0", 400))
		result, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
		require.NoError(t, err)
		require.True(t, allowed[result.NewBalance.String()],
			"unexpected balance %s", result.NewBalance)
		seen[result.NewBalance.String()] = true

		replayed, err := f.ledger.BalanceAsOf(context.Background(), f.tenantID, f.userID)
		require.NoError(t, err)
		require.True(t, replayed.Equal(result.NewBalance))
	}
	require.GreaterOrEqual(t, len(seen), 2, "30 seeds should hit more than one outcome")
}

func TestPlayPrizeRounding(t *testing.T) {
	// 0.50 bet at 0.7x is 0.35 exactly; at 1.4x it is 0.70. Prize is always
	// rounded half-up to two decimals.
	f := newFixture(t, 3, "0.5353", "0.01", "10",
		entry("0.7", 250), entry("1.4", 200), entry("0", 400))
	for i := 0; i < 10; i++ {
		result, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("0.50"), Audit{})
		require.NoError(t, err)
		require.True(t, result.Game.PrizeAmount.Equal(result.Game.PrizeAmount.Round(2)))
		expected := result.Game.BetAmount.Mul(result.Game.Multiplier).Round(2)
		require.True(t, result.Game.PrizeAmount.Equal(expected))
	}
}

func TestPlayLedgerConservation(t *testing.T) {
	f := newFixture(t, 11, "0.95", "0.01", "100",
		entry("0", 10), entry("1", 85), entry("2", 5))
	ctx := context.Background()

	wins := 0
	for i := 0; i < 50; i++ {
		result, err := f.service.Play(ctx, f.tenantID, f.userID, d("1"), Audit{})
		require.NoError(t, err)
		if result.Game.PrizeAmount.IsPositive() {
			wins++
		}

		balance, err := f.ledger.GetBalance(ctx, f.tenantID, f.userID)
		require.NoError(t, err)
		replayed, err := f.ledger.BalanceAsOf(ctx, f.tenantID, f.userID)
		require.NoError(t, err)
		require.True(t, balance.Amount.Equal(replayed))
		require.False(t, balance.Amount.IsNegative())
	}

	// funding entry + one debit per play + one credit per win
	require.Equal(t, int64(1+50+wins), f.entryCount(t))
	require.Equal(t, 50, f.games.GameCount())
}

func TestConcurrentPlaysSingleBet(t *testing.T) {
	// Balance covers exactly one bet and every play loses: of two concurrent
	// plays exactly one succeeds and the loser must not double-spend.
	f := newFixture(t, 21, "0", "0", "1", entry("0", 1))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []*Result
	var failures []error

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.service.Play(ctx, f.tenantID, f.userID, d("1"), Audit{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
			} else {
				results = append(results, result)
			}
		}()
	}
	wg.Wait()

	require.Len(t, results, 1, "exactly one play must succeed")
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], ledger.ErrInsufficientFunds)
	require.Equal(t, 1, f.games.GameCount())

	balance, err := f.ledger.GetBalance(ctx, f.tenantID, f.userID)
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(results[0].NewBalance))
	require.False(t, balance.Amount.IsNegative())
}

func TestPlaySymbolsMatchOutcome(t *testing.T) {
	// Guaranteed win: the grid carries exactly three of the winning symbol.
	f := newFixture(t, 31, "2", "0", "100", entry("2", 1))
	result, err := f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
	require.NoError(t, err)
	require.Len(t, []string(result.Game.Symbols), GridSize)
	require.NotNil(t, result.Game.WinningSymbol)
	count := 0
	for _, s := range result.Game.Symbols {
		if s == *result.Game.WinningSymbol {
			count++
		}
	}
	require.Equal(t, 3, count)

	// Guaranteed loss: no symbol reaches three of a kind.
	f = newFixture(t, 32, "0", "0", "100", entry("0", 1))
	result, err = f.service.Play(context.Background(), f.tenantID, f.userID, d("1"), Audit{})
	require.NoError(t, err)
	require.Nil(t, result.Game.WinningSymbol)
	counts := map[string]int{}
	for _, s := range result.Game.Symbols {
		counts[s]++
	}
	for sym, n := range counts {
		require.Less(t, n, 3, "losing grid has three %s", sym)
	}
}

func TestHistoryAndStats(t *testing.T) {
	f := newFixture(t, 41, "0.95", "0.01", "100",
		entry("0", 10), entry("1", 85), entry("2", 5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.Play(ctx, f.tenantID, f.userID, d("2"), Audit{})
		require.NoError(t, err)
	}

	games, total, err := f.service.History(ctx, f.tenantID, f.userID, 3, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, games, 3)

	stats, err := f.service.Stats(ctx, f.tenantID, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.TotalGames)
	require.True(t, stats.TotalBet.Equal(d("10")))
	require.True(t, stats.ObservedRTP.Equal(stats.TotalPrize.Div(stats.TotalBet).Round(4)))

	var plays int64
	for _, n := range stats.MultiplierDistribution {
		plays += n
	}
	require.Equal(t, stats.TotalGames, plays)
}
