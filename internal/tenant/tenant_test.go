package tenant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBetAllowedDefaults(t *testing.T) {
	tn := &Tenant{}
	require.True(t, tn.BetAllowed(d("0.5")))
	require.True(t, tn.BetAllowed(d("1")))
	require.True(t, tn.BetAllowed(d("1000")))
	require.False(t, tn.BetAllowed(d("0.33")))
	require.False(t, tn.BetAllowed(d("3")))
	require.False(t, tn.BetAllowed(d("-1")))
}

func TestBetAllowedCustomSettings(t *testing.T) {
	tn := &Tenant{Settings: Settings{AllowedBets: []decimal.Decimal{d("0.25"), d("3")}}}
	require.True(t, tn.BetAllowed(d("0.25")))
	require.True(t, tn.BetAllowed(d("3")))
	// A custom list fully replaces the default one.
	require.False(t, tn.BetAllowed(d("1")))
}

func TestSettingsJSONRoundTrip(t *testing.T) {
	in := Settings{AllowedBets: []decimal.Decimal{d("0.5"), d("2"), d("10")}}
	raw, err := in.Value()
	require.NoError(t, err)

	var out Settings
	require.NoError(t, out.Scan(raw))
	require.Len(t, out.AllowedBets, 3)
	for i := range in.AllowedBets {
		require.True(t, out.AllowedBets[i].Equal(in.AllowedBets[i]))
	}

	// Postgres drivers hand jsonb back as either []byte or string.
	b, err := json.Marshal(in)
	require.NoError(t, err)
	var fromString Settings
	require.NoError(t, fromString.Scan(string(b)))
	require.Len(t, fromString.AllowedBets, 3)

	var empty Settings
	require.NoError(t, empty.Scan(nil))
	require.Empty(t, empty.AllowedBets)
}

func TestMemoryRepositoryUserScoping(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := &Tenant{Subdomain: "Alpha", Name: "Alpha", Active: true}
	b := &Tenant{Subdomain: "beta", Name: "Beta", Active: true}
	require.NoError(t, repo.CreateTenant(ctx, a))
	require.NoError(t, repo.CreateTenant(ctx, b))

	// Subdomain lookup is case-insensitive.
	found, err := repo.FindBySubdomain(ctx, "ALPHA")
	require.NoError(t, err)
	require.Equal(t, a.TenantID, found.TenantID)

	u := &User{TenantID: a.TenantID, Email: "Player@Alpha.Test", PasswordHash: "x", Active: true}
	require.NoError(t, repo.CreateUser(ctx, u))

	// Same email is taken within the tenant but free in another one.
	dup := &User{TenantID: a.TenantID, Email: "player@alpha.test", PasswordHash: "x"}
	require.ErrorIs(t, repo.CreateUser(ctx, dup), ErrEmailTaken)
	other := &User{TenantID: b.TenantID, Email: "player@alpha.test", PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(ctx, other))

	// Users are invisible outside their tenant.
	_, err = repo.FindUser(ctx, b.TenantID, u.UserID)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.FindUserByEmail(ctx, b.TenantID, "player@beta.test")
	require.ErrorIs(t, err, ErrUserNotFound)

	got, err := repo.FindUserByEmail(ctx, a.TenantID, "  player@alpha.test ")
	require.NoError(t, err)
	require.Equal(t, u.UserID, got.UserID)
}

func TestTouchLastLogin(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tn := &Tenant{Subdomain: "acme", Name: "Acme", Active: true}
	require.NoError(t, repo.CreateTenant(ctx, tn))
	u := &User{TenantID: tn.TenantID, Email: "p@acme.test", PasswordHash: "x", Active: true}
	require.NoError(t, repo.CreateUser(ctx, u))

	require.NoError(t, repo.TouchLastLogin(ctx, tn.TenantID, u.UserID))
	got, err := repo.FindUser(ctx, tn.TenantID, u.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)

	require.ErrorIs(t, repo.TouchLastLogin(ctx, tn.TenantID, "missing"), ErrUserNotFound)
}
