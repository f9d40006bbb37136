package paytable

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Service loads and mutates per-tenant paytables. Every table handed out has
// passed validation against the configured RTP band; there is no unvalidated
// fallback path.
type Service struct {
	repo      Repository
	cache     Cache
	target    decimal.Decimal
	tolerance decimal.Decimal
}

func NewService(repo Repository, cache Cache, target, tolerance decimal.Decimal) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		target:    target,
		tolerance: tolerance,
	}
}

// Load returns the tenant's validated table, falling back to the seeded default
// set when the tenant has no rows of its own.
func (s *Service) Load(ctx context.Context, tenantID string) (*Table, error) {
	if t, ok := s.cache.Get(ctx, tenantID); ok {
		return t, nil
	}
	entries, err := s.repo.ActiveEntries(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading paytable entries: %w", err)
	}
	t, err := NewTable(tenantID, entries, s.target, s.tolerance)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, tenantID, t)
	return t, nil
}

// Replace validates the proposed entries and swaps the tenant's table
// atomically, then drops any cached copy.
func (s *Service) Replace(ctx context.Context, tenantID string, entries []Entry) (*Table, error) {
	t, err := NewTable(tenantID, entries, s.target, s.tolerance)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceTable(ctx, tenantID, t.Entries); err != nil {
		return nil, fmt.Errorf("replacing paytable: %w", err)
	}
	s.cache.Invalidate(ctx, tenantID)
	return t, nil
}

// SeedDefault installs the default table when none exists. The default must
// itself satisfy the RTP band or startup fails.
func (s *Service) SeedDefault(ctx context.Context) error {
	entries := DefaultEntries()
	if _, err := NewTable("", entries, s.target, s.tolerance); err != nil {
		return fmt.Errorf("default paytable invalid: %w", err)
	}
	return s.repo.SeedDefault(ctx, entries)
}
