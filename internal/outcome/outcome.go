// Package outcome draws a prize multiplier from a validated paytable. The draw
// is stateless: given the same table and the same random values it always picks
// the same entry, which keeps RTP simulations reproducible.
package outcome

import (
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"raspadinha-backend/internal/paytable"
)

var ErrEmptyTable = errors.New("cannot draw from empty paytable")

// Source yields uniform random integers in [0, n). Implementations do not need
// to be cryptographically secure, only statistically sound.
type Source interface {
	Int64n(n int64) int64
}

type cryptoSource struct{}

func (cryptoSource) Int64n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// CryptoSource returns the production source backed by crypto/rand.
func CryptoSource() Source {
	return cryptoSource{}
}

type seededSource struct {
	mu sync.Mutex
	r  *mrand.Rand
}

func (s *seededSource) Int64n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int63n(n)
}

// NewSeededSource returns a deterministic source for simulations and tests.
func NewSeededSource(seed int64) Source {
	return &seededSource{r: mrand.New(mrand.NewSource(seed))}
}

// Draw picks one multiplier from the table: a uniform value r in [0, W) is
// reduced by each entry's weight in the table's fixed order until it goes
// negative. The table is never mutated.
func Draw(t *paytable.Table, src Source) (decimal.Decimal, error) {
	if t == nil || len(t.Entries) == 0 || t.TotalWeight <= 0 {
		return decimal.Zero, ErrEmptyTable
	}
	r := src.Int64n(t.TotalWeight)
	for i := range t.Entries {
		r -= t.Entries[i].Weight
		if r < 0 {
			return t.Entries[i].Multiplier, nil
		}
	}
	// Unreachable when TotalWeight equals the sum of weights; guard anyway.
	return t.Entries[len(t.Entries)-1].Multiplier, nil
}
