package game

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"raspadinha-backend/internal/outcome"
)

// Scratch card symbols shown on the 3x3 grid.
const (
	SymbolCherry  = "cherry"
	SymbolLemon   = "lemon"
	SymbolStar    = "star"
	SymbolSeven   = "seven"
	SymbolBell    = "bell"
	SymbolDiamond = "diamond"
)

var symbolSet = []string{SymbolCherry, SymbolLemon, SymbolStar, SymbolSeven, SymbolBell, SymbolDiamond}

// GridSize is the number of cells on a card.
const GridSize = 9

// Game is one settled play. Immutable after creation.
type Game struct {
	GameID        string          `gorm:"column:game_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	TenantID      string          `gorm:"column:tenant_id;type:uuid;not null;index:idx_games_tenant_played"`
	UserID        string          `gorm:"column:user_id;type:uuid;not null;index:idx_games_user_played"`
	BetAmount     decimal.Decimal `gorm:"column:bet_amount;type:numeric(10,2);not null"`
	Multiplier    decimal.Decimal `gorm:"column:multiplier;type:numeric(8,2);not null"`
	PrizeAmount   decimal.Decimal `gorm:"column:prize_amount;type:numeric(10,2);not null"`
	Symbols       Symbols         `gorm:"column:symbols;type:jsonb;not null"`
	WinningSymbol *string         `gorm:"column:winning_symbol;type:varchar(10)"`
	IPAddress     string          `gorm:"column:ip_address;type:varchar(45)"`
	UserAgent     string          `gorm:"column:user_agent;type:text"`
	PlayedAt      time.Time       `gorm:"column:played_at;not null;default:now();index:idx_games_tenant_played;index:idx_games_user_played"`
}

func (Game) TableName() string { return "games" }

// Symbols is the card's cell contents stored as a JSON array.
type Symbols []string

func (s Symbols) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Symbols) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported symbols column type %T", value)
	}
	return json.Unmarshal(data, s)
}

// Result is what the orchestrator returns upward.
type Result struct {
	Game       *Game
	NewBalance decimal.Decimal
}

// Audit carries request metadata owned by the HTTP layer.
type Audit struct {
	IPAddress string
	UserAgent string
}

// TenantStats aggregates settled plays for the admin surface.
type TenantStats struct {
	TotalGames             int64            `json:"total_games"`
	TotalBet               decimal.Decimal  `json:"total_bet"`
	TotalPrize             decimal.Decimal  `json:"total_prize"`
	ObservedRTP            decimal.Decimal  `json:"observed_rtp"`
	MultiplierDistribution map[string]int64 `json:"multiplier_distribution"`
}

// generateSymbols builds the card grid for a drawn outcome. A winning card
// contains exactly three cells of the winning symbol; a losing card never
// contains three of a kind. Purely cosmetic: the multiplier is already decided.
func generateSymbols(src outcome.Source, won bool) (Symbols, *string) {
	if !won {
		// Two copies of each symbol, shuffled, take nine: no symbol can reach three.
		pool := make([]string, 0, 2*len(symbolSet))
		for _, sym := range symbolSet {
			pool = append(pool, sym, sym)
		}
		shuffle(src, pool)
		return Symbols(pool[:GridSize]), nil
	}

	winSym := symbolSet[src.Int64n(int64(len(symbolSet)))]
	pool := make([]string, 0, 2*(len(symbolSet)-1))
	for _, sym := range symbolSet {
		if sym != winSym {
			pool = append(pool, sym, sym)
		}
	}
	shuffle(src, pool)

	grid := make([]string, 0, GridSize)
	grid = append(grid, winSym, winSym, winSym)
	grid = append(grid, pool[:GridSize-3]...)
	shuffle(src, grid)
	return Symbols(grid), &winSym
}

func shuffle(src outcome.Source, s []string) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.Int64n(int64(i + 1))
		s[i], s[j] = s[j], s[i]
	}
}
