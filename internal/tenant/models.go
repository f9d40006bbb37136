package tenant

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Tenant struct {
	TenantID       string    `gorm:"column:tenant_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	Subdomain      string    `gorm:"column:subdomain;type:varchar(50);not null;uniqueIndex"`
	Name           string    `gorm:"column:name;type:varchar(100);not null"`
	PrimaryColor   string    `gorm:"column:primary_color;type:varchar(7);not null;default:'#007bff'"`
	SecondaryColor string    `gorm:"column:secondary_color;type:varchar(7);not null;default:'#6c757d'"`
	LogoURL        string    `gorm:"column:logo_url;type:varchar(255)"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	Settings       Settings  `gorm:"column:settings;type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;default:now()"`
}

type User struct {
	UserID       string     `gorm:"column:user_id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	TenantID     string     `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_users_tenant_email"`
	Email        string     `gorm:"column:email;type:varchar(100);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(255);not null"`
	Name         string     `gorm:"column:name;type:varchar(100)"`
	IsAdmin      bool       `gorm:"column:is_admin;not null;default:false"`
	Active       bool       `gorm:"column:active;not null;default:true"`
	LastLogin    *time.Time `gorm:"column:last_login"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;default:now()"`
}

// Settings holds per-tenant configuration stored as JSON. Theming values are
// carried for the UI layer and have no effect on gameplay.
type Settings struct {
	AllowedBets []decimal.Decimal `json:"allowed_bets,omitempty"`
}

// DefaultAllowedBets is used when a tenant has no explicit bet list configured.
var DefaultAllowedBets = []decimal.Decimal{
	decimal.NewFromFloat(0.50),
	decimal.NewFromInt(1),
	decimal.NewFromInt(2),
	decimal.NewFromInt(5),
	decimal.NewFromInt(10),
	decimal.NewFromInt(20),
	decimal.NewFromInt(50),
	decimal.NewFromInt(100),
	decimal.NewFromInt(200),
	decimal.NewFromInt(500),
	decimal.NewFromInt(1000),
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(value interface{}) error {
	if value == nil {
		*s = Settings{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported settings column type %T", value)
	}
	return json.Unmarshal(data, s)
}

// AllowedBets returns the tenant's enumerated bet values.
func (t *Tenant) AllowedBets() []decimal.Decimal {
	if len(t.Settings.AllowedBets) > 0 {
		return t.Settings.AllowedBets
	}
	return DefaultAllowedBets
}

// BetAllowed reports whether amount is a member of the tenant's allowed set.
func (t *Tenant) BetAllowed(amount decimal.Decimal) bool {
	for _, b := range t.AllowedBets() {
		if b.Equal(amount) {
			return true
		}
	}
	return false
}
