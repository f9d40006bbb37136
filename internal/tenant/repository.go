package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant inactive")
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered for tenant")
)

type Repository interface {
	FindByID(ctx context.Context, tenantID string) (*Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	CreateTenant(ctx context.Context, t *Tenant) error
	FindUser(ctx context.Context, tenantID, userID string) (*User, error)
	FindUserByEmail(ctx context.Context, tenantID, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	TouchLastLogin(ctx context.Context, tenantID, userID string) error
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByID(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *RepositoryImpl) FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	var t Tenant
	err := r.db.WithContext(ctx).Where("subdomain = ?", strings.ToLower(subdomain)).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *RepositoryImpl) CreateTenant(ctx context.Context, t *Tenant) error {
	if t.TenantID == "" {
		t.TenantID = uuid.NewString()
	}
	t.Subdomain = strings.ToLower(t.Subdomain)
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RepositoryImpl) FindUser(ctx context.Context, tenantID, userID string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *RepositoryImpl) FindUserByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *RepositoryImpl) CreateUser(ctx context.Context, u *User) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := r.FindUserByEmail(ctx, u.TenantID, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *RepositoryImpl) TouchLastLogin(ctx context.Context, tenantID, userID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&User{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Updates(map[string]interface{}{"last_login": now, "updated_at": now}).Error
}
