package tenant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps tenants and users in process memory. Used by tests and
// local runs without a database.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	users   map[string]*User // key tenantID+"/"+userID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants: make(map[string]*Tenant),
		users:   make(map[string]*User),
	}
}

func userKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (r *MemoryRepository) FindByID(_ context.Context, tenantID string) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) FindBySubdomain(_ context.Context, subdomain string) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := strings.ToLower(subdomain)
	for _, t := range r.tenants {
		if t.Subdomain == sub {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (r *MemoryRepository) CreateTenant(_ context.Context, t *Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.TenantID == "" {
		t.TenantID = uuid.NewString()
	}
	t.Subdomain = strings.ToLower(t.Subdomain)
	cp := *t
	r.tenants[t.TenantID] = &cp
	return nil
}

func (r *MemoryRepository) FindUser(_ context.Context, tenantID, userID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userKey(tenantID, userID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) FindUserByEmail(_ context.Context, tenantID, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	em := strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Email == em {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.users {
		if existing.TenantID == u.TenantID && existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	r.users[userKey(u.TenantID, u.UserID)] = &cp
	return nil
}

func (r *MemoryRepository) TouchLastLogin(_ context.Context, tenantID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userKey(tenantID, userID)]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}
