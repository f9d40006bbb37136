package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"raspadinha-backend/internal/tenant"
)

const bcryptCost = 12

// Service handles registration and login for users scoped to a tenant.
type Service struct {
	tenants tenant.Repository
	jwt     *JWTService
}

func NewService(tenants tenant.Repository, jwt *JWTService) *Service {
	return &Service{tenants: tenants, jwt: jwt}
}

// Register creates a user under the tenant and returns it with a session token.
func (s *Service) Register(ctx context.Context, tenantID, email, password, name string) (*tenant.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	u := &tenant.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Active:       true,
	}
	if err := s.tenants.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}
	token, err := s.jwt.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login checks the credentials against the tenant-scoped user and issues a token.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (*tenant.User, string, error) {
	u, err := s.tenants.FindUserByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, tenant.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !u.Active {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.jwt.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	_ = s.tenants.TouchLastLogin(ctx, u.TenantID, u.UserID)
	return u, token, nil
}
