package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"raspadinha-backend/internal/auth"
	"raspadinha-backend/internal/tenant"
)

// Context keys set for downstream handlers.
const (
	KeyTenant  = "tenant"
	KeyUserID  = "user_id"
	KeyIsAdmin = "is_admin"
)

// TenantResolver resolves the request's tenant from the Host subdomain, with an
// X-Tenant-Subdomain header override for local development. Unknown or inactive
// tenants are rejected before any handler runs.
func TenantResolver(tenants tenant.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		subdomain := c.GetHeader("X-Tenant-Subdomain")
		if subdomain == "" {
			host := c.Request.Host
			if i := strings.IndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
			parts := strings.Split(host, ".")
			if len(parts) >= 3 && parts[0] != "www" {
				subdomain = parts[0]
			}
		}
		if subdomain == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not resolved"})
			c.Abort()
			return
		}

		t, err := tenants.FindBySubdomain(c.Request.Context(), subdomain)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found", "subdomain": subdomain})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant lookup failed"})
			}
			c.Abort()
			return
		}
		if !t.Active {
			c.JSON(http.StatusForbidden, gin.H{"error": "tenant inactive", "subdomain": subdomain})
			c.Abort()
			return
		}

		c.Header("X-Tenant-ID", t.TenantID)
		c.Set(KeyTenant, t)
		c.Next()
	}
}

// Auth validates the bearer token and binds (tenant, user) for the request.
// Tokens issued for another tenant are rejected even when otherwise valid.
func Auth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		t := CurrentTenant(c)
		if t == nil || claims.TenantID != t.TenantID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token not valid for this tenant"})
			c.Abort()
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin gates administrative routes.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, _ := c.Get(KeyIsAdmin)
		if admin, ok := isAdmin.(bool); !ok || !admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentTenant returns the tenant resolved for the request, or nil.
func CurrentTenant(c *gin.Context) *tenant.Tenant {
	v, ok := c.Get(KeyTenant)
	if !ok {
		return nil
	}
	t, _ := v.(*tenant.Tenant)
	return t
}

// CurrentUserID returns the authenticated user id, or "".
func CurrentUserID(c *gin.Context) string {
	v, ok := c.Get(KeyUserID)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
