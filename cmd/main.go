package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"raspadinha-backend/internal/auth"
	"raspadinha-backend/internal/config"
	"raspadinha-backend/internal/game"
	"raspadinha-backend/internal/ledger"
	"raspadinha-backend/internal/middleware"
	"raspadinha-backend/internal/paytable"
	"raspadinha-backend/internal/tenant"
)

func main() {

	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file", err)
	}

	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalln(err)
	}

	err = db.AutoMigrate(
		&tenant.Tenant{},
		&tenant.User{},
		&paytable.Entry{},
		&ledger.Balance{},
		&ledger.Entry{},
		&game.Game{},
	)
	if err != nil {
		log.Fatalln(err)
	}

	var tableCache paytable.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		tableCache = paytable.NewRedisCache(client, cfg.CacheTTL)
	} else {
		tableCache = paytable.NewMemoryCache(cfg.CacheTTL)
	}

	tenantRepo := tenant.NewRepositoryImpl(db)
	paytableRepo := paytable.NewRepositoryImpl(db)
	ledgerRepo := ledger.NewRepositoryImpl(db)
	gameRepo := game.NewRepositoryImpl(db)

	paytableService := paytable.NewService(paytableRepo, tableCache, cfg.RTPTarget, cfg.RTPTolerance)
	ledgerService := ledger.NewService(ledgerRepo)
	gameService := game.NewService(tenantRepo, paytableService, gameRepo, nil)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(tenantRepo, jwtService)

	if err := paytableService.SeedDefault(context.Background()); err != nil {
		log.Fatalln("seeding default paytable:", err)
	}

	r := gin.Default()

	api := r.Group("/api", middleware.TenantResolver(tenantRepo))

	api.POST("/auth/register", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required,min=6"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t := middleware.CurrentTenant(c)
		u, token, err := authService.Register(c.Request.Context(), t.TenantID, req.Email, req.Password, req.Name)
		if err != nil {
			if errors.Is(err, tenant.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if _, err := ledgerRepo.CreateBalance(c.Request.Context(), u.TenantID, u.UserID); err != nil {
			log.Println("creating balance row:", err)
		}
		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  userJSON(u),
		})
	})

	api.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t := middleware.CurrentTenant(c)
		u, token, err := authService.Login(c.Request.Context(), t.TenantID, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  userJSON(u),
		})
	})

	api.GET("/game/config", func(c *gin.Context) {
		t := middleware.CurrentTenant(c)
		table, err := paytableService.Load(c.Request.Context(), t.TenantID)
		if err != nil {
			writeGameError(c, err)
			return
		}
		entries := make([]gin.H, 0, len(table.Entries))
		for _, e := range table.Entries {
			entries = append(entries, gin.H{
				"multiplier": e.Multiplier,
				"weight":     e.Weight,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"bet_amounts": t.AllowedBets(),
			"multipliers": entries,
			"rtp":         table.RTP,
		})
	})

	authed := api.Group("", middleware.Auth(jwtService))

	authed.POST("/game/play", func(c *gin.Context) {
		var req struct {
			BetAmount decimal.Decimal `json:"bet_amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t := middleware.CurrentTenant(c)
		userID := middleware.CurrentUserID(c)
		result, err := gameService.Play(c.Request.Context(), t.TenantID, userID, req.BetAmount, game.Audit{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			writeGameError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"game":        gameJSON(result.Game),
			"new_balance": result.NewBalance,
		})
	})

	authed.GET("/game/history", func(c *gin.Context) {
		t := middleware.CurrentTenant(c)
		userID := middleware.CurrentUserID(c)
		limit, offset, page := pagination(c)
		games, total, err := gameService.History(c.Request.Context(), t.TenantID, userID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(games))
		for i := range games {
			out = append(out, gameJSON(&games[i]))
		}
		c.JSON(http.StatusOK, gin.H{
			"games":      out,
			"pagination": gin.H{"page": page, "limit": limit, "total": total},
		})
	})

	authed.GET("/balance", func(c *gin.Context) {
		t := middleware.CurrentTenant(c)
		userID := middleware.CurrentUserID(c)
		balance, err := ledgerService.CurrentBalance(c.Request.Context(), t.TenantID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	})

	authed.GET("/transactions", func(c *gin.Context) {
		t := middleware.CurrentTenant(c)
		userID := middleware.CurrentUserID(c)
		limit, offset, page := pagination(c)
		entries, total, err := ledgerService.History(c.Request.Context(), t.TenantID, userID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": entries,
			"pagination":   gin.H{"page": page, "limit": limit, "total": total},
		})
	})

	admin := authed.Group("/admin", middleware.RequireAdmin())

	admin.POST("/users/:user_id/credit", adminAdjustHandler(ledgerService.ManualCredit))
	admin.POST("/users/:user_id/debit", adminAdjustHandler(ledgerService.ManualDebit))

	admin.PUT("/paytable", func(c *gin.Context) {
		var req struct {
			Entries []struct {
				Multiplier decimal.Decimal `json:"multiplier"`
				Weight     int64           `json:"weight"`
			} `json:"entries" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entries := make([]paytable.Entry, 0, len(req.Entries))
		for _, e := range req.Entries {
			entries = append(entries, paytable.Entry{Multiplier: e.Multiplier, Weight: e.Weight, Active: true})
		}
		t := middleware.CurrentTenant(c)
		table, err := paytableService.Replace(c.Request.Context(), t.TenantID, entries)
		if err != nil {
			writeGameError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rtp": table.RTP, "total_weight": table.TotalWeight})
	})

	admin.GET("/stats", func(c *gin.Context) {
		t := middleware.CurrentTenant(c)
		stats, err := gameService.Stats(c.Request.Context(), t.TenantID, nil, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	fmt.Println("Server started on :" + strconv.Itoa(cfg.Port))
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal(err)
	}
}

func adminAdjustHandler(apply func(ctx context.Context, tenantID, userID string, amount decimal.Decimal, description, adminID string) (*ledger.Entry, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount      decimal.Decimal `json:"amount" binding:"required"`
			Description string          `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t := middleware.CurrentTenant(c)
		entry, err := apply(c.Request.Context(), t.TenantID, c.Param("user_id"), req.Amount, req.Description, middleware.CurrentUserID(c))
		if err != nil {
			writeGameError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"entry_id":      entry.EntryID,
			"kind":          entry.Kind,
			"amount":        entry.Amount,
			"balance_after": entry.BalanceAfter,
		})
	}
}

func pagination(c *gin.Context) (limit, offset, page int) {
	page = 1
	limit = 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	offset = (page - 1) * limit
	return limit, offset, page
}

func userJSON(u *tenant.User) gin.H {
	return gin.H{
		"id":       u.UserID,
		"email":    u.Email,
		"name":     u.Name,
		"is_admin": u.IsAdmin,
	}
}

func gameJSON(g *game.Game) gin.H {
	return gin.H{
		"id":             g.GameID,
		"bet_amount":     g.BetAmount,
		"multiplier":     g.Multiplier,
		"prize_amount":   g.PrizeAmount,
		"symbols":        g.Symbols,
		"winning_symbol": g.WinningSymbol,
		"played_at":      g.PlayedAt,
		"is_winner":      g.PrizeAmount.IsPositive(),
	}
}

func writeGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidBetAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrTenantOrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, paytable.ErrNoTable),
		errors.Is(err, paytable.ErrRTPOutOfRange),
		errors.Is(err, paytable.ErrInvalidWeight),
		errors.Is(err, paytable.ErrInvalidMultiplier),
		errors.Is(err, paytable.ErrZeroTotalWeight):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
