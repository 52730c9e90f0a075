package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/config"
	"github.com/limitwarden/limitwarden/internal/gate"
	"github.com/limitwarden/limitwarden/internal/governance"
	handlers "github.com/limitwarden/limitwarden/internal/http/api/admin/handlers"
	"github.com/limitwarden/limitwarden/internal/models"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/revenue"
	"github.com/limitwarden/limitwarden/internal/security"
	"github.com/limitwarden/limitwarden/internal/surge"
	"github.com/limitwarden/limitwarden/internal/window"
)

// Deps bundles the engine components the admin surface reads and drives.
type Deps struct {
	Store     *policy.Store
	Gate      *gate.Gate
	Windows   *window.Collector
	Predictor *surge.Predictor
	Ledger    *revenue.Ledger
	Queue     *governance.Queue
	NowFn     func() time.Time
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, deps Deps) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	governanceHandler := handlers.NewGovernanceHandler(db, deps.Queue)
	authed.GET("/governance", governanceHandler.List)
	authed.GET("/governance/:id", governanceHandler.Get)
	authed.POST("/governance/:id/approve", governanceHandler.Approve)
	authed.POST("/governance/:id/reject", governanceHandler.Reject)
	authed.POST("/governance/approve-all", governanceHandler.ApproveAll)

	policyHandler := handlers.NewPolicyHandler(deps.Store, deps.Gate)
	authed.GET("/policies", policyHandler.List)
	authed.POST("/policies/reset", policyHandler.Reset)
	authed.POST("/policies/reset-all", policyHandler.ResetAll)

	auditHandler := handlers.NewAuditHandler(db)
	authed.GET("/audit", auditHandler.List)

	revenueHandler := handlers.NewRevenueHandler(deps.Ledger)
	authed.GET("/revenue/summary", revenueHandler.Summary)

	insightsHandler := handlers.NewInsightsHandler(deps.Windows, deps.Predictor, deps.Store, deps.NowFn)
	authed.GET("/insights", insightsHandler.List)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
