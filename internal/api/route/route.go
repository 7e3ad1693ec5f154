package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/app"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/sirupsen/logrus"
)

const apiPrefix = "/api/v1"

// SetupRoutes builds the engine with every route of the service.
func SetupRoutes(appCtx *app.App, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(log))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))
	r.Use(middleware.Authenticate(appCtx.Tokens))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
			"backend": appCtx.Config.Backend.Type,
		})
	})

	timeout := appCtx.Config.Server.RequestTimeout
	v1 := r.Group(apiPrefix)

	NewConfigurationRouter(timeout, v1, appCtx.Config)
	NewCMSRouter(timeout, v1.Group("/cms"), appCtx.API)
	NewPracticeRouter(timeout, v1.Group("/practice"), appCtx)
	NewDashboardRouter(timeout, v1, appCtx.Dashboards, appCtx.API)
	NewCheckoutRouter(timeout, v1.Group("/checkout"), appCtx.Wizard)
	NewAdminRouter(timeout, v1.Group("/admin"), r.Group("/debug"), appCtx.API)

	return r
}

func requireAdmin() gin.HandlerFunc { return middleware.RequireRole(auth.RoleAdmin) }
