package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/apiclient"
)

// NewAdminRouter sets up admin listings and the cache diagnostics endpoint.
func NewAdminRouter(timeout time.Duration, group, debug *gin.RouterGroup, api *apiclient.API) {
	ac := controller.NewAdminController(api)

	group.Use(requireAdmin(), middleware.RequestTimeout(timeout))
	group.GET("/transactions", ac.Transactions)
	group.GET("/users", ac.Users)

	debug.GET("/cache", requireAdmin(), ac.CacheStats)
}
