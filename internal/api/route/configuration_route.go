package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/config"
)

// NewConfigurationRouter sets up configuration-related routes.
func NewConfigurationRouter(timeout time.Duration, group *gin.RouterGroup, cfg *config.Config) {
	cc := controller.NewConfigurationController(cfg)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("configuration", timeoutMiddleware, cc.GetConfiguration)
}
