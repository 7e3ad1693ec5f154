package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/dashboard"
)

func NewDashboardRouter(timeout time.Duration, group *gin.RouterGroup, b *dashboard.Builder, api *apiclient.API) {
	dc := controller.NewDashboardController(b, api)
	signedIn := group.Group("", middleware.RequireRole(), middleware.RequestTimeout(timeout))
	signedIn.GET("/dashboard", dc.Get)
	signedIn.GET("/me", dc.Me)
}
