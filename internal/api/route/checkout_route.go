package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/checkout"
)

// NewCheckoutRouter sets up the purchase wizard. Guests may check out; only
// signing in to a session needs a token.
func NewCheckoutRouter(timeout time.Duration, group *gin.RouterGroup, w *checkout.Wizard) {
	group.Use(middleware.RequestTimeout(timeout))
	cc := controller.NewCheckoutController(w, group.BasePath())

	group.POST("", cc.Start)
	group.GET("/:id", cc.Get)
	group.POST("/:id/details", cc.Details)
	group.POST("/:id/signin", middleware.RequireRole(), cc.SignIn)
	group.POST("/:id/confirm", cc.Confirm)
}
