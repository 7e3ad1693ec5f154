package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/app"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// NewPracticeRouter sets up the student practice lab routes.
func NewPracticeRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	group.Use(middleware.RequireRole(auth.RoleStudent))
	group.Use(middleware.RequestTimeout(timeout))

	pc := controller.NewPracticeController(appCtx.API, validation.New(), appCtx.Config.Practice.LeaderboardSize)

	group.GET("/progress", pc.Progress)
	group.GET("/progress/watch", pc.WatchProgress)
	group.POST("/hearts/consume", pc.ConsumeHeart)
	group.POST("/hearts/refill", pc.RefillHearts)
	group.POST("/answers", pc.SubmitAnswer)
	group.POST("/course", pc.SelectCourse)
	group.GET("/leaderboard", pc.Leaderboard)
	group.GET("/achievements", pc.Achievements)
}
