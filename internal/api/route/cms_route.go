package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/api/controller"
	"github.com/proenglish/go_proenglish/internal/api/middleware"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// NewCMSRouter sets up course, lesson and challenge routes. Reads are public
// (drafts and answers are hidden from students); writes need a teacher or
// an admin, publishing needs an admin.
func NewCMSRouter(timeout time.Duration, group *gin.RouterGroup, api *apiclient.API) {
	group.Use(middleware.RequestTimeout(timeout))
	write := group.Group("", middleware.RequireRole(auth.RoleTeacher, auth.RoleAdmin))
	v := validation.New()

	courses := &controller.CrudController[model.Course]{
		Service: &controller.CourseCrudService{API: api}, Validator: v, FilterParam: "teacher",
	}
	lessons := &controller.CrudController[model.Lesson]{
		Service: &controller.LessonCrudService{API: api}, Validator: v, FilterParam: "course",
	}
	challenges := &controller.CrudController[model.Challenge]{
		Service: &controller.ChallengeCrudService{API: api}, Validator: v, FilterParam: "lesson",
	}
	courses.RegisterCrudRoutes(group, write, "courses")
	lessons.RegisterCrudRoutes(group, write, "lessons")
	challenges.RegisterCrudRoutes(group, write, "challenges")

	cms := controller.NewCMSController(api)
	group.POST("/courses/:id/publish", requireAdmin(), cms.Publish)
}
