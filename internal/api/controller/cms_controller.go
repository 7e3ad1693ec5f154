package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// CMSController holds the content endpoints that are not plain CRUD.
type CMSController struct {
	api *apiclient.API
}

func NewCMSController(api *apiclient.API) *CMSController {
	return &CMSController{api: api}
}

type publishBody struct {
	Published *bool `json:"published"`
}

// Publish sets a course's visibility. An empty body publishes.
func (cc *CMSController) Publish(c *gin.Context) {
	var body publishBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid payload")
			return
		}
	}
	published := body.Published == nil || *body.Published
	course, err := qc.Mutate(c.Request.Context(), cc.api.Cache(), cc.api.Admin.PublishCourse,
		apiclient.PublishRequest{CourseID: c.Param("id"), Published: published})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}
