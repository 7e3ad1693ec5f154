package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/dashboard"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// DashboardResponse tags the view with the role it was built for.
type DashboardResponse struct {
	Role string         `json:"role"`
	View dashboard.View `json:"view"`
}

type DashboardController struct {
	builder *dashboard.Builder
	api     *apiclient.API
}

func NewDashboardController(b *dashboard.Builder, api *apiclient.API) *DashboardController {
	return &DashboardController{builder: b, api: api}
}

// Get returns the dashboard of the signed-in user's role.
func (dc *DashboardController) Get(c *gin.Context) {
	v, err := dc.builder.Build(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{Role: v.Role().String(), View: v})
}

// Me returns the backend profile of the signed-in user. Accounts the backend
// does not know yet are described from the token.
func (dc *DashboardController) Me(c *gin.Context) {
	u := currentUser(c)
	profile, err := qc.Query(c.Request.Context(), dc.api.Cache(), dc.api.Shared.Me, u.ID)
	if errors.Is(err, backend.ErrNotFound) {
		profile, err = model.UserProfile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role.String()}, nil
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
