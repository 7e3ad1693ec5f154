package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/backend"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// AdminController serves administration listings and cache diagnostics.
type AdminController struct {
	api *apiclient.API
}

func NewAdminController(api *apiclient.API) *AdminController {
	return &AdminController{api: api}
}

// Transactions lists purchases, optionally filtered by ?user= and ?course=.
func (ac *AdminController) Transactions(c *gin.Context) {
	q := backend.TransactionQuery{UserID: c.Query("user"), CourseID: c.Query("course")}
	txs, err := qc.Query(c.Request.Context(), ac.api.Cache(), ac.api.Admin.Transactions, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// Users lists accounts, optionally filtered by ?role=.
func (ac *AdminController) Users(c *gin.Context) {
	role := c.Query("role")
	if role != "" {
		r, err := auth.ParseRole(role)
		if err != nil {
			respondError(c, validation.NewError(map[string]string{"role": "unknown role"}))
			return
		}
		role = r.String()
	}
	users, err := qc.Query(c.Request.Context(), ac.api.Cache(), ac.api.Admin.Users, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// CacheStats reports the query cache's entries, subscribers and requests.
func (ac *AdminController) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, ac.api.Cache().Stats())
}
