package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// CrudService defines the operations a CMS resource supports. filter is the
// value of the controller's FilterParam query parameter.
type CrudService[T any] interface {
	All(ctx context.Context, filter string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, item T) (T, error)
	Remove(ctx context.Context, id string) error
}

// Identifiable lets the controller place the path id on a decoded payload.
type Identifiable interface {
	SetID(id string)
}

// CrudController provides generic CRUD handlers for CMS resources. Payloads
// are validated before they reach the service.
type CrudController[T any] struct {
	Service     CrudService[T]
	Validator   *validation.Validator
	FilterParam string
}

// RegisterCrudRoutes registers reads on read and writes on write, so each can
// carry its own role gate.
func (cc *CrudController[T]) RegisterCrudRoutes(read, write *gin.RouterGroup, resource string) {
	read.GET("/"+resource, cc.GetAll)
	read.GET("/"+resource+"/:id", cc.GetOne)
	write.POST("/"+resource, cc.CreateOrUpdate)
	write.PUT("/"+resource+"/:id", cc.CreateOrUpdate)
	write.DELETE("/"+resource+"/:id", cc.Delete)
}

// GetAll handles GET requests to list resources.
func (cc *CrudController[T]) GetAll(c *gin.Context) {
	var filter string
	if cc.FilterParam != "" {
		filter = c.Query(cc.FilterParam)
	}
	items, err := cc.Service.All(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetOne handles GET requests for a single resource.
func (cc *CrudController[T]) GetOne(c *gin.Context) {
	item, err := cc.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateOrUpdate handles POST (create, or update when the body has an id)
// and PUT /:id requests.
func (cc *CrudController[T]) CreateOrUpdate(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if id := c.Param("id"); id != "" {
		if withID, ok := any(&item).(Identifiable); ok {
			withID.SetID(id)
		}
	}
	if cc.Validator != nil {
		if err := cc.Validator.Struct(item); err != nil {
			respondError(c, err)
			return
		}
	}
	saved, err := cc.Service.Save(c.Request.Context(), item)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	c.JSON(status, saved)
}

// Delete handles DELETE requests to remove a resource by id.
func (cc *CrudController[T]) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		badRequest(c, "missing resource id")
		return
	}
	if err := cc.Service.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
