package middleware

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/sirupsen/logrus"
)

// HoneybadgerMiddleware reports panics, 5xx responses and unexpected 4xx
// responses to Honeybadger, tagged with the signed-in user when known.
// Panics are re-raised so gin.Recovery writes the response.
func HoneybadgerMiddleware(log *logrus.Entry) gin.HandlerFunc {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		log.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return func(c *gin.Context) { c.Next() }
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("PROENGLISH_ENV"),
	})
	log.Info("Honeybadger error reporting is enabled.")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				honeybadger.Notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.FullPath()),
					c.Request, requestContext(c, honeybadger.Context{"stack": string(debug.Stack())}), honeybadger.Tags{"panic", "http"})
				log.Errorf("recovered from panic, notified Honeybadger: %v", rec)
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if !reportable(status) {
			return
		}
		msg := fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.FullPath())
		if status >= http.StatusInternalServerError {
			honeybadger.Notify("Error: "+msg, c.Request, requestContext(c, honeybadger.Context{"errors": c.Errors.String()}), honeybadger.Tags{"5XX", "http"})
		} else {
			honeybadger.Notify("Warning: "+msg, requestContext(c, honeybadger.Context{}), honeybadger.Tags{"4XX", "http"})
		}
		log.Warnf("Honeybadger reported %s", msg)
	}
}

// reportable skips statuses that are part of normal client flows: missing
// resources, auth failures, validation errors, hearts exhaustion and
// checkout step conflicts.
func reportable(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusBadRequest, http.StatusConflict, http.StatusPaymentRequired:
		return false
	}
	return status >= http.StatusBadRequest
}

func requestContext(c *gin.Context, ctx honeybadger.Context) honeybadger.Context {
	if u, ok := auth.UserFrom(c.Request.Context()); ok {
		ctx["user_id"] = u.ID
		ctx["user_role"] = string(u.Role)
	}
	return ctx
}
