package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveWithTimeout(d time.Duration, handler gin.HandlerFunc, accept string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(RequestTimeout(d))
	r.GET("/api/v1/practice/progress", handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/practice/progress", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRequestTimeout_NonPositiveDurationDisables(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		var hasDeadline bool
		w := serveWithTimeout(d, func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
			okHandler(c)
		}, "")
		if w.Code != http.StatusOK {
			t.Errorf("%v: expected status 200, got %d", d, w.Code)
		}
		if hasDeadline {
			t.Errorf("%v: expected no deadline", d)
		}
	}
}

func TestRequestTimeout_ContextHasDeadline(t *testing.T) {
	var hasDeadline bool
	w := serveWithTimeout(5*time.Second, func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		okHandler(c)
	}, "application/json")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !hasDeadline {
		t.Error("expected context to have deadline")
	}
}

func TestRequestTimeout_TimeoutTriggered(t *testing.T) {
	w := serveWithTimeout(50*time.Millisecond, func(c *gin.Context) {
		select {
		case <-time.After(time.Second):
			okHandler(c)
		case <-c.Request.Context().Done():
		}
	}, "")

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504 Gateway Timeout, got %d", w.Code)
	}
}

func TestRequestTimeout_HandlerWritesBeforeTimeout(t *testing.T) {
	w := serveWithTimeout(50*time.Millisecond, func(c *gin.Context) {
		okHandler(c)
		time.Sleep(100 * time.Millisecond)
	}, "")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 (already written), got %d", w.Code)
	}
}

func TestRequestTimeout_EventStreamHasNoDeadline(t *testing.T) {
	var hasDeadline bool
	serveWithTimeout(50*time.Millisecond, func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		okHandler(c)
	}, "text/event-stream")

	if hasDeadline {
		t.Error("event streams must not get a deadline")
	}
}
