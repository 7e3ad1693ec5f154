package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b, err := NewHTTPBackend(srv.URL, "svc", time.Second, nil)
	require.NoError(t, err)
	return b
}

func TestNewHTTPBackend_Validation(t *testing.T) {
	_, err := NewHTTPBackend("", "", time.Second, nil)
	assert.Error(t, err)
	_, err = NewHTTPBackend("ftp://example.com", "", time.Second, nil)
	assert.Error(t, err)
	_, err = NewHTTPBackend("https://api.example.ao/", "", time.Second, nil)
	assert.NoError(t, err)
}

func TestHTTPBackend_ForwardsTokenAndFollowsPages(t *testing.T) {
	var auths []string
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/cms/courses/", r.URL.Path)
		assert.Equal(t, "t1", r.URL.Query().Get("teacher"))
		switch r.URL.Query().Get("page") {
		case "":
			next := "http://x/api/v1/cms/courses/?page=2"
			json.NewEncoder(w).Encode(model.Page[model.Course]{Count: 2, Next: &next, Results: []model.Course{{ID: "c1"}}})
		case "2":
			json.NewEncoder(w).Encode(model.Page[model.Course]{Count: 2, Results: []model.Course{{ID: "c2"}}})
		}
	})

	ctx := auth.WithToken(context.Background(), "tok")
	courses, err := b.ListCourses(ctx, CourseQuery{TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "c2", courses[1].ID)
	assert.Equal(t, []string{"Bearer tok", "Bearer tok"}, auths)

	auths = nil
	_, err = b.ListCourses(context.Background(), CourseQuery{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer svc", auths[0], "service token without a caller token")
}

func TestHTTPBackend_BareArray(t *testing.T) {
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "l1", r.URL.Query().Get("lesson"))
		w.Write([]byte(`[{"id":"ch1","lessonId":"l1","type":"SPEAKING"}]`))
	})
	chs, err := b.ListChallenges(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, chs, 1)
	assert.Equal(t, model.ChallengeSpeaking, chs[0].Type)
}

func TestHTTPBackend_SaveCreatesOrReplaces(t *testing.T) {
	var methods, paths []string
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		var l model.Lesson
		require.NoError(t, json.NewDecoder(r.Body).Decode(&l))
		if l.ID == "" {
			l.ID = "new"
		}
		json.NewEncoder(w).Encode(l)
	})

	created, err := b.SaveLesson(context.Background(), model.Lesson{CourseID: "c1", Title: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
	_, err = b.SaveLesson(context.Background(), created)
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodPost, http.MethodPut}, methods)
	assert.Equal(t, []string{"/api/v1/cms/lessons/", "/api/v1/cms/lessons/new/"}, paths)
}

func TestHTTPBackend_ErrorEnvelope(t *testing.T) {
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid course","title":["too short"]}`))
	})
	_, err := b.SaveCourse(context.Background(), model.Course{Title: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid course", apiErr.Message)
	assert.Equal(t, []string{"too short"}, apiErr.Fields["title"])
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHTTPBackend_ConsumeHeartConflict(t *testing.T) {
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/practice/progress/u1/hearts/consume/", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"no hearts"}`))
	})
	_, err := b.ConsumeHeart(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoHearts)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestHTTPBackend_DeleteAndRefillAll(t *testing.T) {
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/cms/courses/c1/":
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/practice/hearts/refill-all/":
			w.Write([]byte(`{"refilled":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	require.NoError(t, b.DeleteCourse(context.Background(), "c1"))
	n, err := b.RefillAllHearts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = b.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPBackend_ContextCancel(t *testing.T) {
	b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.GetProgress(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewBackendFromConfig(t *testing.T) {
	b, err := NewBackendFromConfig(Options{Type: TypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = NewBackendFromConfig(Options{Type: TypeHTTP, BaseURL: "https://api.example.ao", Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &HTTPBackend{}, b)

	_, err = NewBackendFromConfig(Options{})
	assert.Error(t, err, "http backend requires a base url")

	_, err = NewBackendFromConfig(Options{Type: "grpc"})
	assert.Error(t, err)
}
