package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/sirupsen/logrus"
)

const maxErrorBody = 64 << 10

// HTTPBackend calls the REST API under <base>/api/v1. The caller's bearer
// token is forwarded from the request context; requests without one, such as
// shared cache fetches, use the service token.
type HTTPBackend struct {
	baseURL      *url.URL
	serviceToken string
	client       *http.Client
	log          *logrus.Entry
}

// NewHTTPBackend creates a backend client. A nil client gets one with timeout.
func NewHTTPBackend(baseURL, serviceToken string, timeout time.Duration, client *http.Client) (*HTTPBackend, error) {
	if baseURL == "" {
		return nil, errors.New("backend: base url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported url scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPBackend{
		baseURL:      u,
		serviceToken: serviceToken,
		client:       client,
		log:          logger.WithComponent("backend-http"),
	}, nil
}

func (b *HTTPBackend) endpoint(path string, query url.Values) string {
	u := *b.baseURL
	u.Path = u.Path + "/api/v1/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := auth.TokenFrom(ctx)
	if token == "" {
		token = b.serviceToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	b.log.Debugf("%s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

// list accepts either a paginated envelope or a bare array and follows
// "next" links until the last page.
func list[T any](ctx context.Context, b *HTTPBackend, path string, query url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if page > 1 {
			q.Set("page", strconv.Itoa(page))
		}

		var raw json.RawMessage
		if err := b.do(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("backend: decode %s: %w", path, err)
			}
			return append(all, items...), nil
		}

		var env model.Page[T]
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("backend: decode %s: %w", path, err)
		}
		all = append(all, env.Results...)
		if env.Next == nil || *env.Next == "" || len(env.Results) == 0 {
			break
		}
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

func get[T any](ctx context.Context, b *HTTPBackend, path string) (T, error) {
	var out T
	err := b.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

func send[T any](ctx context.Context, b *HTTPBackend, method, path string, body any) (T, error) {
	var out T
	err := b.do(ctx, method, path, nil, body, &out)
	return out, err
}

// save creates when id is empty and replaces otherwise.
func save[T any](ctx context.Context, b *HTTPBackend, collection, id string, body T) (T, error) {
	if id == "" {
		return send[T](ctx, b, http.MethodPost, collection+"/", body)
	}
	return send[T](ctx, b, http.MethodPut, collection+"/"+url.PathEscape(id)+"/", body)
}

func (b *HTTPBackend) remove(ctx context.Context, collection, id string) error {
	return b.do(ctx, http.MethodDelete, collection+"/"+url.PathEscape(id)+"/", nil, nil, nil)
}

func (b *HTTPBackend) ListCourses(ctx context.Context, q CourseQuery) ([]model.Course, error) {
	query := url.Values{}
	if q.TeacherID != "" {
		query.Set("teacher", q.TeacherID)
	}
	if q.PublishedOnly {
		query.Set("published", "true")
	}
	return list[model.Course](ctx, b, "cms/courses/", query)
}

func (b *HTTPBackend) GetCourse(ctx context.Context, id string) (model.Course, error) {
	return get[model.Course](ctx, b, "cms/courses/"+url.PathEscape(id)+"/")
}

func (b *HTTPBackend) SaveCourse(ctx context.Context, c model.Course) (model.Course, error) {
	return save(ctx, b, "cms/courses", c.ID, c)
}

func (b *HTTPBackend) DeleteCourse(ctx context.Context, id string) error {
	return b.remove(ctx, "cms/courses", id)
}

func (b *HTTPBackend) PublishCourse(ctx context.Context, id string, published bool) (model.Course, error) {
	return send[model.Course](ctx, b, http.MethodPost, "cms/courses/"+url.PathEscape(id)+"/publish/",
		map[string]bool{"published": published})
}

func (b *HTTPBackend) ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error) {
	query := url.Values{}
	if courseID != "" {
		query.Set("course", courseID)
	}
	return list[model.Lesson](ctx, b, "cms/lessons/", query)
}

func (b *HTTPBackend) GetLesson(ctx context.Context, id string) (model.Lesson, error) {
	return get[model.Lesson](ctx, b, "cms/lessons/"+url.PathEscape(id)+"/")
}

func (b *HTTPBackend) SaveLesson(ctx context.Context, l model.Lesson) (model.Lesson, error) {
	return save(ctx, b, "cms/lessons", l.ID, l)
}

func (b *HTTPBackend) DeleteLesson(ctx context.Context, id string) error {
	return b.remove(ctx, "cms/lessons", id)
}

func (b *HTTPBackend) ListChallenges(ctx context.Context, lessonID string) ([]model.Challenge, error) {
	query := url.Values{}
	if lessonID != "" {
		query.Set("lesson", lessonID)
	}
	return list[model.Challenge](ctx, b, "cms/challenges/", query)
}

func (b *HTTPBackend) GetChallenge(ctx context.Context, id string) (model.Challenge, error) {
	return get[model.Challenge](ctx, b, "cms/challenges/"+url.PathEscape(id)+"/")
}

func (b *HTTPBackend) SaveChallenge(ctx context.Context, ch model.Challenge) (model.Challenge, error) {
	return save(ctx, b, "cms/challenges", ch.ID, ch)
}

func (b *HTTPBackend) DeleteChallenge(ctx context.Context, id string) error {
	return b.remove(ctx, "cms/challenges", id)
}

func progressPath(userID, action string) string {
	p := "practice/progress/" + url.PathEscape(userID) + "/"
	if action != "" {
		p += action + "/"
	}
	return p
}

func (b *HTTPBackend) GetProgress(ctx context.Context, userID string) (model.StudentProgress, error) {
	return get[model.StudentProgress](ctx, b, progressPath(userID, ""))
}

func (b *HTTPBackend) ConsumeHeart(ctx context.Context, userID string) (model.StudentProgress, error) {
	p, err := send[model.StudentProgress](ctx, b, http.MethodPost, progressPath(userID, "hearts/consume"), struct{}{})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return p, fmt.Errorf("%w: %w", ErrNoHearts, err)
	}
	return p, err
}

func (b *HTTPBackend) RefillHearts(ctx context.Context, userID string) (model.StudentProgress, error) {
	return send[model.StudentProgress](ctx, b, http.MethodPost, progressPath(userID, "hearts/refill"), struct{}{})
}

type refillAllResponse struct {
	Refilled int `json:"refilled"`
}

func (b *HTTPBackend) RefillAllHearts(ctx context.Context) (int, error) {
	out, err := send[refillAllResponse](ctx, b, http.MethodPost, "practice/hearts/refill-all/", struct{}{})
	return out.Refilled, err
}

func (b *HTTPBackend) SubmitAnswer(ctx context.Context, answer model.AnswerSubmission) (model.AnswerResult, error) {
	return send[model.AnswerResult](ctx, b, http.MethodPost, progressPath(answer.UserID, "answers"), answer)
}

func (b *HTTPBackend) SelectCourse(ctx context.Context, userID, courseID string) (model.StudentProgress, error) {
	return send[model.StudentProgress](ctx, b, http.MethodPost, progressPath(userID, "course"),
		map[string]string{"courseId": courseID})
}

func (b *HTTPBackend) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return list[model.LeaderboardEntry](ctx, b, "practice/leaderboard/", query)
}

func (b *HTTPBackend) Achievements(ctx context.Context, userID string) ([]model.Achievement, error) {
	return list[model.Achievement](ctx, b, "practice/achievements/", url.Values{"user": {userID}})
}

func (b *HTTPBackend) ListTransactions(ctx context.Context, q TransactionQuery) ([]model.Transaction, error) {
	query := url.Values{}
	if q.UserID != "" {
		query.Set("user", q.UserID)
	}
	if q.CourseID != "" {
		query.Set("course", q.CourseID)
	}
	return list[model.Transaction](ctx, b, "admin/transactions/", query)
}

func (b *HTTPBackend) CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	return send[model.Transaction](ctx, b, http.MethodPost, "admin/transactions/", tx)
}

func (b *HTTPBackend) GetUser(ctx context.Context, id string) (model.UserProfile, error) {
	return get[model.UserProfile](ctx, b, "admin/users/"+url.PathEscape(id)+"/")
}

func (b *HTTPBackend) ListUsers(ctx context.Context, role string) ([]model.UserProfile, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}
	return list[model.UserProfile](ctx, b, "admin/users/", query)
}
