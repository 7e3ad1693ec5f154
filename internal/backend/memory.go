package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/repository"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// MemoryBackend keeps an in-memory copy of the data document and applies the
// practice rules locally. Every mutation marks it dirty so the persistence
// scheduler writes it back to disk.
type MemoryBackend struct {
	mu         sync.RWMutex
	data       repository.DataDocument
	dirty      bool  // true if data changed since last persist
	lastUpdate int64 // data's metadata.lastUpdate
	rules      practice.Rules
	validator  *validation.Validator
	now        func() time.Time
	onReplace  []func()
}

// NewMemoryBackend creates a backend serving doc.
func NewMemoryBackend(doc repository.DataDocument, rules practice.Rules) *MemoryBackend {
	doc.ApplyDefaults()
	return &MemoryBackend{
		data:       doc,
		lastUpdate: doc.Metadata.LastUpdate,
		rules:      rules,
		validator:  validation.New(),
		now:        time.Now,
	}
}

// MarkDirty sets the dirty flag to true.
func (m *MemoryBackend) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
}

// IsDirty returns true if the data has unsaved changes.
func (m *MemoryBackend) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// ClearDirty resets the dirty flag.
func (m *MemoryBackend) ClearDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
}

// GetLastUpdate returns the data's last update timestamp.
func (m *MemoryBackend) GetLastUpdate() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}

// SetLastUpdate sets the data's last update timestamp.
func (m *MemoryBackend) SetLastUpdate(ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdate = ts
}

// Snapshot returns a deep copy of the data.
func (m *MemoryBackend) Snapshot() (repository.DataDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.data)
}

// OnReplace registers fn to run after every Replace, outside the lock.
func (m *MemoryBackend) OnReplace(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReplace = append(m.onReplace, fn)
}

// Replace swaps the data, typically after a reload from disk.
func (m *MemoryBackend) Replace(doc repository.DataDocument) error {
	cloned, err := clone(doc)
	if err != nil {
		return err
	}
	cloned.ApplyDefaults()

	m.mu.Lock()
	m.data = cloned
	m.lastUpdate = doc.Metadata.LastUpdate
	m.dirty = false
	hooks := slices.Clone(m.onReplace)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// read runs fn under the read lock and returns a deep copy of its result.
func read[T any](ctx context.Context, m *MemoryBackend, fn func(*repository.DataDocument) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := fn(&m.data)
	if err != nil {
		return zero, err
	}
	return clone(v)
}

// write runs fn under the write lock and marks the data dirty when fn succeeds.
func write[T any](ctx context.Context, m *MemoryBackend, fn func(*repository.DataDocument) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := fn(&m.data)
	if err != nil {
		return zero, err
	}
	m.dirty = true
	return clone(v)
}

func (m *MemoryBackend) validate(v any) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}
	if verr, ok := err.(*validation.Error); ok {
		fields := make(map[string][]string, len(verr.Fields))
		for k, msg := range verr.Fields {
			fields[k] = []string{msg}
		}
		return invalid(fields)
	}
	return err
}

func newID() string { return uuid.NewString() }

func indexOf[T any](items []T, match func(T) bool) int {
	return slices.IndexFunc(items, match)
}

// upsert replaces the item with the same id or appends it.
func upsert[T any](items []T, item T, sameID func(T) bool) []T {
	if i := indexOf(items, sameID); i >= 0 {
		items[i] = item
		return items
	}
	return append(items, item)
}

// Courses

func (m *MemoryBackend) ListCourses(ctx context.Context, q CourseQuery) ([]model.Course, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.Course, error) {
		out := []model.Course{}
		for _, c := range d.Courses {
			if q.TeacherID != "" && c.TeacherID != q.TeacherID {
				continue
			}
			if q.PublishedOnly && !c.Published {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	})
}

func (m *MemoryBackend) GetCourse(ctx context.Context, id string) (model.Course, error) {
	return read(ctx, m, func(d *repository.DataDocument) (model.Course, error) {
		i := indexOf(d.Courses, func(c model.Course) bool { return c.ID == id })
		if i < 0 {
			return model.Course{}, notFound("course", id)
		}
		return d.Courses[i], nil
	})
}

func (m *MemoryBackend) SaveCourse(ctx context.Context, c model.Course) (model.Course, error) {
	if c.Currency == "" {
		c.Currency = "AOA"
	}
	c.Currency = strings.ToUpper(c.Currency)
	if err := m.validate(c); err != nil {
		return model.Course{}, err
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.Course, error) {
		if c.ID == "" {
			c.ID = newID()
		} else if indexOf(d.Courses, func(x model.Course) bool { return x.ID == c.ID }) < 0 {
			return model.Course{}, notFound("course", c.ID)
		}
		d.Courses = upsert(d.Courses, c, func(x model.Course) bool { return x.ID == c.ID })
		return c, nil
	})
}

// DeleteCourse removes the course with its lessons and their challenges.
func (m *MemoryBackend) DeleteCourse(ctx context.Context, id string) error {
	_, err := write(ctx, m, func(d *repository.DataDocument) (struct{}, error) {
		i := indexOf(d.Courses, func(c model.Course) bool { return c.ID == id })
		if i < 0 {
			return struct{}{}, notFound("course", id)
		}
		d.Courses = slices.Delete(d.Courses, i, i+1)

		lessonIDs := map[string]bool{}
		d.Lessons = slices.DeleteFunc(d.Lessons, func(l model.Lesson) bool {
			if l.CourseID == id {
				lessonIDs[l.ID] = true
				return true
			}
			return false
		})
		d.Challenges = slices.DeleteFunc(d.Challenges, func(ch model.Challenge) bool { return lessonIDs[ch.LessonID] })
		for i := range d.Progress {
			if d.Progress[i].ActiveCourseID == id {
				d.Progress[i].ActiveCourseID = ""
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (m *MemoryBackend) PublishCourse(ctx context.Context, id string, published bool) (model.Course, error) {
	return write(ctx, m, func(d *repository.DataDocument) (model.Course, error) {
		i := indexOf(d.Courses, func(c model.Course) bool { return c.ID == id })
		if i < 0 {
			return model.Course{}, notFound("course", id)
		}
		d.Courses[i].Published = published
		return d.Courses[i], nil
	})
}

// Lessons

func (m *MemoryBackend) ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.Lesson, error) {
		out := []model.Lesson{}
		for _, l := range d.Lessons {
			if courseID == "" || l.CourseID == courseID {
				out = append(out, l)
			}
		}
		slices.SortStableFunc(out, func(a, b model.Lesson) int { return a.Order - b.Order })
		return out, nil
	})
}

func (m *MemoryBackend) GetLesson(ctx context.Context, id string) (model.Lesson, error) {
	return read(ctx, m, func(d *repository.DataDocument) (model.Lesson, error) {
		i := indexOf(d.Lessons, func(l model.Lesson) bool { return l.ID == id })
		if i < 0 {
			return model.Lesson{}, notFound("lesson", id)
		}
		return d.Lessons[i], nil
	})
}

func (m *MemoryBackend) SaveLesson(ctx context.Context, l model.Lesson) (model.Lesson, error) {
	if err := m.validate(l); err != nil {
		return model.Lesson{}, err
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.Lesson, error) {
		if indexOf(d.Courses, func(c model.Course) bool { return c.ID == l.CourseID }) < 0 {
			return model.Lesson{}, invalid(map[string][]string{"courseId": {"unknown course"}})
		}
		if l.ID == "" {
			l.ID = newID()
		} else if indexOf(d.Lessons, func(x model.Lesson) bool { return x.ID == l.ID }) < 0 {
			return model.Lesson{}, notFound("lesson", l.ID)
		}
		d.Lessons = upsert(d.Lessons, l, func(x model.Lesson) bool { return x.ID == l.ID })
		return l, nil
	})
}

// DeleteLesson removes the lesson and its challenges.
func (m *MemoryBackend) DeleteLesson(ctx context.Context, id string) error {
	_, err := write(ctx, m, func(d *repository.DataDocument) (struct{}, error) {
		i := indexOf(d.Lessons, func(l model.Lesson) bool { return l.ID == id })
		if i < 0 {
			return struct{}{}, notFound("lesson", id)
		}
		d.Lessons = slices.Delete(d.Lessons, i, i+1)
		d.Challenges = slices.DeleteFunc(d.Challenges, func(ch model.Challenge) bool { return ch.LessonID == id })
		return struct{}{}, nil
	})
	return err
}

// Challenges

func (m *MemoryBackend) ListChallenges(ctx context.Context, lessonID string) ([]model.Challenge, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.Challenge, error) {
		out := []model.Challenge{}
		for _, ch := range d.Challenges {
			if lessonID == "" || ch.LessonID == lessonID {
				out = append(out, ch)
			}
		}
		slices.SortStableFunc(out, func(a, b model.Challenge) int { return a.Order - b.Order })
		return out, nil
	})
}

func (m *MemoryBackend) GetChallenge(ctx context.Context, id string) (model.Challenge, error) {
	return read(ctx, m, func(d *repository.DataDocument) (model.Challenge, error) {
		i := indexOf(d.Challenges, func(ch model.Challenge) bool { return ch.ID == id })
		if i < 0 {
			return model.Challenge{}, notFound("challenge", id)
		}
		return d.Challenges[i], nil
	})
}

func (m *MemoryBackend) SaveChallenge(ctx context.Context, ch model.Challenge) (model.Challenge, error) {
	if ch.Options == nil {
		ch.Options = []model.ChallengeOption{}
	}
	if err := m.validate(ch); err != nil {
		return model.Challenge{}, err
	}
	if ch.Type == model.ChallengeSelect || ch.Type == model.ChallengeAssist {
		if !slices.ContainsFunc(ch.Options, func(o model.ChallengeOption) bool { return o.Correct }) {
			return model.Challenge{}, invalid(map[string][]string{"options": {"at least one option must be correct"}})
		}
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.Challenge, error) {
		if indexOf(d.Lessons, func(l model.Lesson) bool { return l.ID == ch.LessonID }) < 0 {
			return model.Challenge{}, invalid(map[string][]string{"lessonId": {"unknown lesson"}})
		}
		if ch.ID == "" {
			ch.ID = newID()
		} else if indexOf(d.Challenges, func(x model.Challenge) bool { return x.ID == ch.ID }) < 0 {
			return model.Challenge{}, notFound("challenge", ch.ID)
		}
		d.Challenges = upsert(d.Challenges, ch, func(x model.Challenge) bool { return x.ID == ch.ID })
		return ch, nil
	})
}

func (m *MemoryBackend) DeleteChallenge(ctx context.Context, id string) error {
	_, err := write(ctx, m, func(d *repository.DataDocument) (struct{}, error) {
		i := indexOf(d.Challenges, func(ch model.Challenge) bool { return ch.ID == id })
		if i < 0 {
			return struct{}{}, notFound("challenge", id)
		}
		d.Challenges = slices.Delete(d.Challenges, i, i+1)
		return struct{}{}, nil
	})
	return err
}

// Practice

// progressOf returns the stored progress of userID and its index, or a fresh
// one with full hearts and -1.
func (m *MemoryBackend) progressOf(d *repository.DataDocument, userID string) (model.StudentProgress, int) {
	if i := indexOf(d.Progress, func(p model.StudentProgress) bool { return p.UserID == userID }); i >= 0 {
		return d.Progress[i], i
	}
	p := model.StudentProgress{UserID: userID, Hearts: m.rules.MaxHearts, CompletedChallenges: []string{}}
	if u := indexOf(d.Users, func(u model.UserProfile) bool { return u.ID == userID }); u >= 0 {
		p.UserName = d.Users[u].Name
	}
	return p, -1
}

func storeProgress(d *repository.DataDocument, p model.StudentProgress, i int) {
	if i >= 0 {
		d.Progress[i] = p
		return
	}
	d.Progress = append(d.Progress, p)
}

// updateProgress applies fn to the user's progress and stores the result.
func (m *MemoryBackend) updateProgress(ctx context.Context, userID string, fn func(*model.StudentProgress) error) (model.StudentProgress, error) {
	if userID == "" {
		return model.StudentProgress{}, invalid(map[string][]string{"userId": {"this field is required"}})
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.StudentProgress, error) {
		p, i := m.progressOf(d, userID)
		if err := fn(&p); err != nil {
			return model.StudentProgress{}, err
		}
		storeProgress(d, p, i)
		return p, nil
	})
}

func (m *MemoryBackend) GetProgress(ctx context.Context, userID string) (model.StudentProgress, error) {
	return read(ctx, m, func(d *repository.DataDocument) (model.StudentProgress, error) {
		p, _ := m.progressOf(d, userID)
		return p, nil
	})
}

func (m *MemoryBackend) ConsumeHeart(ctx context.Context, userID string) (model.StudentProgress, error) {
	return m.updateProgress(ctx, userID, func(p *model.StudentProgress) error {
		if err := m.rules.ConsumeHeart(p); err != nil {
			return fmt.Errorf("%w: %w", ErrNoHearts, err)
		}
		return nil
	})
}

func (m *MemoryBackend) RefillHearts(ctx context.Context, userID string) (model.StudentProgress, error) {
	return m.updateProgress(ctx, userID, func(p *model.StudentProgress) error {
		m.rules.RefillHearts(p)
		return nil
	})
}

// RefillAllHearts refills every stored student below the maximum.
func (m *MemoryBackend) RefillAllHearts(ctx context.Context) (int, error) {
	return write(ctx, m, func(d *repository.DataDocument) (int, error) {
		n := 0
		for i := range d.Progress {
			if d.Progress[i].Hearts < m.rules.MaxHearts {
				m.rules.RefillHearts(&d.Progress[i])
				n++
			}
		}
		return n, nil
	})
}

func (m *MemoryBackend) SubmitAnswer(ctx context.Context, answer model.AnswerSubmission) (model.AnswerResult, error) {
	if answer.UserID == "" {
		return model.AnswerResult{}, invalid(map[string][]string{"userId": {"this field is required"}})
	}
	if err := m.validate(answer); err != nil {
		return model.AnswerResult{}, err
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.AnswerResult, error) {
		ci := indexOf(d.Challenges, func(ch model.Challenge) bool { return ch.ID == answer.ChallengeID })
		if ci < 0 {
			return model.AnswerResult{}, notFound("challenge", answer.ChallengeID)
		}
		p, i := m.progressOf(d, answer.UserID)
		res, err := m.rules.ApplyAnswer(p, d.Challenges[ci], answer, d.Achievements)
		if err != nil {
			if errors.Is(err, practice.ErrNoHearts) {
				return model.AnswerResult{}, fmt.Errorf("%w: %w", ErrNoHearts, err)
			}
			return model.AnswerResult{}, invalid(map[string][]string{"answer": {err.Error()}})
		}
		storeProgress(d, res.Progress, i)
		return res, nil
	})
}

func (m *MemoryBackend) SelectCourse(ctx context.Context, userID, courseID string) (model.StudentProgress, error) {
	if userID == "" {
		return model.StudentProgress{}, invalid(map[string][]string{"userId": {"this field is required"}})
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.StudentProgress, error) {
		ci := indexOf(d.Courses, func(c model.Course) bool { return c.ID == courseID })
		if ci < 0 {
			return model.StudentProgress{}, notFound("course", courseID)
		}
		if !d.Courses[ci].Published {
			return model.StudentProgress{}, invalid(map[string][]string{"courseId": {"course is not published"}})
		}
		p, i := m.progressOf(d, userID)
		p.ActiveCourseID = courseID
		storeProgress(d, p, i)
		return p, nil
	})
}

func (m *MemoryBackend) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.LeaderboardEntry, error) {
		return practice.Rank(d.Progress, limit), nil
	})
}

func (m *MemoryBackend) Achievements(ctx context.Context, userID string) ([]model.Achievement, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.Achievement, error) {
		p, _ := m.progressOf(d, userID)
		return practice.Annotate(d.Achievements, p), nil
	})
}

// Transactions

func (m *MemoryBackend) ListTransactions(ctx context.Context, q TransactionQuery) ([]model.Transaction, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.Transaction, error) {
		out := []model.Transaction{}
		for _, tx := range d.Transactions {
			if q.UserID != "" && tx.UserID != q.UserID {
				continue
			}
			if q.CourseID != "" && tx.CourseID != q.CourseID {
				continue
			}
			out = append(out, tx)
		}
		slices.SortStableFunc(out, func(a, b model.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
		return out, nil
	})
}

// CreateTransaction records a purchase. A second record for the same payment
// intent is a conflict.
func (m *MemoryBackend) CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	if tx.Status == "" {
		tx.Status = model.TransactionSucceeded
	}
	if err := m.validate(tx); err != nil {
		return model.Transaction{}, err
	}
	return write(ctx, m, func(d *repository.DataDocument) (model.Transaction, error) {
		if indexOf(d.Courses, func(c model.Course) bool { return c.ID == tx.CourseID }) < 0 {
			return model.Transaction{}, invalid(map[string][]string{"courseId": {"unknown course"}})
		}
		if indexOf(d.Transactions, func(x model.Transaction) bool { return x.PaymentIntentID == tx.PaymentIntentID }) >= 0 {
			return model.Transaction{}, &APIError{Status: http.StatusConflict, Message: "payment already recorded"}
		}
		tx.ID = newID()
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = m.now().UTC()
		}
		d.Transactions = append(d.Transactions, tx)
		return tx, nil
	})
}

// Users

func (m *MemoryBackend) GetUser(ctx context.Context, id string) (model.UserProfile, error) {
	return read(ctx, m, func(d *repository.DataDocument) (model.UserProfile, error) {
		i := indexOf(d.Users, func(u model.UserProfile) bool { return u.ID == id })
		if i < 0 {
			return model.UserProfile{}, notFound("user", id)
		}
		return d.Users[i], nil
	})
}

func (m *MemoryBackend) ListUsers(ctx context.Context, role string) ([]model.UserProfile, error) {
	return read(ctx, m, func(d *repository.DataDocument) ([]model.UserProfile, error) {
		out := []model.UserProfile{}
		for _, u := range d.Users {
			if role == "" || strings.EqualFold(u.Role, role) {
				out = append(out, u)
			}
		}
		return out, nil
	})
}

// clone deep-copies v to avoid shared slices between the backend and callers.
func clone[T any](v T) (T, error) {
	var out T
	bytes, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return out, err
	}
	return out, nil
}
