// Package backend holds the collaborators that own the platform's data: the
// remote REST API and an in-memory stand-in persisted to a JSON file.
package backend

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/model"
)

const (
	TypeHTTP   = "http"
	TypeMemory = "memory"
)

// CourseQuery filters course listings. Zero values do not filter.
type CourseQuery struct {
	TeacherID     string
	PublishedOnly bool
}

// TransactionQuery filters transaction listings.
type TransactionQuery struct {
	UserID   string
	CourseID string
}

// CourseBackend is the content management API.
type CourseBackend interface {
	ListCourses(ctx context.Context, q CourseQuery) ([]model.Course, error)
	GetCourse(ctx context.Context, id string) (model.Course, error)
	SaveCourse(ctx context.Context, c model.Course) (model.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	PublishCourse(ctx context.Context, id string, published bool) (model.Course, error)

	ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error)
	GetLesson(ctx context.Context, id string) (model.Lesson, error)
	SaveLesson(ctx context.Context, l model.Lesson) (model.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error

	ListChallenges(ctx context.Context, lessonID string) ([]model.Challenge, error)
	GetChallenge(ctx context.Context, id string) (model.Challenge, error)
	SaveChallenge(ctx context.Context, ch model.Challenge) (model.Challenge, error)
	DeleteChallenge(ctx context.Context, id string) error
}

// PracticeBackend is the gamification API.
type PracticeBackend interface {
	GetProgress(ctx context.Context, userID string) (model.StudentProgress, error)
	ConsumeHeart(ctx context.Context, userID string) (model.StudentProgress, error)
	RefillHearts(ctx context.Context, userID string) (model.StudentProgress, error)
	RefillAllHearts(ctx context.Context) (int, error)
	SubmitAnswer(ctx context.Context, answer model.AnswerSubmission) (model.AnswerResult, error)
	SelectCourse(ctx context.Context, userID, courseID string) (model.StudentProgress, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Achievements(ctx context.Context, userID string) ([]model.Achievement, error)
}

// TransactionBackend records purchases.
type TransactionBackend interface {
	ListTransactions(ctx context.Context, q TransactionQuery) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
}

// UserBackend reads accounts.
type UserBackend interface {
	GetUser(ctx context.Context, id string) (model.UserProfile, error)
	ListUsers(ctx context.Context, role string) ([]model.UserProfile, error)
}

// Backend is everything the service needs from the system of record.
type Backend interface {
	CourseBackend
	PracticeBackend
	TransactionBackend
	UserBackend
}
