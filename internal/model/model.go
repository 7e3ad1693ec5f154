// Package model holds the resource shapes exchanged with the backend API and
// the platform's clients.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is a CEFR proficiency level.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// ChallengeType selects how a challenge is answered and graded.
type ChallengeType string

const (
	ChallengeSelect    ChallengeType = "SELECT"
	ChallengeAssist    ChallengeType = "ASSIST"
	ChallengeSpeaking  ChallengeType = "SPEAKING"
	ChallengeListening ChallengeType = "LISTENING"
)

// Course is a purchasable unit of content owned by a teacher.
type Course struct {
	ID          string          `json:"id"`
	Title       string          `json:"title" validate:"required,min=3,max=120"`
	Description string          `json:"description" validate:"max=2000"`
	Level       Level           `json:"level" validate:"required,oneof=A1 A2 B1 B2 C1 C2"`
	ImageSrc    string          `json:"imageSrc" validate:"omitempty,url"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	TeacherID   string          `json:"teacherId"`
	Published   bool            `json:"published"`
}

// SetID assigns the identifier taken from a request path.
func (c *Course) SetID(id string) { c.ID = id }

// Lesson is an ordered part of a course.
type Lesson struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId" validate:"required"`
	Title    string `json:"title" validate:"required,min=3,max=120"`
	Order    int    `json:"order" validate:"min=0"`
	Content  string `json:"content"`
}

func (l *Lesson) SetID(id string) { l.ID = id }

// ChallengeOption is one selectable answer.
type ChallengeOption struct {
	ID       string `json:"id" validate:"required"`
	Text     string `json:"text" validate:"required"`
	Correct  bool   `json:"correct"`
	AudioSrc string `json:"audioSrc,omitempty"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

// Challenge is a single exercise of a lesson. Speaking and listening
// challenges are graded against Answer; the others against their options.
type Challenge struct {
	ID       string            `json:"id"`
	LessonID string            `json:"lessonId" validate:"required"`
	Type     ChallengeType     `json:"type" validate:"required,oneof=SELECT ASSIST SPEAKING LISTENING"`
	Question string            `json:"question" validate:"required"`
	AudioSrc string            `json:"audioSrc,omitempty"`
	Order    int               `json:"order" validate:"min=0"`
	Options  []ChallengeOption `json:"options" validate:"required_if=Type SELECT,required_if=Type ASSIST,dive"`
	Answer   string            `json:"answer,omitempty" validate:"required_if=Type SPEAKING,required_if=Type LISTENING"`
}

func (ch *Challenge) SetID(id string) { ch.ID = id }

// UserProfile is the backend's view of an account.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

// StudentProgress is the gamification state of one student.
type StudentProgress struct {
	UserID              string   `json:"userId"`
	UserName            string   `json:"userName"`
	ActiveCourseID      string   `json:"activeCourseId,omitempty"`
	Hearts              int      `json:"hearts"`
	Points              int      `json:"points"`
	Streak              int      `json:"streak"`
	CompletedChallenges []string `json:"completedChallenges"`
}

// HasCompleted reports whether the challenge was already solved.
func (p StudentProgress) HasCompleted(challengeID string) bool {
	for _, id := range p.CompletedChallenges {
		if id == challengeID {
			return true
		}
	}
	return false
}

// Achievement unlocks once a student reaches Points.
type Achievement struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Points      int    `json:"points" validate:"min=0"`
	Unlocked    bool   `json:"unlocked"`
}

// LeaderboardEntry is one ranked student.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Points   int    `json:"points"`
}

// TransactionStatus is the state of a purchase record.
type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Transaction records a confirmed course purchase.
type Transaction struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId,omitempty"`
	Email           string            `json:"email" validate:"required,email"`
	CourseID        string            `json:"courseId" validate:"required"`
	Amount          decimal.Decimal   `json:"amount" validate:"gt=0"`
	Currency        string            `json:"currency" validate:"required,len=3"`
	PaymentIntentID string            `json:"paymentIntentId" validate:"required"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// AnswerSubmission is a student's attempt at a challenge.
type AnswerSubmission struct {
	UserID      string `json:"-"`
	ChallengeID string `json:"challengeId" validate:"required"`
	OptionID    string `json:"optionId,omitempty"`
	Text        string `json:"text,omitempty"`
}

// AnswerResult is the outcome of an AnswerSubmission.
type AnswerResult struct {
	Correct  bool            `json:"correct"`
	Practice bool            `json:"practice"`
	Progress StudentProgress `json:"progress"`
	Unlocked []Achievement   `json:"unlocked,omitempty"`
}

// Page is the backend's paginated envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
