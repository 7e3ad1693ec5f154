// Package checkout drives the course purchase wizard:
// Details -> Payment -> Completion.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/proenglish/go_proenglish/internal/payment"
	"github.com/proenglish/go_proenglish/internal/validation"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound     = errors.New("checkout: session not found")
	ErrCourseUnavailable   = errors.New("checkout: course is not available for purchase")
	ErrInvalidStep         = errors.New("checkout: invalid step")
	ErrWrongStep           = errors.New("checkout: action not allowed at this step")
	ErrPaymentNotSucceeded = errors.New("checkout: payment has not succeeded")
	ErrIntentMismatch      = errors.New("checkout: payment intent does not belong to this session")
)

// GuestDetails is the guest checkout form.
type GuestDetails struct {
	Name                 string `json:"name" validate:"notblank,max=120"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

// Session is one checkout in progress.
type Session struct {
	ID       string       `json:"id"`
	CourseID string       `json:"courseId"`
	Course   model.Course `json:"course"`
	// Step is the position shown; Reached is the furthest step completed.
	Step    Step `json:"step"`
	Reached Step `json:"reached"`

	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"userId,omitempty"`
	Guest  bool   `json:"guest"`

	PaymentIntentID string             `json:"paymentIntentId,omitempty"`
	ClientSecret    string             `json:"clientSecret,omitempty"`
	Transaction     *model.Transaction `json:"transaction,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CourseSource looks up the course being bought.
type CourseSource interface {
	GetCourse(ctx context.Context, id string) (model.Course, error)
}

// TransactionRecorder stores confirmed purchases.
type TransactionRecorder interface {
	CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
}

// Options configures a Wizard.
type Options struct {
	Courses      CourseSource
	Payments     payment.Provider
	Transactions TransactionRecorder
	SessionTTL   time.Duration
	MaxSessions  int
}

type sessionState struct {
	mu sync.Mutex
	s  Session
}

// Wizard holds checkout sessions in an expiring LRU.
type Wizard struct {
	sessions     *expirable.LRU[string, *sessionState]
	courses      CourseSource
	payments     payment.Provider
	transactions TransactionRecorder
	validator    *validation.Validator
	log          *logrus.Entry
	now          func() time.Time
}

// NewWizard creates a wizard.
func NewWizard(opts Options) (*Wizard, error) {
	if opts.Courses == nil || opts.Payments == nil || opts.Transactions == nil {
		return nil, errors.New("checkout: courses, payments and transactions are required")
	}
	if opts.SessionTTL <= 0 {
		return nil, fmt.Errorf("checkout: session ttl must be positive, got %v", opts.SessionTTL)
	}
	if opts.MaxSessions <= 0 {
		return nil, fmt.Errorf("checkout: max sessions must be positive, got %d", opts.MaxSessions)
	}
	log := logger.WithComponent("checkout")
	onEvict := func(id string, st *sessionState) {
		log.Debugf("checkout session %s evicted at step %s", id, st.s.Step)
	}
	return &Wizard{
		sessions:     expirable.NewLRU[string, *sessionState](opts.MaxSessions, onEvict, opts.SessionTTL),
		courses:      opts.Courses,
		payments:     opts.Payments,
		transactions: opts.Transactions,
		validator:    validation.New(),
		log:          log,
		now:          time.Now,
	}, nil
}

// Len returns the number of live sessions.
func (w *Wizard) Len() int { return w.sessions.Len() }

// Start opens a session for a published, paid course at Details.
func (w *Wizard) Start(ctx context.Context, courseID string) (Session, error) {
	if strings.TrimSpace(courseID) == "" {
		return Session{}, validation.NewError(map[string]string{"courseId": "this field is required"})
	}
	course, err := w.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Session{}, fmt.Errorf("checkout: load course %s: %w", courseID, err)
	}
	if !course.Published || !course.Price.IsPositive() {
		return Session{}, fmt.Errorf("%w: %s", ErrCourseUnavailable, courseID)
	}

	now := w.now().UTC()
	st := &sessionState{s: Session{
		ID:        uuid.NewString(),
		CourseID:  course.ID,
		Course:    course,
		Step:      StepDetails,
		Reached:   StepDetails,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	w.sessions.Add(st.s.ID, st)
	w.log.Debugf("checkout session %s started for course %s", st.s.ID, course.ID)
	return st.s, nil
}

// Get returns the session without changing it.
func (w *Wizard) Get(id string) (Session, error) {
	st, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s, nil
}

// Resolve moves the session to the step requested by the URL. Requests past
// the furthest step reached are clamped to it, so a later step is only shown
// once its prerequisites are satisfied. Moving back is allowed until the
// purchase completes.
func (w *Wizard) Resolve(id string, requested Step) (Session, error) {
	if !requested.Valid() {
		return Session{}, fmt.Errorf("%w: %d", ErrInvalidStep, int(requested))
	}
	st, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case st.s.Reached == StepCompletion:
		st.s.Step = StepCompletion
	case requested > st.s.Reached:
		st.s.Step = st.s.Reached
	default:
		st.s.Step = requested
	}
	return st.s, nil
}

// SubmitGuestDetails validates the guest form locally and moves to Payment.
func (w *Wizard) SubmitGuestDetails(ctx context.Context, id string, details GuestDetails) (Session, error) {
	if err := w.validator.Struct(details); err != nil {
		return Session{}, err
	}
	return w.enterPayment(ctx, id, func(s *Session) {
		s.Guest = true
		s.UserID = ""
		s.Name = strings.TrimSpace(details.Name)
		s.Email = strings.ToLower(strings.TrimSpace(details.Email))
	})
}

// SignIn attaches an authenticated user and moves to Payment.
func (w *Wizard) SignIn(ctx context.Context, id string, user auth.User) (Session, error) {
	if user.ID == "" {
		return Session{}, auth.ErrUnauthenticated
	}
	return w.enterPayment(ctx, id, func(s *Session) {
		s.Guest = false
		s.UserID = user.ID
		s.Name = user.Name
		s.Email = user.Email
	})
}

func (w *Wizard) enterPayment(ctx context.Context, id string, identify func(*Session)) (Session, error) {
	st, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Step != StepDetails && st.s.Step != StepPayment {
		return Session{}, fmt.Errorf("%w: %s", ErrWrongStep, st.s.Step)
	}

	next := st.s
	identify(&next)
	if next.PaymentIntentID == "" {
		intent, err := w.payments.CreateIntent(ctx, payment.IntentRequest{
			Amount:    next.Course.Price,
			Currency:  next.Course.Currency,
			Email:     next.Email,
			CourseID:  next.CourseID,
			SessionID: next.ID,
		})
		if err != nil {
			return Session{}, fmt.Errorf("checkout: create payment intent: %w", err)
		}
		next.PaymentIntentID = intent.ID
		next.ClientSecret = intent.ClientSecret
	}
	next.Step = StepPayment
	next.Reached = max(next.Reached, StepPayment)
	next.UpdatedAt = w.now().UTC()
	st.s = next
	return st.s, nil
}

// ConfirmPayment checks the intent with the provider. Only a succeeded intent
// records the transaction and completes the checkout; any failure leaves the
// session at Payment.
func (w *Wizard) ConfirmPayment(ctx context.Context, id, intentID string) (Session, error) {
	st, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Step != StepPayment {
		return Session{}, fmt.Errorf("%w: %s", ErrWrongStep, st.s.Step)
	}
	if intentID == "" || intentID != st.s.PaymentIntentID {
		return Session{}, ErrIntentMismatch
	}

	intent, err := w.payments.GetIntent(ctx, intentID)
	if err != nil {
		return Session{}, fmt.Errorf("checkout: get payment intent: %w", err)
	}
	if !intent.Succeeded() {
		w.log.Infof("checkout session %s: payment intent %s is %s", id, intentID, intent.Status)
		return Session{}, fmt.Errorf("%w: status %s", ErrPaymentNotSucceeded, intent.Status)
	}

	tx, err := w.transactions.CreateTransaction(ctx, model.Transaction{
		UserID:          st.s.UserID,
		Email:           st.s.Email,
		CourseID:        st.s.CourseID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		PaymentIntentID: intent.ID,
		Status:          model.TransactionSucceeded,
		CreatedAt:       w.now().UTC(),
	})
	if err != nil {
		w.log.Errorf("checkout session %s: payment %s succeeded but recording the transaction failed: %v", id, intentID, err)
		return Session{}, fmt.Errorf("checkout: record transaction: %w", err)
	}

	st.s.Transaction = &tx
	st.s.ClientSecret = ""
	st.s.Step = StepCompletion
	st.s.Reached = StepCompletion
	st.s.UpdatedAt = w.now().UTC()
	w.log.Infof("checkout session %s completed with transaction %s", id, tx.ID)
	return st.s, nil
}

func (w *Wizard) lookup(id string) (*sessionState, error) {
	st, ok := w.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return st, nil
}
