// Package dashboard composes the landing view for each role.
package dashboard

import (
	"context"
	"fmt"

	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/shopspring/decimal"
)

// View is implemented only by AdminView, TeacherView and StudentView.
type View interface {
	Role() auth.Role
	view()
}

// AdminView summarises the platform.
type AdminView struct {
	Courses      []model.Course      `json:"courses"`
	Users        []model.UserProfile `json:"users"`
	Transactions []model.Transaction `json:"transactions"`
	// Revenue sums succeeded transactions per currency.
	Revenue map[string]decimal.Decimal `json:"revenue"`
}

// TeacherView lists the teacher's own courses.
type TeacherView struct {
	Courses   []model.Course `json:"courses"`
	Published int            `json:"published"`
	Drafts    int            `json:"drafts"`
}

// StudentView is the practice lab landing page.
type StudentView struct {
	Progress     model.StudentProgress    `json:"progress"`
	ActiveCourse *model.Course            `json:"activeCourse,omitempty"`
	Courses      []model.Course           `json:"courses"`
	Leaderboard  []model.LeaderboardEntry `json:"leaderboard"`
	Achievements []model.Achievement      `json:"achievements"`
}

func (AdminView) Role() auth.Role   { return auth.RoleAdmin }
func (TeacherView) Role() auth.Role { return auth.RoleTeacher }
func (StudentView) Role() auth.Role { return auth.RoleStudent }

func (AdminView) view()   {}
func (TeacherView) view() {}
func (StudentView) view() {}

// Builder reads every view through the query cache.
type Builder struct {
	api             *apiclient.API
	leaderboardSize int
}

func NewBuilder(api *apiclient.API, leaderboardSize int) *Builder {
	return &Builder{api: api, leaderboardSize: leaderboardSize}
}

// Build returns the view for u's role.
func (b *Builder) Build(ctx context.Context, u auth.User) (View, error) {
	if u.ID == "" {
		return nil, auth.ErrUnauthenticated
	}
	switch u.Role {
	case auth.RoleAdmin:
		return b.admin(ctx)
	case auth.RoleTeacher:
		return b.teacher(ctx, u)
	case auth.RoleStudent:
		return b.student(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %q", auth.ErrUnknownRole, u.Role)
	}
}

func (b *Builder) admin(ctx context.Context) (View, error) {
	c := b.api.Cache()
	courses, err := qc.Query(ctx, c, b.api.Shared.Courses, backend.CourseQuery{})
	if err != nil {
		return nil, err
	}
	users, err := qc.Query(ctx, c, b.api.Admin.Users, "")
	if err != nil {
		return nil, err
	}
	txs, err := qc.Query(ctx, c, b.api.Admin.Transactions, backend.TransactionQuery{})
	if err != nil {
		return nil, err
	}
	return AdminView{Courses: courses, Users: users, Transactions: txs, Revenue: revenue(txs)}, nil
}

func revenue(txs []model.Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Status != model.TransactionSucceeded {
			continue
		}
		out[tx.Currency] = out[tx.Currency].Add(tx.Amount)
	}
	return out
}

func (b *Builder) teacher(ctx context.Context, u auth.User) (View, error) {
	courses, err := qc.Query(ctx, b.api.Cache(), b.api.Shared.Courses, backend.CourseQuery{TeacherID: u.ID})
	if err != nil {
		return nil, err
	}
	v := TeacherView{Courses: courses}
	for _, course := range courses {
		if course.Published {
			v.Published++
		} else {
			v.Drafts++
		}
	}
	return v, nil
}

func (b *Builder) student(ctx context.Context, u auth.User) (View, error) {
	c := b.api.Cache()
	progress, err := qc.Query(ctx, c, b.api.Student.Progress, u.ID)
	if err != nil {
		return nil, err
	}
	courses, err := qc.Query(ctx, c, b.api.Shared.Courses, backend.CourseQuery{PublishedOnly: true})
	if err != nil {
		return nil, err
	}
	board, err := qc.Query(ctx, c, b.api.Student.Leaderboard, b.leaderboardSize)
	if err != nil {
		return nil, err
	}
	achievements, err := qc.Query(ctx, c, b.api.Student.Achievements, u.ID)
	if err != nil {
		return nil, err
	}

	v := StudentView{Progress: progress, Courses: courses, Leaderboard: board, Achievements: achievements}
	if progress.ActiveCourseID != "" {
		course, err := b.api.GetCourse(ctx, progress.ActiveCourseID)
		switch {
		case err == nil:
			v.ActiveCourse = &course
		default:
			// The active course may have been deleted since it was selected.
			logger.WithComponent("dashboard").Warnf("active course %s for %s: %v", progress.ActiveCourseID, u.ID, err)
		}
	}
	return v, nil
}
