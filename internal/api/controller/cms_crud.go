package controller

import (
	"context"
	"fmt"

	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// canEdit reports whether the request user may see drafts and answers.
func canEdit(ctx context.Context) (auth.User, bool) {
	u, ok := auth.UserFrom(ctx)
	return u, ok && (u.Role == auth.RoleTeacher || u.Role == auth.RoleAdmin)
}

// authorizeCourse lets admins edit any course and teachers only their own.
func authorizeCourse(ctx context.Context, api *apiclient.API, courseID string) error {
	u, ok := canEdit(ctx)
	if !ok {
		return auth.ErrForbidden
	}
	if u.Role == auth.RoleAdmin {
		return nil
	}
	course, err := api.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course.TeacherID != u.ID {
		return fmt.Errorf("%w: course %s belongs to another teacher", auth.ErrForbidden, courseID)
	}
	return nil
}

// visibleCourse hides drafts from students and anonymous visitors.
func visibleCourse(ctx context.Context, api *apiclient.API, courseID string) error {
	course, err := api.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if _, ok := canEdit(ctx); !ok && !course.Published {
		return fmt.Errorf("%w: course %s", backend.ErrNotFound, courseID)
	}
	return nil
}

// CourseCrudService implements CrudService for courses. filter is a teacher id.
type CourseCrudService struct {
	API *apiclient.API
}

func (s *CourseCrudService) All(ctx context.Context, teacherID string) ([]model.Course, error) {
	q := backend.CourseQuery{TeacherID: teacherID}
	if _, ok := canEdit(ctx); !ok {
		q.PublishedOnly = true
	}
	return qc.Query(ctx, s.API.Cache(), s.API.Shared.Courses, q)
}

func (s *CourseCrudService) Get(ctx context.Context, id string) (model.Course, error) {
	if err := visibleCourse(ctx, s.API, id); err != nil {
		return model.Course{}, err
	}
	return s.API.GetCourse(ctx, id)
}

// Save creates a course owned by the calling teacher, or updates one the
// caller may edit. Publication is changed only through PublishCourse.
func (s *CourseCrudService) Save(ctx context.Context, c model.Course) (model.Course, error) {
	u, ok := canEdit(ctx)
	if !ok {
		return model.Course{}, auth.ErrForbidden
	}
	if c.ID == "" {
		c.Published = false
		if u.Role == auth.RoleTeacher || c.TeacherID == "" {
			c.TeacherID = u.ID
		}
	} else {
		if err := authorizeCourse(ctx, s.API, c.ID); err != nil {
			return model.Course{}, err
		}
		current, err := s.API.GetCourse(ctx, c.ID)
		if err != nil {
			return model.Course{}, err
		}
		c.Published = current.Published
		if u.Role == auth.RoleTeacher {
			c.TeacherID = current.TeacherID
		}
	}
	return qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.SaveCourse, c)
}

func (s *CourseCrudService) Remove(ctx context.Context, id string) error {
	if err := authorizeCourse(ctx, s.API, id); err != nil {
		return err
	}
	_, err := qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.DeleteCourse, id)
	return err
}

// LessonCrudService implements CrudService for lessons. filter is a course id.
type LessonCrudService struct {
	API *apiclient.API
}

func (s *LessonCrudService) All(ctx context.Context, courseID string) ([]model.Lesson, error) {
	if courseID == "" {
		return nil, validation.NewError(map[string]string{"course": "this field is required"})
	}
	if err := visibleCourse(ctx, s.API, courseID); err != nil {
		return nil, err
	}
	return qc.Query(ctx, s.API.Cache(), s.API.Shared.Lessons, courseID)
}

func (s *LessonCrudService) Get(ctx context.Context, id string) (model.Lesson, error) {
	l, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Lesson, id)
	if err != nil {
		return model.Lesson{}, err
	}
	if err := visibleCourse(ctx, s.API, l.CourseID); err != nil {
		return model.Lesson{}, err
	}
	return l, nil
}

func (s *LessonCrudService) Save(ctx context.Context, l model.Lesson) (model.Lesson, error) {
	if l.ID != "" {
		current, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Lesson, l.ID)
		if err != nil {
			return model.Lesson{}, err
		}
		// moving a lesson needs rights on both courses
		if err := authorizeCourse(ctx, s.API, current.CourseID); err != nil {
			return model.Lesson{}, err
		}
	}
	if err := authorizeCourse(ctx, s.API, l.CourseID); err != nil {
		return model.Lesson{}, err
	}
	return qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.SaveLesson, l)
}

func (s *LessonCrudService) Remove(ctx context.Context, id string) error {
	l, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Lesson, id)
	if err != nil {
		return err
	}
	if err := authorizeCourse(ctx, s.API, l.CourseID); err != nil {
		return err
	}
	_, err = qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.DeleteLesson, id)
	return err
}

// ChallengeCrudService implements CrudService for challenges. filter is a
// lesson id. Students never receive answers.
type ChallengeCrudService struct {
	API *apiclient.API
}

func (s *ChallengeCrudService) courseOf(ctx context.Context, lessonID string) (string, error) {
	l, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Lesson, lessonID)
	if err != nil {
		return "", err
	}
	return l.CourseID, nil
}

func (s *ChallengeCrudService) All(ctx context.Context, lessonID string) ([]model.Challenge, error) {
	if lessonID == "" {
		return nil, validation.NewError(map[string]string{"lesson": "this field is required"})
	}
	courseID, err := s.courseOf(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := visibleCourse(ctx, s.API, courseID); err != nil {
		return nil, err
	}
	chs, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Challenges, lessonID)
	if err != nil {
		return nil, err
	}
	if _, ok := canEdit(ctx); !ok {
		for i := range chs {
			chs[i] = redact(chs[i])
		}
	}
	return chs, nil
}

func (s *ChallengeCrudService) Get(ctx context.Context, id string) (model.Challenge, error) {
	ch, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Challenge, id)
	if err != nil {
		return model.Challenge{}, err
	}
	courseID, err := s.courseOf(ctx, ch.LessonID)
	if err != nil {
		return model.Challenge{}, err
	}
	if err := visibleCourse(ctx, s.API, courseID); err != nil {
		return model.Challenge{}, err
	}
	if _, ok := canEdit(ctx); !ok {
		ch = redact(ch)
	}
	return ch, nil
}

func (s *ChallengeCrudService) Save(ctx context.Context, ch model.Challenge) (model.Challenge, error) {
	courseID, err := s.courseOf(ctx, ch.LessonID)
	if err != nil {
		return model.Challenge{}, err
	}
	if err := authorizeCourse(ctx, s.API, courseID); err != nil {
		return model.Challenge{}, err
	}
	return qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.SaveChallenge, ch)
}

func (s *ChallengeCrudService) Remove(ctx context.Context, id string) error {
	ch, err := qc.Query(ctx, s.API.Cache(), s.API.Shared.Challenge, id)
	if err != nil {
		return err
	}
	courseID, err := s.courseOf(ctx, ch.LessonID)
	if err != nil {
		return err
	}
	if err := authorizeCourse(ctx, s.API, courseID); err != nil {
		return err
	}
	_, err = qc.Mutate(ctx, s.API.Cache(), s.API.Teacher.DeleteChallenge, id)
	return err
}

func redact(ch model.Challenge) model.Challenge {
	ch.Answer = ""
	if ch.Options != nil {
		opts := make([]model.ChallengeOption, len(ch.Options))
		for i, o := range ch.Options {
			o.Correct = false
			opts[i] = o
		}
		ch.Options = opts
	}
	return ch
}
