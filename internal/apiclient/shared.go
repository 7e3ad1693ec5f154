package apiclient

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// SharedBackend is what every role reads.
type SharedBackend interface {
	ListCourses(ctx context.Context, q backend.CourseQuery) ([]model.Course, error)
	GetCourse(ctx context.Context, id string) (model.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error)
	GetLesson(ctx context.Context, id string) (model.Lesson, error)
	ListChallenges(ctx context.Context, lessonID string) ([]model.Challenge, error)
	GetChallenge(ctx context.Context, id string) (model.Challenge, error)
	GetUser(ctx context.Context, id string) (model.UserProfile, error)
}

// SharedAPI holds the read endpoints common to all roles.
type SharedAPI struct {
	Courses    *qc.QueryDef[backend.CourseQuery, []model.Course]
	Course     *qc.QueryDef[string, model.Course]
	Lessons    *qc.QueryDef[string, []model.Lesson]
	Lesson     *qc.QueryDef[string, model.Lesson]
	Challenges *qc.QueryDef[string, []model.Challenge]
	Challenge  *qc.QueryDef[string, model.Challenge]
	Me         *qc.QueryDef[string, model.UserProfile]
}

func NewSharedAPI(b SharedBackend) *SharedAPI {
	return &SharedAPI{
		Courses: &qc.QueryDef[backend.CourseQuery, []model.Course]{
			Name:  "courses",
			Fetch: b.ListCourses,
			ProvidesTags: func(courses []model.Course, _ backend.CourseQuery) []qc.Tag {
				return idTags(TagCourse, courses, func(c model.Course) string { return c.ID })
			},
		},
		Course: &qc.QueryDef[string, model.Course]{
			Name:  "course",
			Fetch: b.GetCourse,
			ProvidesTags: func(_ model.Course, id string) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagCourse, id)}
			},
		},
		Lessons: &qc.QueryDef[string, []model.Lesson]{
			Name:  "lessons",
			Fetch: b.ListLessons,
			ProvidesTags: func(lessons []model.Lesson, _ string) []qc.Tag {
				return idTags(TagLesson, lessons, func(l model.Lesson) string { return l.ID })
			},
		},
		Lesson: &qc.QueryDef[string, model.Lesson]{
			Name:  "lesson",
			Fetch: b.GetLesson,
			ProvidesTags: func(_ model.Lesson, id string) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagLesson, id)}
			},
		},
		Challenges: &qc.QueryDef[string, []model.Challenge]{
			Name:  "challenges",
			Fetch: b.ListChallenges,
			ProvidesTags: func(chs []model.Challenge, _ string) []qc.Tag {
				return idTags(TagChallenge, chs, func(ch model.Challenge) string { return ch.ID })
			},
		},
		Challenge: &qc.QueryDef[string, model.Challenge]{
			Name:  "challenge",
			Fetch: b.GetChallenge,
			ProvidesTags: func(_ model.Challenge, id string) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagChallenge, id)}
			},
		},
		Me: &qc.QueryDef[string, model.UserProfile]{
			Name:  "me",
			Fetch: b.GetUser,
			ProvidesTags: func(_ model.UserProfile, id string) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagUser, id)}
			},
		},
	}
}
