package apiclient

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// TeacherBackend is the content management API.
type TeacherBackend interface {
	SaveCourse(ctx context.Context, c model.Course) (model.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	SaveLesson(ctx context.Context, l model.Lesson) (model.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
	SaveChallenge(ctx context.Context, ch model.Challenge) (model.Challenge, error)
	DeleteChallenge(ctx context.Context, id string) error
}

// TeacherAPI holds the content management mutations.
type TeacherAPI struct {
	SaveCourse      *qc.MutationDef[model.Course, model.Course]
	DeleteCourse    *qc.MutationDef[string, struct{}]
	SaveLesson      *qc.MutationDef[model.Lesson, model.Lesson]
	DeleteLesson    *qc.MutationDef[string, struct{}]
	SaveChallenge   *qc.MutationDef[model.Challenge, model.Challenge]
	DeleteChallenge *qc.MutationDef[string, struct{}]
}

func deleteDef(name string, del func(context.Context, string) error, tags func(id string) []qc.Tag) *qc.MutationDef[string, struct{}] {
	return &qc.MutationDef[string, struct{}]{
		Name: name,
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, del(ctx, id)
		},
		InvalidatesTags: func(_ struct{}, id string) []qc.Tag { return tags(id) },
	}
}

func NewTeacherAPI(b TeacherBackend, shared *SharedAPI) *TeacherAPI {
	return &TeacherAPI{
		SaveCourse: &qc.MutationDef[model.Course, model.Course]{
			Name: "saveCourse",
			Do:   b.SaveCourse,
			InvalidatesTags: func(saved model.Course, _ model.Course) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagCourse, saved.ID)}
			},
			Optimistic: func(p *qc.Patcher, c model.Course) {
				if c.ID == "" {
					return
				}
				qc.Patch(p, shared.Course, c.ID, func(draft *model.Course) {
					*draft = c
				})
			},
		},
		// a course takes its lessons and their challenges with it, and is
		// cleared as the active course of every student
		DeleteCourse: deleteDef("deleteCourse", b.DeleteCourse, func(id string) []qc.Tag {
			return []qc.Tag{
				qc.IDTag(TagCourse, id), qc.TypeTag(TagLesson), qc.TypeTag(TagChallenge),
				qc.TypeTag(TagStudentProgress),
			}
		}),
		SaveLesson: &qc.MutationDef[model.Lesson, model.Lesson]{
			Name: "saveLesson",
			Do:   b.SaveLesson,
			InvalidatesTags: func(saved model.Lesson, _ model.Lesson) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagLesson, saved.ID)}
			},
		},
		DeleteLesson: deleteDef("deleteLesson", b.DeleteLesson, func(id string) []qc.Tag {
			return []qc.Tag{qc.IDTag(TagLesson, id), qc.TypeTag(TagChallenge)}
		}),
		SaveChallenge: &qc.MutationDef[model.Challenge, model.Challenge]{
			Name: "saveChallenge",
			Do:   b.SaveChallenge,
			InvalidatesTags: func(saved model.Challenge, _ model.Challenge) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagChallenge, saved.ID)}
			},
		},
		DeleteChallenge: deleteDef("deleteChallenge", b.DeleteChallenge, func(id string) []qc.Tag {
			return []qc.Tag{qc.IDTag(TagChallenge, id)}
		}),
	}
}
