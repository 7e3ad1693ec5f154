// Package apiclient declares the platform's endpoints as typed query and
// mutation definitions over querycache, grouped by the role that uses them.
package apiclient

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/proenglish/go_proenglish/internal/querycache"
)

// Cache tag types.
const (
	TagCourse          = "Course"
	TagLesson          = "Lesson"
	TagChallenge       = "Challenge"
	TagStudentProgress = "StudentProgress"
	TagLeaderboard     = "Leaderboard"
	TagAchievement     = "Achievement"
	TagTransaction     = "Transaction"
	TagUser            = "User"
)

// tagTypes lists every tag type the slices provide.
var tagTypes = []string{
	TagCourse, TagLesson, TagChallenge, TagStudentProgress,
	TagLeaderboard, TagAchievement, TagTransaction, TagUser,
}

// API bundles every slice with the cache that serves them.
type API struct {
	cache *querycache.Client

	Shared  *SharedAPI
	Student *StudentAPI
	Teacher *TeacherAPI
	Admin   *AdminAPI
}

// New builds all slices over b.
func New(cache *querycache.Client, b backend.Backend, maxHearts int) *API {
	shared := NewSharedAPI(b)
	return &API{
		cache:   cache,
		Shared:  shared,
		Student: NewStudentAPI(b, maxHearts),
		Teacher: NewTeacherAPI(b, shared),
		Admin:   NewAdminAPI(b, shared),
	}
}

// Cache returns the client the definitions run on.
func (a *API) Cache() *querycache.Client { return a.cache }

// GetCourse reads a course through the cache.
func (a *API) GetCourse(ctx context.Context, id string) (model.Course, error) {
	return querycache.Query(ctx, a.cache, a.Shared.Course, id)
}

// RefillAllHearts refills every student and invalidates all cached progress.
// It makes *API a practice.Refiller.
func (a *API) RefillAllHearts(ctx context.Context) (int, error) {
	return querycache.Mutate(ctx, a.cache, a.Student.RefillAll, struct{}{})
}

// InvalidateAll refetches or marks stale every cached entry, for when the
// backend data was swapped underneath the cache.
func (a *API) InvalidateAll() int {
	tags := make([]querycache.Tag, len(tagTypes))
	for i, t := range tagTypes {
		tags[i] = querycache.TypeTag(t)
	}
	return a.cache.Invalidate(tags...)
}

func idTags[T any](typ string, items []T, id func(T) string) []querycache.Tag {
	tags := make([]querycache.Tag, 0, len(items)+1)
	tags = append(tags, querycache.TypeTag(typ))
	for _, it := range items {
		tags = append(tags, querycache.IDTag(typ, id(it)))
	}
	return tags
}
