package apiclient

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// StudentBackend is the practice lab API.
type StudentBackend interface {
	GetProgress(ctx context.Context, userID string) (model.StudentProgress, error)
	ConsumeHeart(ctx context.Context, userID string) (model.StudentProgress, error)
	RefillHearts(ctx context.Context, userID string) (model.StudentProgress, error)
	RefillAllHearts(ctx context.Context) (int, error)
	SubmitAnswer(ctx context.Context, answer model.AnswerSubmission) (model.AnswerResult, error)
	SelectCourse(ctx context.Context, userID, courseID string) (model.StudentProgress, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Achievements(ctx context.Context, userID string) ([]model.Achievement, error)
}

// HeartRequest targets one student's hearts.
type HeartRequest struct {
	UserID string `json:"userId"`
}

// SelectCourseRequest makes CourseID the student's active course.
type SelectCourseRequest struct {
	UserID   string `json:"userId"`
	CourseID string `json:"courseId" validate:"required"`
}

// StudentAPI holds the student endpoints.
type StudentAPI struct {
	Progress     *qc.QueryDef[string, model.StudentProgress]
	Leaderboard  *qc.QueryDef[int, []model.LeaderboardEntry]
	Achievements *qc.QueryDef[string, []model.Achievement]

	ConsumeHeart *qc.MutationDef[HeartRequest, model.StudentProgress]
	RefillHearts *qc.MutationDef[HeartRequest, model.StudentProgress]
	RefillAll    *qc.MutationDef[struct{}, int]
	SubmitAnswer *qc.MutationDef[model.AnswerSubmission, model.AnswerResult]
	SelectCourse *qc.MutationDef[SelectCourseRequest, model.StudentProgress]
}

func progressTag(userID string) qc.Tag { return qc.IDTag(TagStudentProgress, userID) }

// NewStudentAPI builds the student slice. Hearts are patched optimistically:
// consuming shows one heart less and refilling shows maxHearts until the
// server answers.
func NewStudentAPI(b StudentBackend, maxHearts int) *StudentAPI {
	s := &StudentAPI{
		Progress: &qc.QueryDef[string, model.StudentProgress]{
			Name:  "studentProgress",
			Fetch: b.GetProgress,
			ProvidesTags: func(_ model.StudentProgress, userID string) []qc.Tag {
				return []qc.Tag{progressTag(userID)}
			},
		},
		Leaderboard: &qc.QueryDef[int, []model.LeaderboardEntry]{
			Name:  "leaderboard",
			Fetch: b.Leaderboard,
			ProvidesTags: func([]model.LeaderboardEntry, int) []qc.Tag {
				return []qc.Tag{qc.TypeTag(TagLeaderboard)}
			},
		},
		Achievements: &qc.QueryDef[string, []model.Achievement]{
			Name:  "achievements",
			Fetch: b.Achievements,
			ProvidesTags: func(_ []model.Achievement, userID string) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagAchievement, userID)}
			},
		},
	}

	s.ConsumeHeart = &qc.MutationDef[HeartRequest, model.StudentProgress]{
		Name: "consumeHeart",
		Do: func(ctx context.Context, r HeartRequest) (model.StudentProgress, error) {
			return b.ConsumeHeart(ctx, r.UserID)
		},
		InvalidatesTags: func(_ model.StudentProgress, r HeartRequest) []qc.Tag {
			return []qc.Tag{progressTag(r.UserID)}
		},
		Optimistic: func(p *qc.Patcher, r HeartRequest) {
			qc.Patch(p, s.Progress, r.UserID, func(draft *model.StudentProgress) {
				if draft.Hearts > 0 {
					draft.Hearts--
				}
			})
		},
	}
	s.RefillHearts = &qc.MutationDef[HeartRequest, model.StudentProgress]{
		Name: "refillHearts",
		Do: func(ctx context.Context, r HeartRequest) (model.StudentProgress, error) {
			return b.RefillHearts(ctx, r.UserID)
		},
		InvalidatesTags: func(_ model.StudentProgress, r HeartRequest) []qc.Tag {
			return []qc.Tag{progressTag(r.UserID)}
		},
		Optimistic: func(p *qc.Patcher, r HeartRequest) {
			qc.Patch(p, s.Progress, r.UserID, func(draft *model.StudentProgress) {
				draft.Hearts = maxHearts
			})
		},
	}
	s.RefillAll = &qc.MutationDef[struct{}, int]{
		Name: "refillAllHearts",
		Do: func(ctx context.Context, _ struct{}) (int, error) {
			return b.RefillAllHearts(ctx)
		},
		InvalidatesTags: func(int, struct{}) []qc.Tag {
			return []qc.Tag{qc.TypeTag(TagStudentProgress)}
		},
	}
	s.SubmitAnswer = &qc.MutationDef[model.AnswerSubmission, model.AnswerResult]{
		Name: "submitAnswer",
		Do:   b.SubmitAnswer,
		InvalidatesTags: func(_ model.AnswerResult, a model.AnswerSubmission) []qc.Tag {
			return []qc.Tag{
				progressTag(a.UserID),
				qc.TypeTag(TagLeaderboard),
				qc.IDTag(TagAchievement, a.UserID),
			}
		},
	}
	s.SelectCourse = &qc.MutationDef[SelectCourseRequest, model.StudentProgress]{
		Name: "selectCourse",
		Do: func(ctx context.Context, r SelectCourseRequest) (model.StudentProgress, error) {
			return b.SelectCourse(ctx, r.UserID, r.CourseID)
		},
		InvalidatesTags: func(_ model.StudentProgress, r SelectCourseRequest) []qc.Tag {
			return []qc.Tag{progressTag(r.UserID)}
		},
		Optimistic: func(p *qc.Patcher, r SelectCourseRequest) {
			qc.Patch(p, s.Progress, r.UserID, func(draft *model.StudentProgress) {
				draft.ActiveCourseID = r.CourseID
			})
		},
	}
	return s
}
