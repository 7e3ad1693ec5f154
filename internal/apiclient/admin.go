package apiclient

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
)

// AdminBackend is the administration API.
type AdminBackend interface {
	ListTransactions(ctx context.Context, q backend.TransactionQuery) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	ListUsers(ctx context.Context, role string) ([]model.UserProfile, error)
	PublishCourse(ctx context.Context, id string, published bool) (model.Course, error)
}

// PublishRequest toggles a course's visibility to students.
type PublishRequest struct {
	CourseID  string `json:"courseId"`
	Published bool   `json:"published"`
}

// AdminAPI holds the admin endpoints.
type AdminAPI struct {
	Transactions *qc.QueryDef[backend.TransactionQuery, []model.Transaction]
	Users        *qc.QueryDef[string, []model.UserProfile]

	PublishCourse     *qc.MutationDef[PublishRequest, model.Course]
	CreateTransaction *qc.MutationDef[model.Transaction, model.Transaction]
}

func NewAdminAPI(b AdminBackend, shared *SharedAPI) *AdminAPI {
	return &AdminAPI{
		Transactions: &qc.QueryDef[backend.TransactionQuery, []model.Transaction]{
			Name:  "transactions",
			Fetch: b.ListTransactions,
			ProvidesTags: func(txs []model.Transaction, _ backend.TransactionQuery) []qc.Tag {
				return idTags(TagTransaction, txs, func(tx model.Transaction) string { return tx.ID })
			},
		},
		Users: &qc.QueryDef[string, []model.UserProfile]{
			Name:  "users",
			Fetch: b.ListUsers,
			ProvidesTags: func(users []model.UserProfile, _ string) []qc.Tag {
				return idTags(TagUser, users, func(u model.UserProfile) string { return u.ID })
			},
		},
		PublishCourse: &qc.MutationDef[PublishRequest, model.Course]{
			Name: "publishCourse",
			Do: func(ctx context.Context, r PublishRequest) (model.Course, error) {
				return b.PublishCourse(ctx, r.CourseID, r.Published)
			},
			InvalidatesTags: func(_ model.Course, r PublishRequest) []qc.Tag {
				return []qc.Tag{qc.IDTag(TagCourse, r.CourseID)}
			},
			Optimistic: func(p *qc.Patcher, r PublishRequest) {
				qc.Patch(p, shared.Course, r.CourseID, func(draft *model.Course) {
					draft.Published = r.Published
				})
			},
		},
		CreateTransaction: &qc.MutationDef[model.Transaction, model.Transaction]{
			Name: "createTransaction",
			Do:   b.CreateTransaction,
			InvalidatesTags: func(model.Transaction, model.Transaction) []qc.Tag {
				return []qc.Tag{qc.TypeTag(TagTransaction)}
			},
		},
	}
}

// TransactionRecorder records purchases through the cache so open
// transaction listings refresh.
type TransactionRecorder struct {
	api *API
}

// Recorder returns a TransactionRecorder bound to a.
func (a *API) Recorder() TransactionRecorder { return TransactionRecorder{api: a} }

func (r TransactionRecorder) CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	return qc.Mutate(ctx, r.api.cache, r.api.Admin.CreateTransaction, tx)
}
