package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/model"
	qc "github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/proenglish/go_proenglish/internal/validation"
)

const maxLeaderboardSize = 100

// PracticeController serves the practice lab to the signed-in student.
type PracticeController struct {
	api             *apiclient.API
	validator       *validation.Validator
	leaderboardSize int
}

func NewPracticeController(api *apiclient.API, v *validation.Validator, leaderboardSize int) *PracticeController {
	return &PracticeController{api: api, validator: v, leaderboardSize: leaderboardSize}
}

func (pc *PracticeController) Progress(c *gin.Context) {
	p, err := qc.Query(c.Request.Context(), pc.api.Cache(), pc.api.Student.Progress, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ConsumeHeart spends a heart. Open progress subscriptions see the decrement
// before the backend answers.
func (pc *PracticeController) ConsumeHeart(c *gin.Context) {
	pc.heartMutation(c, pc.api.Student.ConsumeHeart)
}

func (pc *PracticeController) RefillHearts(c *gin.Context) {
	pc.heartMutation(c, pc.api.Student.RefillHearts)
}

func (pc *PracticeController) heartMutation(c *gin.Context, def *qc.MutationDef[apiclient.HeartRequest, model.StudentProgress]) {
	p, err := qc.Mutate(c.Request.Context(), pc.api.Cache(), def, apiclient.HeartRequest{UserID: currentUser(c).ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (pc *PracticeController) SubmitAnswer(c *gin.Context) {
	var req model.AnswerSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if err := pc.validator.Struct(req); err != nil {
		respondError(c, err)
		return
	}
	req.UserID = currentUser(c).ID
	res, err := qc.Mutate(c.Request.Context(), pc.api.Cache(), pc.api.Student.SubmitAnswer, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PracticeController) SelectCourse(c *gin.Context) {
	var req apiclient.SelectCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if err := pc.validator.Struct(req); err != nil {
		respondError(c, err)
		return
	}
	req.UserID = currentUser(c).ID
	p, err := qc.Mutate(c.Request.Context(), pc.api.Cache(), pc.api.Student.SelectCourse, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Leaderboard returns the top ?limit= students (default from configuration).
func (pc *PracticeController) Leaderboard(c *gin.Context) {
	limit := pc.leaderboardSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboardSize {
			respondError(c, validation.NewError(map[string]string{"limit": "must be between 1 and " + strconv.Itoa(maxLeaderboardSize)}))
			return
		}
		limit = n
	}
	board, err := qc.Query(c.Request.Context(), pc.api.Cache(), pc.api.Student.Leaderboard, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (pc *PracticeController) Achievements(c *gin.Context) {
	achs, err := qc.Query(c.Request.Context(), pc.api.Cache(), pc.api.Student.Achievements, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, achs)
}

// ProgressEvent is one server-sent "progress" event.
type ProgressEvent struct {
	Progress   *model.StudentProgress `json:"progress,omitempty"`
	Status     string                 `json:"status"`
	IsFetching bool                   `json:"isFetching"`
	Error      string                 `json:"error,omitempty"`
}

func progressEvent(res qc.Result[model.StudentProgress]) ProgressEvent {
	ev := ProgressEvent{Status: res.Status.String(), IsFetching: res.IsFetching}
	if res.HasData {
		p := res.Data
		ev.Progress = &p
	}
	if res.Error != nil {
		ev.Error = res.Error.Error()
	}
	return ev
}

// WatchProgress streams the student's progress as server-sent events. The
// subscription keeps the cache entry alive, so optimistic heart updates and
// refetches after mutations reach the client as they happen.
func (pc *PracticeController) WatchProgress(c *gin.Context) {
	sub, err := qc.Subscribe(pc.api.Cache(), pc.api.Student.Progress, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("progress", progressEvent(sub.Current()))
	c.Writer.Flush()

	updates := sub.Updates()
	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case res, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("progress", progressEvent(res))
			return true
		}
	})
}
