package controller

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
	"ojstats/internal/stats/service"
	xerrors "ojstats/pkg/errors"
	"ojstats/pkg/utils/response"
)

// StatsController handles the statistics HTTP endpoints.
type StatsController struct {
	statsService   *service.StatsService
	rejudgeService *service.RejudgeService
}

// NewStatsController creates a new StatsController.
func NewStatsController(statsService *service.StatsService, rejudgeService *service.RejudgeService) *StatsController {
	return &StatsController{
		statsService:   statsService,
		rejudgeService: rejudgeService,
	}
}

// RegisterRoutes wires the endpoints onto the given group. The batch
// endpoints sit behind the auth middleware; the read endpoints are public.
func (h *StatsController) RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc) {
	api.GET("/users/:id/completed", h.UserCompleted)
	api.GET("/users/:id/attempted", h.UserAttempted)
	api.GET("/participations/:id/completed", h.ParticipationCompleted)
	api.GET("/participations/:id/attempted", h.ParticipationAttempted)
	api.GET("/stats/results", h.ResultData)
	api.GET("/problems/hot", h.HotProblems)

	batch := api.Group("/submissions", auth)
	batch.POST("/rejudge", h.Rejudge)
	batch.POST("/rescore", h.Rescore)
}

// UserCompleted returns the problem ids a profile fully solved.
func (h *StatsController) UserCompleted(c *gin.Context) {
	profileID, ok := pathID(c)
	if !ok {
		return
	}
	ids, err := h.statsService.UserCompletedIDs(c.Request.Context(), profileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, IDSetResponse{ProblemIDs: sortedIDs(ids)})
}

// UserAttempted returns a profile's partially solved problems.
func (h *StatsController) UserAttempted(c *gin.Context) {
	profileID, ok := pathID(c)
	if !ok {
		return
	}
	attempted, err := h.statsService.UserAttemptedProblems(c.Request.Context(), profileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, AttemptedResponse{Problems: attempted})
}

// ParticipationCompleted returns the problem ids fully solved inside a
// contest participation.
func (h *StatsController) ParticipationCompleted(c *gin.Context) {
	participationID, ok := pathID(c)
	if !ok {
		return
	}
	ids, err := h.statsService.ContestCompletedIDs(c.Request.Context(), participationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, IDSetResponse{ProblemIDs: sortedIDs(ids)})
}

// ParticipationAttempted returns a participation's partially solved problems.
func (h *StatsController) ParticipationAttempted(c *gin.Context) {
	participationID, ok := pathID(c)
	if !ok {
		return
	}
	attempted, err := h.statsService.ContestAttemptedProblems(c.Request.Context(), participationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, AttemptedResponse{Problems: attempted})
}

// ResultData returns the categorized result distribution for the requested
// scope. With no query parameters it serves the cached global aggregate.
func (h *StatsController) ResultData(c *gin.Context) {
	filter, ok := scopeFilterFromQuery(c)
	if !ok {
		return
	}

	data, err := h.statsService.GetResultData(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, data)
}

// scopeFilterFromQuery maps the result-data query parameters onto a
// ScopeFilter: user_id, problem_id, participation_id, result_in
// (comma-separated raw codes), date_after and date_before (RFC 3339).
// On a bad parameter it writes the error response and reports false.
func scopeFilterFromQuery(c *gin.Context) (repository.ScopeFilter, bool) {
	var filter repository.ScopeFilter
	var ok bool
	if filter.UserID, ok = queryID(c, "user_id"); !ok {
		return filter, false
	}
	if filter.ProblemID, ok = queryID(c, "problem_id"); !ok {
		return filter, false
	}
	if filter.ParticipationID, ok = queryID(c, "participation_id"); !ok {
		return filter, false
	}

	if raw := c.Query("result_in"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			result := model.ResultCode(strings.TrimSpace(part))
			if _, known := model.CategoryOf(result); !known {
				response.ErrorWithCode(c, xerrors.InvalidResultCode, "Unknown result code "+string(result))
				return filter, false
			}
			filter.ResultIn = append(filter.ResultIn, result)
		}
	}

	if filter.DateAfter, ok = queryTime(c, "date_after"); !ok {
		return filter, false
	}
	if filter.DateBefore, ok = queryTime(c, "date_before"); !ok {
		return filter, false
	}
	return filter, true
}

// HotProblems returns the trending-problem ranking.
func (h *StatsController) HotProblems(c *gin.Context) {
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "Invalid window")
			return
		}
		window = parsed
	}
	var limit int
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	ranked, err := h.statsService.HotProblems(c.Request.Context(), window, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, HotProblemsResponse{Problems: ranked})
}

// Rejudge enqueues a batch of submissions for the judge fleet.
func (h *StatsController) Rejudge(c *gin.Context) {
	caller, req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	result, err := h.rejudgeService.Rejudge(c.Request.Context(), caller, req.SubmissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Rescore recomputes points for a batch of submissions.
func (h *StatsController) Rescore(c *gin.Context) {
	caller, req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	result, err := h.rejudgeService.Rescore(c.Request.Context(), caller, req.SubmissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *StatsController) bindBatch(c *gin.Context) (model.Caller, BatchRequest, bool) {
	caller, ok := CallerFrom(c)
	if !ok {
		response.Unauthorized(c, "")
		return model.Caller{}, BatchRequest{}, false
	}
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return model.Caller{}, BatchRequest{}, false
	}
	return caller, req, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.BadRequest(c, "Invalid "+name)
		return nil, false
	}
	return &ts, true
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IDSetResponse lists problem ids in ascending order.
type IDSetResponse struct {
	ProblemIDs []int64 `json:"problem_ids"`
}

// AttemptedResponse maps problem id to best achieved points.
type AttemptedResponse struct {
	Problems map[int64]model.AttemptedProblem `json:"problems"`
}

// HotProblemsResponse carries the materialized ranking.
type HotProblemsResponse struct {
	Problems []model.HotProblem `json:"problems"`
}

// BatchRequest defines the rejudge and rescore payload.
type BatchRequest struct {
	SubmissionIDs []int64 `json:"submission_ids" binding:"required"`
}
