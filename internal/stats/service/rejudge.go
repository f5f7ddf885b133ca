package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"ojstats/internal/stats/event"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
	xerrors "ojstats/pkg/errors"
)

// DefaultRejudgeBatchLimit caps how many submissions a caller without the
// bulk capability may rejudge or rescore at once.
const DefaultRejudgeBatchLimit = 10

// RejudgeServiceConfig carries the dependencies for the batch orchestrator.
type RejudgeServiceConfig struct {
	Submissions repository.SubmissionStore
	Problems    repository.ProblemStore
	IDSets      *repository.IDSetCache
	Publisher   *event.Publisher
	Logger      *zap.Logger
	BatchLimit  int
}

// Validate checks required dependencies.
func (c *RejudgeServiceConfig) Validate() error {
	if c.Submissions == nil {
		return errors.New("submission store is required")
	}
	if c.Problems == nil {
		return errors.New("problem store is required")
	}
	if c.IDSets == nil {
		return errors.New("id-set cache is required")
	}
	if c.Publisher == nil {
		return errors.New("publisher is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// RejudgeService runs authorized batch rejudge and rescore operations.
// Authorization is checked before any side effect; a rejected batch leaves
// the store, the cache and the queue untouched.
type RejudgeService struct {
	submissions repository.SubmissionStore
	problems    repository.ProblemStore
	idSets      *repository.IDSetCache
	publisher   *event.Publisher
	logger      *zap.Logger
	batchLimit  int
}

// NewRejudgeService creates a RejudgeService from validated config.
func NewRejudgeService(config RejudgeServiceConfig) (*RejudgeService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultRejudgeBatchLimit
	}
	return &RejudgeService{
		submissions: config.Submissions,
		problems:    config.Problems,
		idSets:      config.IDSets,
		publisher:   config.Publisher,
		logger:      config.Logger,
		batchLimit:  config.BatchLimit,
	}, nil
}

// RejudgeResult reports what a rejudge batch did.
type RejudgeResult struct {
	Requested int `json:"requested"`
	Enqueued  int `json:"enqueued"`
}

// RescoreResult reports what a rescore batch did.
type RescoreResult struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// Rejudge asks the judge fleet to re-run the given submissions. Without the
// edit-all capability the batch is narrowed to submissions on problems the
// caller authors; ids outside that set are silently dropped, as are ids that
// do not exist.
func (s *RejudgeService) Rejudge(ctx context.Context, caller model.Caller, ids []int64) (*RejudgeResult, error) {
	if err := s.authorize(caller, len(ids)); err != nil {
		return nil, err
	}

	subs, err := s.fetchBatch(ctx, caller, ids)
	if err != nil {
		return nil, err
	}

	result := &RejudgeResult{Requested: len(ids), Enqueued: len(subs)}
	if len(subs) == 0 {
		return result, nil
	}

	now := time.Now()
	requests := make([]event.RejudgeRequested, 0, len(subs))
	for _, sub := range subs {
		requests = append(requests, event.RejudgeRequested{
			SubmissionID: sub.ID,
			ProblemID:    sub.ProblemID,
			RequestedBy:  caller.ProfileID,
			RequestedAt:  now,
		})
	}
	if err := s.publisher.PublishRejudgeRequested(ctx, requests); err != nil {
		return nil, xerrors.Wrap(err, xerrors.PublishFailed)
	}

	s.logger.Info("rejudge batch enqueued",
		zap.Int64("profile_id", caller.ProfileID),
		zap.Int("requested", result.Requested),
		zap.Int("enqueued", result.Enqueued))
	return result, nil
}

// Rescore recomputes points for the given submissions from their stored case
// results, in ascending id order. A submission that fails to update is
// logged and skipped; the rest of the batch proceeds. Identity caches touched
// by the batch are invalidated once at the end.
func (s *RejudgeService) Rescore(ctx context.Context, caller model.Caller, ids []int64) (*RescoreResult, error) {
	if err := s.authorize(caller, len(ids)); err != nil {
		return nil, err
	}

	subs, err := s.fetchBatch(ctx, caller, ids)
	if err != nil {
		return nil, err
	}

	result := &RescoreResult{Requested: len(ids)}
	if len(subs) == 0 {
		return result, nil
	}

	problemIDs := make([]int64, 0, len(subs))
	seen := make(map[int64]struct{}, len(subs))
	for _, sub := range subs {
		if _, ok := seen[sub.ProblemID]; !ok {
			seen[sub.ProblemID] = struct{}{}
			problemIDs = append(problemIDs, sub.ProblemID)
		}
	}
	problems, err := s.problems.GetByIDs(ctx, problemIDs)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.DatabaseError)
	}

	owners := make(map[int64]struct{})
	participations := make(map[int64]struct{})
	for _, sub := range subs {
		problem, ok := problems[sub.ProblemID]
		if !ok {
			s.logger.Warn("rescore skipping submission with missing problem",
				zap.Int64("submission_id", sub.ID),
				zap.Int64("problem_id", sub.ProblemID))
			result.Skipped++
			continue
		}

		points := recomputePoints(sub, problem)
		if err := s.submissions.UpdatePoints(ctx, sub.ID, points); err != nil {
			s.logger.Warn("rescore failed for submission",
				zap.Int64("submission_id", sub.ID),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Updated++
		owners[sub.UserID] = struct{}{}
		if sub.InContest() {
			participations[sub.ParticipationID] = struct{}{}
		}
	}

	for profileID := range owners {
		if err := s.idSets.InvalidateProfile(ctx, profileID); err != nil {
			s.logger.Warn("failed to invalidate profile cache",
				zap.Int64("profile_id", profileID), zap.Error(err))
		}
	}
	for participationID := range participations {
		if err := s.idSets.InvalidateParticipation(ctx, participationID); err != nil {
			s.logger.Warn("failed to invalidate participation cache",
				zap.Int64("participation_id", participationID), zap.Error(err))
		}
	}

	s.logger.Info("rescore batch finished",
		zap.Int64("profile_id", caller.ProfileID),
		zap.Int("requested", result.Requested),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *RejudgeService) authorize(caller model.Caller, batchSize int) error {
	if batchSize == 0 {
		return xerrors.New(xerrors.RejudgeBatchEmpty)
	}
	if !caller.Has(model.CapRejudge) || !caller.Has(model.CapEditOwnProblem) {
		return xerrors.New(xerrors.PermissionDenied).
			WithMessage("rejudge requires the rejudge and edit-own-problem capabilities")
	}
	if batchSize > s.batchLimit && !caller.Has(model.CapRejudgeLot) {
		return xerrors.Newf(xerrors.InsufficientPermission,
			"batches over %d submissions require the rejudge-lot capability", s.batchLimit)
	}
	return nil
}

// fetchBatch loads the batch in ascending id order and, unless the caller may
// edit all problems, narrows it to the caller's authored problems.
func (s *RejudgeService) fetchBatch(ctx context.Context, caller model.Caller, ids []int64) ([]model.Submission, error) {
	subs, err := s.submissions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.DatabaseError)
	}
	if caller.Has(model.CapEditAllProblem) {
		return subs, nil
	}

	authored, err := s.problems.AuthoredProblemIDs(ctx, caller.ProfileID)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.DatabaseError)
	}
	filtered := subs[:0]
	for _, sub := range subs {
		if _, ok := authored[sub.ProblemID]; ok {
			filtered = append(filtered, sub)
		}
	}
	return filtered, nil
}

// recomputePoints derives a submission's score from its case results. For
// problems without partial credit anything short of full marks scores zero.
func recomputePoints(sub model.Submission, problem model.Problem) float64 {
	var points float64
	if sub.CaseTotal > 0 {
		points = round1(sub.CasePoints / sub.CaseTotal * problem.Points)
	}
	if !problem.Partial && points < problem.Points {
		points = 0
	}
	return points
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
