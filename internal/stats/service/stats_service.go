package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ojstats/internal/common/cache"
	"ojstats/internal/stats/event"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
)

// Ranking defaults, applied when the config leaves them zero.
const (
	DefaultHotWindow    = 24 * time.Hour
	DefaultHotLimit     = 7
	DefaultHotMinPoints = 3
	DefaultHotMaxPoints = 25

	DefaultResultDataTTL  = 30 * time.Minute
	DefaultHotProblemsTTL = 15 * time.Minute
)

// StatsServiceConfig carries the dependencies and tuning knobs for the
// statistics service.
type StatsServiceConfig struct {
	Store     repository.SubmissionStore
	IDSets    *repository.IDSetCache
	Cache     cache.Cache
	Publisher *event.Publisher
	Logger    *zap.Logger

	ResultDataTTL  time.Duration
	HotProblemsTTL time.Duration
	HotWindow      time.Duration
	HotLimit       int
	HotMinPoints   float64
	HotMaxPoints   float64
}

// Validate checks required dependencies.
func (c *StatsServiceConfig) Validate() error {
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.IDSets == nil {
		return errors.New("id-set cache is required")
	}
	if c.Cache == nil {
		return errors.New("cache is required")
	}
	if c.Publisher == nil {
		return errors.New("publisher is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// StatsService serves the read side: per-identity problem sets, result
// distributions and the hot-problems ranking.
type StatsService struct {
	store     repository.SubmissionStore
	idSets    *repository.IDSetCache
	cache     cache.Cache
	publisher *event.Publisher
	logger    *zap.Logger

	resultDataTTL  time.Duration
	hotProblemsTTL time.Duration
	hotWindow      time.Duration
	hotLimit       int
	hotMinPoints   float64
	hotMaxPoints   float64
}

// NewStatsService creates a StatsService from validated config.
func NewStatsService(config StatsServiceConfig) (*StatsService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ResultDataTTL <= 0 {
		config.ResultDataTTL = DefaultResultDataTTL
	}
	if config.HotProblemsTTL <= 0 {
		config.HotProblemsTTL = DefaultHotProblemsTTL
	}
	if config.HotWindow <= 0 {
		config.HotWindow = DefaultHotWindow
	}
	if config.HotLimit <= 0 {
		config.HotLimit = DefaultHotLimit
	}
	if config.HotMinPoints <= 0 {
		config.HotMinPoints = DefaultHotMinPoints
	}
	if config.HotMaxPoints <= 0 {
		config.HotMaxPoints = DefaultHotMaxPoints
	}
	return &StatsService{
		store:          config.Store,
		idSets:         config.IDSets,
		cache:          config.Cache,
		publisher:      config.Publisher,
		logger:         config.Logger,
		resultDataTTL:  config.ResultDataTTL,
		hotProblemsTTL: config.HotProblemsTTL,
		hotWindow:      config.HotWindow,
		hotLimit:       config.HotLimit,
		hotMinPoints:   config.HotMinPoints,
		hotMaxPoints:   config.HotMaxPoints,
	}, nil
}

// UserCompletedIDs returns the problem ids a profile fully solved.
func (s *StatsService) UserCompletedIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	return s.idSets.UserCompletedIDs(ctx, profileID)
}

// UserAttemptedProblems returns a profile's partially solved problems.
func (s *StatsService) UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error) {
	return s.idSets.UserAttemptedProblems(ctx, profileID)
}

// ContestCompletedIDs returns the problem ids fully solved inside a
// participation.
func (s *StatsService) ContestCompletedIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error) {
	return s.idSets.ContestCompletedIDs(ctx, participationID)
}

// ContestAttemptedProblems returns a participation's partially solved
// problems.
func (s *StatsService) ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error) {
	return s.idSets.ContestAttemptedProblems(ctx, participationID)
}
