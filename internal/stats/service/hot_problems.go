package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"ojstats/internal/common/cache"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
	xerrors "ojstats/pkg/errors"
)

const hotProblemsKey = "hot_problems:%d:%d"

// HotProblems returns the trending-problem ranking for the given trailing
// window, at most limit entries. Zero arguments use the configured defaults.
// The materialized ranking is cached per (window, limit) pair.
func (s *StatsService) HotProblems(ctx context.Context, window time.Duration, limit int) ([]model.HotProblem, error) {
	if window == 0 {
		window = s.hotWindow
	}
	if window < 0 {
		return nil, xerrors.New(xerrors.InvalidWindow)
	}
	if limit <= 0 {
		limit = s.hotLimit
	}

	key := fmt.Sprintf(hotProblemsKey, int64(window/time.Second), limit)
	ranked, err := cache.GetWithCached(ctx, s.cache, key,
		cache.JitterTTL(s.hotProblemsTTL), s.hotProblemsTTL,
		func([]model.HotProblem) bool { return false },
		marshalHotProblems, unmarshalHotProblems,
		func(ctx context.Context) ([]model.HotProblem, error) {
			return s.computeHotProblems(ctx, window, limit)
		})
	if err != nil {
		return nil, err
	}
	if ranked == nil {
		ranked = []model.HotProblem{}
	}
	return ranked, nil
}

func (s *StatsService) computeHotProblems(ctx context.Context, window time.Duration, limit int) ([]model.HotProblem, error) {
	since := time.Now().Add(-window)
	stats, err := s.store.HotProblemWindowStats(ctx, since, s.hotMinPoints, s.hotMaxPoints)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.StatsUnavailable)
	}
	if len(stats) == 0 {
		return []model.HotProblem{}, nil
	}

	var mx float64
	for _, st := range stats {
		if float64(st.UniqueUsers) > mx {
			mx = float64(st.UniqueUsers)
		}
	}

	// Problems far below the leader's engagement are noise, not trends.
	floor := math.Max(mx/3.0, 1)

	ranked := make([]model.HotProblem, 0, len(stats))
	for _, st := range stats {
		if float64(st.UniqueUsers) <= floor {
			continue
		}
		ranked = append(ranked, model.HotProblem{
			ProblemID: st.Problem.ID,
			Code:      st.Problem.Code,
			Name:      st.Problem.Name,
			Points:    st.Problem.Points,
			Score:     hotScore(st, mx),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProblemID < ranked[j].ProblemID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// hotScore blends a quality term (problem worth weighted by in-window accept
// ratio and historical accept rate) with an engagement term that grows
// exponentially with the problem's share of the window's most active user
// count. A problem with no counted submissions gets no quality term rather
// than a divide-by-zero.
func hotScore(st repository.ProblemWindowStats, mx float64) float64 {
	var quality float64
	if st.SubmissionVolume > 0 {
		acRatio := float64(st.ACVolume) / float64(st.SubmissionVolume)
		quality = 0.5 * st.Problem.Points * (0.4*acRatio + 0.6*st.Problem.ACRate)
	}
	engagement := 100 * math.Exp(float64(st.UniqueUsers)/mx)
	return quality + engagement
}

func marshalHotProblems(ranked []model.HotProblem) string {
	raw, err := json.Marshal(ranked)
	if err != nil {
		return ""
	}
	return string(raw)
}

func unmarshalHotProblems(value string) ([]model.HotProblem, error) {
	var ranked []model.HotProblem
	if err := json.Unmarshal([]byte(value), &ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}
