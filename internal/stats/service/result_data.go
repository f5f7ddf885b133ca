package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"ojstats/internal/common/cache"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
	xerrors "ojstats/pkg/errors"
)

// GlobalResultDataKey holds the cached global result distribution. The key is
// shared with the delta path in ApplyDelta.
const GlobalResultDataKey = "global_submission_result_data"

// GetResultData returns the categorized result distribution for the given
// scope. The global scope is served through the cache; filtered scopes are too
// varied to be worth caching and are computed directly.
func (s *StatsService) GetResultData(ctx context.Context, filter repository.ScopeFilter) (model.ResultData, error) {
	if !filter.IsGlobal() {
		return s.computeResultData(ctx, filter)
	}

	return cache.GetWithCached(ctx, s.cache, GlobalResultDataKey,
		cache.JitterTTL(s.resultDataTTL), s.resultDataTTL,
		func(model.ResultData) bool { return false },
		marshalResultData, unmarshalResultData,
		func(ctx context.Context) (model.ResultData, error) {
			return s.computeResultData(ctx, repository.ScopeFilter{})
		})
}

func (s *StatsService) computeResultData(ctx context.Context, filter repository.ScopeFilter) (model.ResultData, error) {
	counts, err := s.store.ResultCounts(ctx, filter)
	if err != nil {
		return model.ResultData{}, xerrors.Wrap(err, xerrors.StatsUnavailable)
	}

	data := model.NewResultData()
	index := make(map[string]int, len(data.Categories))
	for i, category := range data.Categories {
		index[category.Code] = i
	}
	for result, count := range counts {
		data.Total += count
		if code, ok := model.CategoryOf(result); ok {
			data.Categories[index[code]].Count += count
		}
	}
	return data, nil
}

// ApplyDelta adjusts the cached global distribution after one result's count
// changed, then notifies subscribers. An unknown result code is ignored
// entirely. When no aggregate is materialized there is nothing to adjust and
// nothing to announce; the next full read recomputes from the store.
func (s *StatsService) ApplyDelta(ctx context.Context, result model.ResultCode, delta int64) error {
	code, ok := model.CategoryOf(result)
	if !ok {
		s.logger.Warn("ignoring delta for unknown result code",
			zap.String("result", string(result)),
			zap.Int64("delta", delta))
		return nil
	}
	if delta == 0 {
		return nil
	}

	cached, err := s.cache.Get(ctx, GlobalResultDataKey)
	if err != nil || cached == "" || cached == cache.NullCacheValue {
		return nil
	}
	data, err := unmarshalResultData(cached)
	if err != nil {
		return nil
	}

	applyCategoryDelta(&data, code, delta)
	if err := s.cache.Set(ctx, GlobalResultDataKey, marshalResultData(data), s.resultDataTTL); err != nil {
		s.logger.Warn("failed to write adjusted result data, dropping aggregate",
			zap.Error(err))
		_ = s.cache.Del(ctx, GlobalResultDataKey)
	}

	if err := s.publisher.PublishGlobalStatsDelta(ctx, code, delta); err != nil {
		return xerrors.Wrap(err, xerrors.PublishFailed)
	}
	return nil
}

// applyCategoryDelta moves one category's count, clamping at zero so a late
// or duplicate decrement cannot drive the aggregate negative.
func applyCategoryDelta(data *model.ResultData, code string, delta int64) {
	for i := range data.Categories {
		if data.Categories[i].Code != code {
			continue
		}
		next := data.Categories[i].Count + delta
		if next < 0 {
			next = 0
		}
		applied := next - data.Categories[i].Count
		data.Categories[i].Count = next
		data.Total += applied
		if data.Total < 0 {
			data.Total = 0
		}
		return
	}
}

func marshalResultData(data model.ResultData) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}

func unmarshalResultData(value string) (model.ResultData, error) {
	var data model.ResultData
	if err := json.Unmarshal([]byte(value), &data); err != nil {
		return model.ResultData{}, err
	}
	return data, nil
}
