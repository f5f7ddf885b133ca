package service_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"ojstats/internal/stats/event"
	"ojstats/internal/stats/repository"
	"ojstats/internal/stats/service"
)

func newTestStatsService(t *testing.T, store *fakeStore, cache *fakeCache, producer *fakeProducer) *service.StatsService {
	t.Helper()
	publisher, err := event.NewPublisher(producer)
	if err != nil {
		t.Fatalf("new publisher failed: %v", err)
	}
	svc, err := service.NewStatsService(service.StatsServiceConfig{
		Store:     store,
		IDSets:    repository.NewIDSetCache(store, cache, time.Hour),
		Cache:     cache,
		Publisher: publisher,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new stats service failed: %v", err)
	}
	return svc
}

func newTestRejudgeService(t *testing.T, store *fakeStore, problems *fakeProblems, cache *fakeCache, producer *fakeProducer, batchLimit int) *service.RejudgeService {
	t.Helper()
	publisher, err := event.NewPublisher(producer)
	if err != nil {
		t.Fatalf("new publisher failed: %v", err)
	}
	svc, err := service.NewRejudgeService(service.RejudgeServiceConfig{
		Submissions: store,
		Problems:    problems,
		IDSets:      repository.NewIDSetCache(store, cache, time.Hour),
		Publisher:   publisher,
		Logger:      zap.NewNop(),
		BatchLimit:  batchLimit,
	})
	if err != nil {
		t.Fatalf("new rejudge service failed: %v", err)
	}
	return svc
}
