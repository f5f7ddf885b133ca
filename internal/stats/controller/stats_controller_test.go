package controller_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ojstats/internal/common/mq"
	"ojstats/internal/stats/controller"
	"ojstats/internal/stats/event"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
	"ojstats/internal/stats/service"
)

// scopeStore records the filter that reaches the repository layer.
type scopeStore struct {
	mu         sync.Mutex
	lastFilter repository.ScopeFilter
	calls      int
}

func (s *scopeStore) UserCompletedProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *scopeStore) ContestCompletedProblemIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *scopeStore) UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error) {
	return map[int64]model.AttemptedProblem{}, nil
}

func (s *scopeStore) ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error) {
	return map[int64]model.AttemptedProblem{}, nil
}

func (s *scopeStore) ResultCounts(ctx context.Context, filter repository.ScopeFilter) (map[model.ResultCode]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastFilter = filter
	return map[model.ResultCode]int64{}, nil
}

func (s *scopeStore) HotProblemWindowStats(ctx context.Context, since time.Time, minPoints, maxPoints float64) ([]repository.ProblemWindowStats, error) {
	return nil, nil
}

func (s *scopeStore) GetByIDs(ctx context.Context, ids []int64) ([]model.Submission, error) {
	return nil, nil
}

func (s *scopeStore) UpdatePoints(ctx context.Context, id int64, points float64) error {
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

type nopProducer struct{}

func (nopProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	return nil
}

func (nopProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	return nil
}

func (nopProducer) Ping(ctx context.Context) error { return nil }
func (nopProducer) Close() error                   { return nil }

func newStatsEngine(t *testing.T, store *scopeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	publisher, err := event.NewPublisher(nopProducer{})
	if err != nil {
		t.Fatalf("new publisher failed: %v", err)
	}
	cache := newMemCache()
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

	engine := gin.New()
	handler := controller.NewStatsController(svc, nil)
	handler.RegisterRoutes(engine.Group("/api/v1"), controller.AuthMiddleware(testSecret))
	return engine
}

func TestResultDataQueryMapsFullScopeFilter(t *testing.T) {
	store := &scopeStore{}
	engine := newStatsEngine(t, store)

	target := "/api/v1/stats/results?user_id=5&problem_id=7&participation_id=9" +
		"&result_in=AC,WA,MLE&date_after=2026-08-01T00:00:00Z&date_before=2026-08-28T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.calls != 1 {
		t.Fatalf("expected one store query, got %d", store.calls)
	}

	filter := store.lastFilter
	if filter.UserID != 5 || filter.ProblemID != 7 || filter.ParticipationID != 9 {
		t.Fatalf("unexpected id scope: %+v", filter)
	}
	want := []model.ResultCode{model.ResultAC, model.ResultWA, model.ResultMLE}
	if len(filter.ResultIn) != len(want) {
		t.Fatalf("expected %d result codes, got %v", len(want), filter.ResultIn)
	}
	for i, code := range want {
		if filter.ResultIn[i] != code {
			t.Fatalf("expected result code %s at index %d, got %s", code, i, filter.ResultIn[i])
		}
	}
	if filter.DateAfter == nil || !filter.DateAfter.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_after: %v", filter.DateAfter)
	}
	if filter.DateBefore == nil || !filter.DateBefore.Equal(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_before: %v", filter.DateBefore)
	}
}

func TestResultDataRejectsUnknownResultCode(t *testing.T) {
	store := &scopeStore{}
	engine := newStatsEngine(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/results?result_in=AC,XX", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.calls != 0 {
		t.Fatalf("expected no store query on a rejected filter")
	}
}

func TestResultDataRejectsMalformedDate(t *testing.T) {
	store := &scopeStore{}
	engine := newStatsEngine(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/results?user_id=5&date_after=yesterday", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.calls != 0 {
		t.Fatalf("expected no store query on a rejected filter")
	}
}
