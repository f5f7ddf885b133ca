package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ojstats/internal/common/mq"
	"ojstats/internal/stats/model"
	"ojstats/internal/stats/repository"
)

// fakeStore is an in-memory SubmissionStore with call counters.
type fakeStore struct {
	mu sync.Mutex

	submissions map[int64]model.Submission
	counts      map[model.ResultCode]int64
	hotStats    []repository.ProblemWindowStats

	failUpdate map[int64]bool

	resultCountCalls int
	hotStatsCalls    int
	updatedPoints    map[int64]float64
	lastFilter       repository.ScopeFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		submissions:   make(map[int64]model.Submission),
		counts:        make(map[model.ResultCode]int64),
		failUpdate:    make(map[int64]bool),
		updatedPoints: make(map[int64]float64),
	}
}

func (s *fakeStore) UserCompletedProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *fakeStore) ContestCompletedProblemIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *fakeStore) UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error) {
	return map[int64]model.AttemptedProblem{}, nil
}

func (s *fakeStore) ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error) {
	return map[int64]model.AttemptedProblem{}, nil
}

func (s *fakeStore) ResultCounts(ctx context.Context, filter repository.ScopeFilter) (map[model.ResultCode]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultCountCalls++
	s.lastFilter = filter
	counts := make(map[model.ResultCode]int64, len(s.counts))
	for code, count := range s.counts {
		counts[code] = count
	}
	return counts, nil
}

func (s *fakeStore) HotProblemWindowStats(ctx context.Context, since time.Time, minPoints, maxPoints float64) ([]repository.ProblemWindowStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hotStatsCalls++
	return s.hotStats, nil
}

func (s *fakeStore) GetByIDs(ctx context.Context, ids []int64) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []model.Submission
	for _, id := range ids {
		if sub, ok := s.submissions[id]; ok {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (s *fakeStore) UpdatePoints(ctx context.Context, id int64, points float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate[id] {
		return errors.New("update failed")
	}
	if _, ok := s.submissions[id]; !ok {
		return repository.ErrSubmissionNotFound
	}
	s.updatedPoints[id] = points
	return nil
}

// fakeProblems is an in-memory ProblemStore.
type fakeProblems struct {
	problems map[int64]model.Problem
	authored map[int64]map[int64]struct{} // profile id -> problem ids
}

func newFakeProblems() *fakeProblems {
	return &fakeProblems{
		problems: make(map[int64]model.Problem),
		authored: make(map[int64]map[int64]struct{}),
	}
}

func (p *fakeProblems) GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Problem, error) {
	found := make(map[int64]model.Problem)
	for _, id := range ids {
		if problem, ok := p.problems[id]; ok {
			found[id] = problem
		}
	}
	return found, nil
}

func (p *fakeProblems) AuthoredProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	authored := p.authored[profileID]
	if authored == nil {
		authored = map[int64]struct{}{}
	}
	return authored, nil
}

// fakeCache is an in-memory Cache with failure injection.
type fakeCache struct {
	mu sync.Mutex

	data    map[string]string
	deleted []string

	failGet bool
	failSet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", errors.New("cache unavailable")
	}
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache unavailable")
	}
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }
func (c *fakeCache) Close() error                   { return nil }

func (c *fakeCache) wasDeleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, deleted := range c.deleted {
		if deleted == key {
			return true
		}
	}
	return false
}

// fakeProducer records published messages.
type fakeProducer struct {
	mu sync.Mutex

	published map[string][]*mq.Message
	fail      bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{published: make(map[string][]*mq.Message)}
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published[topic] = append(p.published[topic], message)
	return nil
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *fakeProducer) Ping(ctx context.Context) error { return nil }
func (p *fakeProducer) Close() error                   { return nil }

func (p *fakeProducer) messages(topic string) []*mq.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[topic]
}
