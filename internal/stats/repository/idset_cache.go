package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"ojstats/internal/common/cache"
	"ojstats/internal/stats/model"
)

// Cache key patterns. The %d slot is a profile id for user keys and a
// participation id for contest keys. Any writer that changes a submission's
// outcome must invalidate the matching keys.
const (
	userCompleteKey     = "user_complete:%d"
	userAttemptedKey    = "user_attempted:%d"
	contestCompleteKey  = "contest_complete:%d"
	contestAttemptedKey = "contest_attempted:%d"
)

// DefaultIDSetTTL bounds staleness when an invalidation is lost.
const DefaultIDSetTTL = 24 * time.Hour

// compressThreshold is the serialized size above which a payload is stored
// zstd-compressed. Power users accumulate thousands of solved problem ids;
// small payloads are not worth the round-trip CPU.
const compressThreshold = 1024

const compressedPrefix = "zstd:"

// EncodeAll/DecodeAll on shared instances are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// IDSetCache serves per-identity completed and attempted problem sets through
// a cache-aside layer over the submission store. An empty set is a valid,
// cacheable answer. A failing cache backend degrades to direct store queries
// and is never surfaced to callers.
type IDSetCache struct {
	store SubmissionStore
	cache cache.Cache
	ttl   time.Duration
}

// NewIDSetCache creates the cache layer. A non-positive ttl falls back to
// DefaultIDSetTTL.
func NewIDSetCache(store SubmissionStore, c cache.Cache, ttl time.Duration) *IDSetCache {
	if ttl <= 0 {
		ttl = DefaultIDSetTTL
	}
	return &IDSetCache{store: store, cache: c, ttl: ttl}
}

// UserCompletedIDs returns the problem ids the profile solved for full points.
func (c *IDSetCache) UserCompletedIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	return c.idSet(ctx, fmt.Sprintf(userCompleteKey, profileID), func(ctx context.Context) (map[int64]struct{}, error) {
		return c.store.UserCompletedProblemIDs(ctx, profileID)
	})
}

// ContestCompletedIDs returns the problem ids solved for full points within a
// contest participation.
func (c *IDSetCache) ContestCompletedIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error) {
	return c.idSet(ctx, fmt.Sprintf(contestCompleteKey, participationID), func(ctx context.Context) (map[int64]struct{}, error) {
		return c.store.ContestCompletedProblemIDs(ctx, participationID)
	})
}

// UserAttemptedProblems returns the profile's partially solved problems with
// best achieved points.
func (c *IDSetCache) UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error) {
	return c.attemptedSet(ctx, fmt.Sprintf(userAttemptedKey, profileID), func(ctx context.Context) (map[int64]model.AttemptedProblem, error) {
		return c.store.UserAttemptedProblems(ctx, profileID)
	})
}

// ContestAttemptedProblems is UserAttemptedProblems scoped to a participation.
func (c *IDSetCache) ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error) {
	return c.attemptedSet(ctx, fmt.Sprintf(contestAttemptedKey, participationID), func(ctx context.Context) (map[int64]model.AttemptedProblem, error) {
		return c.store.ContestAttemptedProblems(ctx, participationID)
	})
}

func (c *IDSetCache) idSet(ctx context.Context, key string, fn func(context.Context) (map[int64]struct{}, error)) (map[int64]struct{}, error) {
	set, err := cache.GetWithCached(ctx, c.cache, key,
		cache.JitterTTL(c.ttl), c.ttl,
		func(map[int64]struct{}) bool { return false },
		marshalIDSet, unmarshalIDSet, fn)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = map[int64]struct{}{}
	}
	return set, nil
}

func (c *IDSetCache) attemptedSet(ctx context.Context, key string, fn func(context.Context) (map[int64]model.AttemptedProblem, error)) (map[int64]model.AttemptedProblem, error) {
	set, err := cache.GetWithCached(ctx, c.cache, key,
		cache.JitterTTL(c.ttl), c.ttl,
		func(map[int64]model.AttemptedProblem) bool { return false },
		marshalAttempted, unmarshalAttempted, fn)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = map[int64]model.AttemptedProblem{}
	}
	return set, nil
}

// InvalidateProfile drops a profile's completed and attempted entries.
// Missing keys are not an error.
func (c *IDSetCache) InvalidateProfile(ctx context.Context, profileID int64) error {
	return c.cache.Del(ctx,
		fmt.Sprintf(userCompleteKey, profileID),
		fmt.Sprintf(userAttemptedKey, profileID),
	)
}

// InvalidateParticipation drops a participation's completed and attempted
// entries.
func (c *IDSetCache) InvalidateParticipation(ctx context.Context, participationID int64) error {
	return c.cache.Del(ctx,
		fmt.Sprintf(contestCompleteKey, participationID),
		fmt.Sprintf(contestAttemptedKey, participationID),
	)
}

func marshalIDSet(set map[int64]struct{}) string {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	raw, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return encodePayload(raw)
}

func unmarshalIDSet(value string) (map[int64]struct{}, error) {
	raw, err := decodePayload(value)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func marshalAttempted(set map[int64]model.AttemptedProblem) string {
	raw, err := json.Marshal(set)
	if err != nil {
		return ""
	}
	return encodePayload(raw)
}

func unmarshalAttempted(value string) (map[int64]model.AttemptedProblem, error) {
	raw, err := decodePayload(value)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]model.AttemptedProblem)
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func encodePayload(raw []byte) string {
	if len(raw) <= compressThreshold {
		return string(raw)
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)
	return compressedPrefix + base64.StdEncoding.EncodeToString(compressed)
}

func decodePayload(value string) ([]byte, error) {
	if len(value) < len(compressedPrefix) || value[:len(compressedPrefix)] != compressedPrefix {
		return []byte(value), nil
	}
	compressed, err := base64.StdEncoding.DecodeString(value[len(compressedPrefix):])
	if err != nil {
		return nil, err
	}
	return zstdDecoder.DecodeAll(compressed, nil)
}
