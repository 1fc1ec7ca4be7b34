package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExclusionStore remembers which candidates have already been tried
// for a slot occurrence.  The set lives in Redis so a cascade that
// spans multiple dispatched jobs, or a process restart, still never
// re-offers a slot to a candidate who declined or timed out on it.
// The growth of this set is what guarantees cascade termination.
type ExclusionStore struct {
	rdb *redis.Client
	ttl time.Duration

	// process-local fallback when Redis is unavailable
	mu  sync.Mutex
	mem map[uint64]map[uint64]struct{}
}

// NewExclusionStore returns a store keeping per-slot exclusion sets
// for the given ttl.  A nil client degrades to a process-local map.
func NewExclusionStore(rdb *redis.Client, ttl time.Duration) *ExclusionStore {
	return &ExclusionStore{rdb: rdb, ttl: ttl, mem: make(map[uint64]map[uint64]struct{})}
}

func exclusionKey(slotID uint64) string {
	return fmt.Sprintf("cascade_excl:%d", slotID)
}

// Add marks an entry as exhausted for the slot occurrence.
func (s *ExclusionStore) Add(ctx context.Context, slotID, entryID uint64) error {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		set, ok := s.mem[slotID]
		if !ok {
			set = make(map[uint64]struct{})
			s.mem[slotID] = set
		}
		set[entryID] = struct{}{}
		return nil
	}
	key := exclusionKey(slotID)
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, key, entryID)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Members returns the exhausted entry IDs for the slot occurrence.
func (s *ExclusionStore) Members(ctx context.Context, slotID uint64) (map[uint64]struct{}, error) {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make(map[uint64]struct{}, len(s.mem[slotID]))
		for id := range s.mem[slotID] {
			out[id] = struct{}{}
		}
		return out, nil
	}
	vals, err := s.rdb.SMembers(ctx, exclusionKey(slotID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]struct{}, len(vals))
	for _, v := range vals {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out, nil
}

// Clear drops the exclusion set, used when a slot occurrence is
// re-opened as a fresh offer round.
func (s *ExclusionStore) Clear(ctx context.Context, slotID uint64) error {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.mem, slotID)
		return nil
	}
	return s.rdb.Del(ctx, exclusionKey(slotID)).Err()
}
