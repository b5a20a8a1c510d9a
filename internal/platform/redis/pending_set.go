package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set used when none is configured.
const DefaultKey = "lingo:pending"

// PendingSet implements task.PendingSet with a Redis sorted set. Members are
// task ids and scores are enqueue times. ZPOPMIN makes the pop atomic across
// processes.
type PendingSet struct {
	client goredis.UniversalClient
	key    string
}

// Ensure PendingSet implements task.PendingSet
var _ task.PendingSet = (*PendingSet)(nil)

// NewPendingSet creates a PendingSet stored under key.
func NewPendingSet(client goredis.UniversalClient, key string) *PendingSet {
	if key == "" {
		key = DefaultKey
	}
	return &PendingSet{client: client, key: key}
}

// Add inserts id unless it is already queued (ZADD NX).
func (s *PendingSet) Add(ctx context.Context, id uuid.UUID, score float64) (bool, error) {
	n, err := s.client.ZAddNX(ctx, s.key, goredis.Z{Score: score, Member: id.String()}).Result()
	if err != nil {
		return false, fmt.Errorf("zadd %s: %w", s.key, err)
	}
	return n == 1, nil
}

// PopMin removes and returns the lowest-scored id.
func (s *PendingSet) PopMin(ctx context.Context) (uuid.UUID, float64, bool, error) {
	zs, err := s.client.ZPopMin(ctx, s.key, 1).Result()
	if err != nil {
		return uuid.Nil, 0, false, fmt.Errorf("zpopmin %s: %w", s.key, err)
	}
	if len(zs) == 0 {
		return uuid.Nil, 0, false, nil
	}

	member, ok := zs[0].Member.(string)
	if !ok {
		return uuid.Nil, 0, false, fmt.Errorf("zpopmin %s: unexpected member type %T", s.key, zs[0].Member)
	}
	id, err := uuid.Parse(member)
	if err != nil {
		return uuid.Nil, 0, false, fmt.Errorf("zpopmin %s: invalid member %q: %w", s.key, member, err)
	}
	return id, zs[0].Score, true, nil
}

// Remove deletes id if present.
func (s *PendingSet) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.client.ZRem(ctx, s.key, id.String()).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", s.key, err)
	}
	return nil
}

// Contains reports whether id is queued.
func (s *PendingSet) Contains(ctx context.Context, id uuid.UUID) (bool, error) {
	err := s.client.ZScore(ctx, s.key, id.String()).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("zscore %s: %w", s.key, err)
	}
}

// Len returns the number of queued ids.
func (s *PendingSet) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", s.key, err)
	}
	return int(n), nil
}
