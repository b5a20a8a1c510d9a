package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the task package
var (
	// ErrQueueEmpty is returned by Claim when no pending task could be claimed.
	ErrQueueEmpty = errors.New("no claimable task in queue")

	// ErrOutcomeDiscarded is returned by ReportOutcome when the task left the
	// processing state (deleted, or expired and re-claimed) before the report
	// arrived. The report has no effect.
	ErrOutcomeDiscarded = errors.New("task outcome discarded")
)

// PendingSet is an ordered set of task ids awaiting processing.
// Implementations must make PopMin atomic: concurrent callers never receive
// the same id from a single insertion.
//
// The set is not updated in the same transaction as the record store, so it
// can briefly hold the id of a task that is no longer pending (a sweep racing
// a claim). Claim drops such ids when their compare-and-set loses; no task
// is processed from a stale entry.
// Version: 1.0
type PendingSet interface {
	// Add inserts id with the given score. It reports false without changing
	// the score when id is already present.
	Add(ctx context.Context, id uuid.UUID, score float64) (bool, error)

	// PopMin removes and returns the id with the lowest score. ok is false
	// when the set is empty.
	PopMin(ctx context.Context) (id uuid.UUID, score float64, ok bool, err error)

	// Remove deletes id; removing an absent id is not an error.
	Remove(ctx context.Context, id uuid.UUID) error

	// Contains reports whether id is queued.
	Contains(ctx context.Context, id uuid.UUID) (bool, error)

	// Len returns the number of queued ids.
	Len(ctx context.Context) (int, error)
}

// Lease records which worker holds a claimed task, for which attempt, and
// since when.
type Lease struct {
	WorkerID  string
	Attempt   int
	ClaimedAt time.Time
}

// Expired reports whether the lease is older than d at now.
func (l Lease) Expired(now time.Time, d time.Duration) bool {
	return now.Sub(l.ClaimedAt) > d
}

// scoreOf converts a timestamp to a pending-set score. Microseconds keep the
// value exactly representable as a float64.
func scoreOf(t time.Time) float64 {
	return float64(t.UnixMicro())
}
