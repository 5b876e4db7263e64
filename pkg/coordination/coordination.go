// Package coordination provides the mutual-exclusion protocol shared by all
// execution levels: a per-level exclusive lock flag, a per-level FIFO
// admission queue and a bounded pool of execution slots.
package coordination

import (
	"context"
	"errors"

	"github.com/chronoflow/chronoflow/pkg/models"
)

// Level aliases the hierarchy level the protocol is parameterized by.
type Level = models.HierarchyLevel

var (
	// ErrLockHeld is returned when announcing a lock that is already
	// announced at the same level.
	ErrLockHeld = errors.New("lock already announced at this level")

	// ErrNotQueued is returned when checking queue position for an id that
	// was never enqueued.
	ErrNotQueued = errors.New("id is not in the queue")
)

// LockManager is the per-level exclusive lock flag: a single holder may
// announce at a time.
type LockManager interface {
	AnnounceLock(ctx context.Context, level Level) error
	IsAnnounced(ctx context.Context, level Level) (bool, error)
	RemoveLockFlag(ctx context.Context, level Level) error
}

// QueueManager is the per-level FIFO admission queue used while a lock is
// contended. Admission order is strict: an id never reaches the front ahead
// of an id that enqueued earlier.
type QueueManager interface {
	AddToQueue(ctx context.Context, level Level, id int64) error
	CheckQueueFirst(ctx context.Context, level Level, id int64) (bool, error)
	RemoveFromQueue(ctx context.Context, level Level, id int64) error
}

// SlotPool gates concurrent execution per level. IncreaseNumExecuting blocks
// until a slot is free or ctx is done; exclusive acquisitions bypass the
// bound. Unblocking order under contention is best effort, not FIFO.
type SlotPool interface {
	IncreaseNumExecuting(ctx context.Context, level Level, id int64, exclusive bool) error
	DecreaseNumExecuting(ctx context.Context, level Level, exclusive bool) error
}

// Coordinator bundles the three per-level primitives behind one backend.
type Coordinator interface {
	LockManager
	QueueManager
	SlotPool

	Close(ctx context.Context) error
}
