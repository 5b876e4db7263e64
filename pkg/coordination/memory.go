package coordination

import (
	"context"
	"slices"
	"sync"
	"time"
)

const (
	defaultCapacity     = 4
	defaultPollInterval = 100 * time.Millisecond
)

// MemoryCoordinator is the process-local Coordinator backend: mutex-guarded
// maps, suitable for a single-process deployment and for tests.
type MemoryCoordinator struct {
	mu           sync.Mutex
	locks        map[Level]bool
	queues       map[Level][]int64
	executing    map[Level]int
	capacity     int
	pollInterval time.Duration
}

// NewMemoryCoordinator creates a memory coordinator with the given slot
// capacity per level. capacity <= 0 selects the default.
func NewMemoryCoordinator(capacity int) *MemoryCoordinator {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &MemoryCoordinator{
		locks:        make(map[Level]bool),
		queues:       make(map[Level][]int64),
		executing:    make(map[Level]int),
		capacity:     capacity,
		pollInterval: defaultPollInterval,
	}
}

func (m *MemoryCoordinator) AnnounceLock(_ context.Context, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[level] {
		return ErrLockHeld
	}

	m.locks[level] = true

	return nil
}

func (m *MemoryCoordinator) IsAnnounced(_ context.Context, level Level) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.locks[level], nil
}

func (m *MemoryCoordinator) RemoveLockFlag(_ context.Context, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, level)

	return nil
}

func (m *MemoryCoordinator) AddToQueue(_ context.Context, level Level, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.queues[level], id) {
		return nil
	}

	m.queues[level] = append(m.queues[level], id)

	return nil
}

func (m *MemoryCoordinator) CheckQueueFirst(_ context.Context, level Level, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queues[level]
	if len(queue) == 0 {
		return false, ErrNotQueued
	}

	return queue[0] == id, nil
}

func (m *MemoryCoordinator) RemoveFromQueue(_ context.Context, level Level, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queues[level]
	for i, queued := range queue {
		if queued == id {
			m.queues[level] = append(queue[:i], queue[i+1:]...)

			break
		}
	}

	return nil
}

// IncreaseNumExecuting acquires an execution slot, polling while the pool is
// saturated. Exclusive acquisitions are not bounded by the capacity.
func (m *MemoryCoordinator) IncreaseNumExecuting(ctx context.Context, level Level, _ int64, exclusive bool) error {
	for {
		m.mu.Lock()
		if exclusive || m.executing[level] < m.capacity {
			m.executing[level]++
			m.mu.Unlock()

			return nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

func (m *MemoryCoordinator) DecreaseNumExecuting(_ context.Context, level Level, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.executing[level] > 0 {
		m.executing[level]--
	}

	return nil
}

// NumExecuting reports the current in-flight count at a level.
func (m *MemoryCoordinator) NumExecuting(level Level) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.executing[level]
}

func (m *MemoryCoordinator) Close(_ context.Context) error {
	return nil
}
