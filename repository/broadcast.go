package repository

import (
	"sort"
	"sync"

	"github.com/fastygo/dayflow/domain"
)

// SortByStart orders tasks ascending by start time, keeping input order on ties.
func SortByStart(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].StartTime < tasks[j].StartTime
	})
}

// Broadcaster fans versioned snapshots out to per-owner subscribers. Delivery
// is synchronous on the publishing goroutine. A subscriber never observes a
// version older than one it has already received.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]*subscriber
}

type subscriber struct {
	mu     sync.Mutex
	fn     SnapshotFunc
	last   uint64
	seen   bool
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]*subscriber)}
}

// Add registers fn for ownerID. The returned CancelFunc must not be called
// from inside fn.
func (b *Broadcaster) Add(ownerID string, fn SnapshotFunc) (deliver func(version uint64, tasks []domain.Task), cancel CancelFunc) {
	sub := &subscriber{fn: fn}

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[int]*subscriber)
	}
	b.subs[ownerID][id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[ownerID], id)
			if len(b.subs[ownerID]) == 0 {
				delete(b.subs, ownerID)
			}
			b.mu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		})
	}
	return sub.deliver, cancel
}

// Publish sends a snapshot to every subscriber of ownerID.
func (b *Broadcaster) Publish(ownerID string, version uint64, tasks []domain.Task) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs[ownerID]))
	for _, sub := range b.subs[ownerID] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(version, tasks)
	}
}

// Count returns the number of live subscribers for ownerID.
func (b *Broadcaster) Count(ownerID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[ownerID])
}

func (s *subscriber) deliver(version uint64, tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.seen && version < s.last) {
		return
	}
	s.seen = true
	s.last = version
	s.fn(Clone(tasks), nil)
}

// Clone returns an independent copy of tasks.
func Clone(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}
