// Package bolt implements the local store: one BoltDB slot per owner holding
// the full serialized task list.
package bolt

import (
	"context"
	"encoding/json"
	"sync"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/internal/infrastructure/boltdb"
	"github.com/fastygo/dayflow/repository"
)

type taskStore struct {
	db     *bbolt.DB
	bucket []byte
	logger *zap.Logger

	// mu serializes read-modify-write cycles so versions follow write order.
	mu       sync.Mutex
	versions map[string]uint64
	subs     *repository.Broadcaster
}

// TaskStore is the local backend. Load and Save are the raw slot operations;
// the TaskStore methods build on them.
type TaskStore interface {
	repository.TaskStore
	Save(ctx context.Context, ownerID string, tasks []domain.Task) error
}

// NewTaskStore returns a BoltDB-backed local task store.
func NewTaskStore(db *bbolt.DB, logger *zap.Logger) TaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskStore{
		db:       db,
		bucket:   []byte(boltdb.BucketTasks),
		logger:   logger,
		versions: make(map[string]uint64),
		subs:     repository.NewBroadcaster(),
	}
}

// Load returns the owner's slot. A missing or unreadable slot is an empty list.
func (s *taskStore) Load(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if s.db == nil {
		return nil, domain.Unavailable("load tasks", bbolt.ErrDatabaseNotOpen)
	}
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		if v := b.Get([]byte(ownerID)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("load tasks", err)
	}
	return s.decode(ownerID, raw), nil
}

// Save overwrites the owner's whole slot.
func (s *taskStore) Save(ctx context.Context, ownerID string, tasks []domain.Task) error {
	if s.db == nil {
		return domain.Unavailable("save tasks", bbolt.ErrDatabaseNotOpen)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		return b.Put([]byte(ownerID), payload)
	})
	return domain.Unavailable("save tasks", err)
}

func (s *taskStore) Subscribe(ctx context.Context, ownerID string, onSnapshot repository.SnapshotFunc) (repository.CancelFunc, error) {
	s.mu.Lock()
	tasks, err := s.Load(ctx, ownerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	deliver, cancel := s.subs.Add(ownerID, onSnapshot)
	version := s.versions[ownerID]
	s.mu.Unlock()

	deliver(version, tasks)
	return cancel, nil
}

func (s *taskStore) Create(ctx context.Context, task domain.Task) error {
	return s.rewrite(ctx, task.OwnerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		return append(tasks, task), true
	})
}

func (s *taskStore) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	return s.rewrite(ctx, ownerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		for i := range tasks {
			if tasks[i].ID == id {
				patch.Apply(&tasks[i])
				return tasks, true
			}
		}
		return tasks, false
	})
}

func (s *taskStore) Delete(ctx context.Context, ownerID, id string) error {
	return s.rewrite(ctx, ownerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		for i := range tasks {
			if tasks[i].ID == id {
				return append(tasks[:i], tasks[i+1:]...), true
			}
		}
		return tasks, false
	})
}

// rewrite loads the slot, applies fn and persists the full result, then
// notifies local subscribers with the new snapshot.
func (s *taskStore) rewrite(ctx context.Context, ownerID string, fn func([]domain.Task) ([]domain.Task, bool)) error {
	s.mu.Lock()
	tasks, err := s.Load(ctx, ownerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next, changed := fn(tasks)
	if !changed {
		s.mu.Unlock()
		return nil
	}
	repository.SortByStart(next)
	if err := s.Save(ctx, ownerID, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.versions[ownerID]++
	version := s.versions[ownerID]
	s.mu.Unlock()

	s.subs.Publish(ownerID, version, next)
	return nil
}

func (s *taskStore) decode(ownerID string, raw []byte) []domain.Task {
	if len(raw) == 0 {
		return []domain.Task{}
	}
	var tasks []domain.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		s.logger.Warn("discarding unreadable task slot", zap.String("owner_id", ownerID), zap.Error(err))
		return []domain.Task{}
	}
	out := tasks[:0]
	for _, task := range tasks {
		if task.ID == "" {
			continue
		}
		task.OwnerID = ownerID
		task.Category = task.Category.OrDefault()
		out = append(out, task)
	}
	return out
}
