// Package memory provides an in-process TaskStore used by tests and for
// running the service without any backing storage.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

// TaskStore keeps tasks in memory and notifies subscribers synchronously.
type TaskStore struct {
	mu       sync.Mutex
	tasks    map[string][]domain.Task
	versions map[string]uint64
	failure  error
	subs     *repository.Broadcaster
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:    make(map[string][]domain.Task),
		versions: make(map[string]uint64),
		subs:     repository.NewBroadcaster(),
	}
}

// Fail makes every subsequent call return err until Fail(nil) is called.
func (s *TaskStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Subscribers returns the number of live subscriptions for ownerID.
func (s *TaskStore) Subscribers(ownerID string) int {
	return s.subs.Count(ownerID)
}

func (s *TaskStore) Load(ctx context.Context, ownerID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, domain.Unavailable("load tasks", s.failure)
	}
	return repository.Clone(s.tasks[ownerID]), nil
}

func (s *TaskStore) Subscribe(ctx context.Context, ownerID string, onSnapshot repository.SnapshotFunc) (repository.CancelFunc, error) {
	s.mu.Lock()
	if s.failure != nil {
		err := s.failure
		s.mu.Unlock()
		return nil, domain.Unavailable("subscribe tasks", err)
	}
	deliver, cancel := s.subs.Add(ownerID, onSnapshot)
	version := s.versions[ownerID]
	snapshot := repository.Clone(s.tasks[ownerID])
	s.mu.Unlock()

	deliver(version, snapshot)
	return cancel, nil
}

func (s *TaskStore) Create(ctx context.Context, task domain.Task) error {
	return s.mutate(task.OwnerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		return append(tasks, task), true
	})
}

func (s *TaskStore) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	return s.mutate(ownerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		for i := range tasks {
			if tasks[i].ID == id {
				patch.Apply(&tasks[i])
				return tasks, true
			}
		}
		return tasks, false
	})
}

func (s *TaskStore) Delete(ctx context.Context, ownerID, id string) error {
	return s.mutate(ownerID, func(tasks []domain.Task) ([]domain.Task, bool) {
		for i := range tasks {
			if tasks[i].ID == id {
				return append(tasks[:i], tasks[i+1:]...), true
			}
		}
		return tasks, false
	})
}

func (s *TaskStore) mutate(ownerID string, fn func([]domain.Task) ([]domain.Task, bool)) error {
	s.mu.Lock()
	if s.failure != nil {
		err := s.failure
		s.mu.Unlock()
		return domain.Unavailable("write tasks", err)
	}
	next, changed := fn(repository.Clone(s.tasks[ownerID]))
	if !changed {
		s.mu.Unlock()
		return nil
	}
	repository.SortByStart(next)
	s.tasks[ownerID] = next
	s.versions[ownerID]++
	version := s.versions[ownerID]
	snapshot := repository.Clone(next)
	s.mu.Unlock()

	s.subs.Publish(ownerID, version, snapshot)
	return nil
}

var _ repository.TaskStore = (*TaskStore)(nil)
