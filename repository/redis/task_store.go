// Package redis implements the remote store on Redis: one hash per owner
// (task id to JSON record) plus a pub/sub channel announcing changes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

const maxWatchAttempts = 3

// deleteScript removes one task and announces it in the same atomic step,
// publishing only when a field was actually removed.
var deleteScript = redislib.NewScript(`
if redis.call("HDEL", KEYS[1], ARGV[1]) == 1 then
	redis.call("PUBLISH", KEYS[2], ARGV[1])
	return 1
end
return 0
`)

type taskStore struct {
	client *redislib.Client
	logger *zap.Logger
}

// NewTaskStore creates a Redis-backed remote task store.
func NewTaskStore(client *redislib.Client, logger *zap.Logger) repository.TaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskStore{client: client, logger: logger}
}

func (s *taskStore) Load(ctx context.Context, ownerID string) ([]domain.Task, error) {
	fields, err := s.client.HGetAll(ctx, tasksKey(ownerID)).Result()
	if err != nil {
		return nil, domain.Unavailable("load tasks", err)
	}

	tasks := make([]domain.Task, 0, len(fields))
	for id, raw := range fields {
		var task domain.Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			s.logger.Warn("skipping unreadable task record", zap.String("owner_id", ownerID), zap.String("task_id", id), zap.Error(err))
			continue
		}
		task.ID = id
		task.OwnerID = ownerID
		task.Category = task.Category.OrDefault()
		tasks = append(tasks, task)
	}
	// hash order is random; tie-break on creation then id for determinism
	sortByCreation(tasks)
	repository.SortByStart(tasks)
	return tasks, nil
}

func (s *taskStore) Create(ctx context.Context, task domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.HSet(ctx, tasksKey(task.OwnerID), task.ID, payload)
		pipe.Publish(ctx, changesChannel(task.OwnerID), task.ID)
		return nil
	})
	return domain.Unavailable("create task", err)
}

func (s *taskStore) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	key := tasksKey(ownerID)
	txf := func(tx *redislib.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redislib.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var task domain.Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			return err
		}
		patch.Apply(&task)
		payload, err := json.Marshal(task)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
			pipe.HSet(ctx, key, id, payload)
			pipe.Publish(ctx, changesChannel(ownerID), id)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redislib.TxFailedErr) {
			break
		}
	}
	return domain.Unavailable("update task", err)
}

func (s *taskStore) Delete(ctx context.Context, ownerID, id string) error {
	keys := []string{tasksKey(ownerID), changesChannel(ownerID)}
	return domain.Unavailable("delete task", deleteScript.Run(ctx, s.client, keys, id).Err())
}

// Subscribe opens a live query on the owner's change channel. The first
// snapshot is delivered from the subscription goroutine once the channel is
// confirmed, and again after every change notification.
func (s *taskStore) Subscribe(ctx context.Context, ownerID string, onSnapshot repository.SnapshotFunc) (repository.CancelFunc, error) {
	subCtx, stop := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(subCtx, changesChannel(ownerID))
	if _, err := pubsub.Receive(subCtx); err != nil {
		stop()
		pubsub.Close()
		return nil, domain.Unavailable("subscribe tasks", err)
	}

	done := make(chan struct{})
	go s.listen(subCtx, ownerID, pubsub, onSnapshot, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			if err := pubsub.Close(); err != nil {
				s.logger.Debug("closing task subscription", zap.String("owner_id", ownerID), zap.Error(err))
			}
			<-done
		})
	}, nil
}

func (s *taskStore) listen(ctx context.Context, ownerID string, pubsub *redislib.PubSub, onSnapshot repository.SnapshotFunc, done chan<- struct{}) {
	defer close(done)

	deliver := func() {
		tasks, err := s.Load(ctx, ownerID)
		if ctx.Err() != nil {
			return
		}
		onSnapshot(tasks, err)
	}

	deliver()
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-messages:
			if !ok {
				return
			}
			deliver()
		}
	}
}

var _ repository.TaskStore = (*taskStore)(nil)
