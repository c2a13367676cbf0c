// Package postgres implements the remote store on Postgres. Writers announce
// changes with pg_notify in the same transaction; subscribers LISTEN on a
// dedicated connection and re-query the owner's rows per notification.
package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

// NotifyChannel carries the owner id of every changed task set.
const NotifyChannel = "dayflow_tasks"

type taskStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTaskStore returns a Postgres-backed remote task store.
func NewTaskStore(pool *pgxpool.Pool, logger *zap.Logger) repository.TaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskStore{pool: pool, logger: logger}
}

func (s *taskStore) Load(ctx context.Context, ownerID string) ([]domain.Task, error) {
	const query = `
	SELECT id, owner_id, start_time, end_time, description, category, is_completed, created_at
	FROM tasks
	WHERE owner_id = $1
	ORDER BY start_time ASC, created_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, domain.Unavailable("load tasks", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, domain.Unavailable("load tasks", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("load tasks", err)
	}
	return tasks, nil
}

func (s *taskStore) Create(ctx context.Context, task domain.Task) error {
	const query = `
	INSERT INTO tasks (id, owner_id, start_time, end_time, description, category, is_completed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	return s.inTx(ctx, "create task", task.OwnerID, func(tx pgx.Tx) (bool, error) {
		_, err := tx.Exec(ctx, query,
			task.ID,
			task.OwnerID,
			task.StartTime,
			task.EndTime,
			task.Description,
			string(task.Category.OrDefault()),
			task.IsCompleted,
			task.CreatedAt,
		)
		return err == nil, err
	})
}

func (s *taskStore) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	const selectQuery = `
	SELECT id, owner_id, start_time, end_time, description, category, is_completed, created_at
	FROM tasks
	WHERE id = $1 AND owner_id = $2
	FOR UPDATE
	`
	const updateQuery = `
	UPDATE tasks
	SET start_time = $3,
		end_time = $4,
		description = $5,
		category = $6,
		is_completed = $7
	WHERE id = $1 AND owner_id = $2
	`
	return s.inTx(ctx, "update task", ownerID, func(tx pgx.Tx) (bool, error) {
		task, err := scanTask(tx.QueryRow(ctx, selectQuery, id, ownerID))
		if errors.Is(err, domain.ErrTaskNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		patch.Apply(task)
		_, err = tx.Exec(ctx, updateQuery,
			task.ID,
			task.OwnerID,
			task.StartTime,
			task.EndTime,
			task.Description,
			string(task.Category),
			task.IsCompleted,
		)
		return err == nil, err
	})
}

func (s *taskStore) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`
	return s.inTx(ctx, "delete task", ownerID, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, query, id, ownerID)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	})
}

// inTx runs fn in a transaction and, when fn reports a change, queues the
// owner notification so it is delivered only on commit.
func (s *taskStore) inTx(ctx context.Context, op, ownerID string, fn func(pgx.Tx) (bool, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Unavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, err := fn(tx)
	if err != nil {
		return domain.Unavailable(op, err)
	}
	if !changed {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, ownerID); err != nil {
		return domain.Unavailable(op, err)
	}
	return domain.Unavailable(op, tx.Commit(ctx))
}

func (s *taskStore) Subscribe(ctx context.Context, ownerID string, onSnapshot repository.SnapshotFunc) (repository.CancelFunc, error) {
	subCtx, stop := context.WithCancel(ctx)
	conn, err := s.pool.Acquire(subCtx)
	if err != nil {
		stop()
		return nil, domain.Unavailable("subscribe tasks", err)
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		stop()
		return nil, domain.Unavailable("subscribe tasks", err)
	}

	done := make(chan struct{})
	go s.listen(subCtx, ownerID, conn, onSnapshot, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
		})
	}, nil
}

func (s *taskStore) listen(ctx context.Context, ownerID string, conn *pgxpool.Conn, onSnapshot repository.SnapshotFunc, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if !conn.Conn().IsClosed() {
			if _, err := conn.Exec(context.Background(), "UNLISTEN "+NotifyChannel); err != nil {
				s.logger.Debug("unlisten failed", zap.Error(err))
			}
		}
		conn.Release()
	}()

	deliver := func() {
		tasks, err := s.Load(ctx, ownerID)
		if ctx.Err() != nil {
			return
		}
		onSnapshot(tasks, err)
	}

	deliver()
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("task subscription lost", zap.String("owner_id", ownerID), zap.Error(err))
				onSnapshot(nil, domain.Unavailable("task subscription", err))
			}
			return
		}
		if notification.Payload != ownerID {
			continue
		}
		deliver()
	}
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task     domain.Task
		category string
	)
	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.StartTime,
		&task.EndTime,
		&task.Description,
		&category,
		&task.IsCompleted,
		&task.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	task.Category = domain.Category(category).OrDefault()
	return &task, nil
}

var _ repository.TaskStore = (*taskStore)(nil)
