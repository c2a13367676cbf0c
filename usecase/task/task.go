package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

// View is what consumers render: the projection, its statistics and the store
// error, if any, that left it empty.
type View struct {
	Tasks []domain.ProjectedTask `json:"tasks"`
	Stats domain.Stats           `json:"stats"`
	Err   error                  `json:"-"`
}

// UseCase is the only sanctioned mutation path for tasks. Every call takes the
// owner explicitly.
type UseCase struct {
	store  repository.TaskStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*UseCase)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

// WithIDs overrides task id generation.
func WithIDs(newID func() string) Option {
	return func(uc *UseCase) { uc.newID = newID }
}

func New(store repository.TaskStore, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Store exposes the backing store for subscribers.
func (uc *UseCase) Store() repository.TaskStore {
	return uc.store
}

// List loads and projects the owner's tasks. A store failure yields an empty
// projection together with the error.
func (uc *UseCase) List(ctx context.Context, ownerID string) View {
	if ownerID == "" {
		return NewView(nil, nil)
	}
	raw, err := uc.store.Load(ctx, ownerID)
	if err != nil {
		uc.logger.Warn("task load failed", zap.String("owner_id", ownerID), zap.Error(err))
		return NewView(nil, domain.Unavailable("load tasks", err))
	}
	return NewView(raw, nil)
}

// Stats aggregates the owner's current projection.
func (uc *UseCase) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	view := uc.List(ctx, ownerID)
	return view.Stats, view.Err
}

// Add creates a task for ownerID and returns it as it appears in the owner's
// projection.
func (uc *UseCase) Add(ctx context.Context, ownerID string, draft domain.TaskDraft) (*domain.ProjectedTask, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	created := domain.Task{
		ID:          uc.newID(),
		OwnerID:     ownerID,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
		Description: draft.Description,
		Category:    draft.Category.OrDefault(),
		IsCompleted: draft.IsCompleted,
		CreatedAt:   uc.now().UTC(),
	}
	if err := uc.store.Create(ctx, created); err != nil {
		uc.logger.Error("task create failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, domain.Unavailable("create task", err)
	}

	raw, err := uc.store.Load(ctx, ownerID)
	if err != nil {
		uc.logger.Warn("reload after create failed", zap.String("owner_id", ownerID), zap.Error(err))
		return &domain.ProjectedTask{Task: created}, nil
	}
	if !containsID(raw, created.ID) {
		raw = append(raw, created)
	}
	for _, t := range Project(raw) {
		if t.ID == created.ID {
			return &t, nil
		}
	}
	return &domain.ProjectedTask{Task: created}, nil
}

// Update merges patch into the owner's task with id. It is a no-op without an
// owner, for an empty patch, or when the id is unknown.
func (uc *UseCase) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	if ownerID == "" || id == "" || patch.Empty() {
		return nil
	}
	if err := uc.store.Update(ctx, ownerID, id, patch); err != nil {
		uc.logger.Error("task update failed", zap.String("owner_id", ownerID), zap.String("task_id", id), zap.Error(err))
		return domain.Unavailable("update task", err)
	}
	return nil
}

// Remove permanently deletes the owner's task with id. Unknown ids and a
// missing owner are ignored.
func (uc *UseCase) Remove(ctx context.Context, ownerID, id string) error {
	if ownerID == "" || id == "" {
		return nil
	}
	if err := uc.store.Delete(ctx, ownerID, id); err != nil {
		uc.logger.Error("task delete failed", zap.String("owner_id", ownerID), zap.String("task_id", id), zap.Error(err))
		return domain.Unavailable("delete task", err)
	}
	return nil
}

// NewView projects raw and attaches statistics. With a non-nil err the
// projection is empty.
func NewView(raw []domain.Task, err error) View {
	if err != nil {
		raw = nil
	}
	tasks := Project(raw)
	return View{Tasks: tasks, Stats: Aggregate(tasks), Err: err}
}

func containsID(tasks []domain.Task, id string) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
