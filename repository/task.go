package repository

import (
	"context"

	"github.com/fastygo/dayflow/domain"
)

// SnapshotFunc receives the complete current task set of one owner. Either the
// tasks or err is meaningful; err reports a failed refresh.
type SnapshotFunc func(tasks []domain.Task, err error)

// CancelFunc stops a subscription. It is safe to call more than once and
// returns only after delivery has stopped.
type CancelFunc func()

// TaskStore is the persistence contract shared by the local and remote backends.
// Every operation is scoped to an explicit owner.
type TaskStore interface {
	Load(ctx context.Context, ownerID string) ([]domain.Task, error)
	Subscribe(ctx context.Context, ownerID string, onSnapshot SnapshotFunc) (CancelFunc, error)
	Create(ctx context.Context, task domain.Task) error
	// Update and Delete ignore ids that do not exist for the owner.
	Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error
	Delete(ctx context.Context, ownerID, id string) error
}
