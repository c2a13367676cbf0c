package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

// Phase is the lifecycle stage of a Board.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// State is a point-in-time copy of a Board.
type State struct {
	OwnerID string
	Phase   Phase
	View
}

// Loading reports whether the board is waiting for its first snapshot.
func (s State) Loading() bool {
	return s.Phase == PhaseLoading
}

// Board is a live, single-owner view over a TaskStore subscription. Each new
// snapshot replaces the projection wholesale; snapshots from a previous owner's
// subscription are discarded.
type Board struct {
	uc     *UseCase
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     repository.CancelFunc
	listeners  map[int]func(State)
	nextID     int
}

func NewBoard(uc *UseCase, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		uc:        uc,
		logger:    logger,
		state:     idleState(),
		listeners: make(map[int]func(State)),
	}
}

// OnChange registers fn to receive every new state. The returned function
// removes it.
func (b *Board) OnChange(fn func(State)) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// State returns the current state.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyState(b.state)
}

// OwnerID returns the active owner, or "" when idle.
func (b *Board) OwnerID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.OwnerID
}

// SetOwner switches the board to ownerID. The previous owner's subscription is
// torn down before the new one is opened. An empty ownerID returns the board
// to idle.
func (b *Board) SetOwner(ctx context.Context, ownerID string) {
	b.mu.Lock()
	if ownerID == b.state.OwnerID && b.state.Phase != PhaseIdle {
		b.mu.Unlock()
		return
	}
	b.generation++
	gen := b.generation
	previous := b.cancel
	b.cancel = nil
	if ownerID == "" {
		b.state = idleState()
	} else {
		b.state = State{OwnerID: ownerID, Phase: PhaseLoading, View: NewView(nil, nil)}
	}
	state := copyState(b.state)
	b.mu.Unlock()

	if previous != nil {
		previous()
	}
	b.emit(state)
	if ownerID == "" {
		return
	}

	cancel, err := b.uc.Store().Subscribe(ctx, ownerID, b.receiver(gen, ownerID))

	b.mu.Lock()
	if b.generation != gen {
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	if err != nil {
		b.logger.Warn("task subscription failed", zap.String("owner_id", ownerID), zap.Error(err))
		b.state = State{OwnerID: ownerID, Phase: PhaseReady, View: NewView(nil, domain.Unavailable("subscribe tasks", err))}
		state = copyState(b.state)
		b.mu.Unlock()
		b.emit(state)
		return
	}
	b.cancel = cancel
	b.mu.Unlock()
}

// Close ends the current subscription and returns the board to idle.
func (b *Board) Close() {
	b.SetOwner(context.Background(), "")
}

// Add creates a task for the active owner. It fails with ErrUnauthenticated
// when the board is idle.
func (b *Board) Add(ctx context.Context, draft domain.TaskDraft) (*domain.ProjectedTask, error) {
	return b.uc.Add(ctx, b.OwnerID(), draft)
}

// Update is a no-op when the board is idle.
func (b *Board) Update(ctx context.Context, id string, patch domain.TaskPatch) error {
	return b.uc.Update(ctx, b.OwnerID(), id, patch)
}

// Remove is a no-op when the board is idle.
func (b *Board) Remove(ctx context.Context, id string) error {
	return b.uc.Remove(ctx, b.OwnerID(), id)
}

func (b *Board) receiver(gen uint64, ownerID string) repository.SnapshotFunc {
	return func(raw []domain.Task, err error) {
		if err != nil {
			b.logger.Warn("task snapshot failed", zap.String("owner_id", ownerID), zap.Error(err))
		}
		view := NewView(raw, err)

		b.mu.Lock()
		if b.generation != gen {
			b.mu.Unlock()
			return
		}
		b.state = State{OwnerID: ownerID, Phase: PhaseReady, View: view}
		state := copyState(b.state)
		b.mu.Unlock()

		b.emit(state)
	}
}

func (b *Board) emit(state State) {
	b.mu.Lock()
	fns := make([]func(State), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func idleState() State {
	return State{Phase: PhaseIdle, View: NewView(nil, nil)}
}

func copyState(s State) State {
	tasks := make([]domain.ProjectedTask, len(s.Tasks))
	copy(tasks, s.Tasks)
	s.Tasks = tasks
	return s
}
